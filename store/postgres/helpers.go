package postgres

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func generateID() string {
	return uuid.NewString()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
