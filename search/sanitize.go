package search

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mrorigo/memcore/memerr"
)

const (
	maxQueryTextLen  = 1000
	maxCategoryLen   = 100
	maxMetadataBytes = 10 * 1024
	minLimit         = 1
	maxLimit         = 1000
	maxOffset        = 10000
)

// dangerousPatterns catch SQL injection, XSS, and command-injection
// markers. Checked after a bluemonday strict-policy pass, since a
// sanitizer that strips tags also neutralizes payloads the patterns alone
// would miss (e.g. an encoded script tag that decodes to plain text).
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bOR\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)--\s*$`),
	regexp.MustCompile(`(?i)\bUNION\s+SELECT\b`),
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\$\(.*\)`),
	regexp.MustCompile(";\\s*(rm|drop|delete)\\s"),
}

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize validates and normalizes a raw query per §4.7 step 1. It never
// mutates q's relationship-traversal fields.
func Sanitize(q Query) (Query, error) {
	if len(q.Text) > maxQueryTextLen {
		return q, &memerr.ValidationError{Field: "text", Reason: "exceeds maximum length"}
	}

	stripped := strictPolicy.Sanitize(q.Text)
	for _, p := range dangerousPatterns {
		if p.MatchString(q.Text) || p.MatchString(stripped) {
			return q, &memerr.ValidationError{Field: "text", Reason: "contains a disallowed pattern"}
		}
	}

	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit < minLimit || q.Limit > maxLimit {
		return q, &memerr.ValidationError{Field: "limit", Reason: "out of range"}
	}
	if q.Offset < 0 || q.Offset > maxOffset {
		return q, &memerr.ValidationError{Field: "offset", Reason: "out of range"}
	}

	normCategories := make([]string, 0, len(q.Categories))
	for _, c := range q.Categories {
		c = strings.TrimSpace(c)
		if len(c) > maxCategoryLen {
			c = c[:maxCategoryLen]
		}
		if c != "" {
			normCategories = append(normCategories, c)
		}
	}
	q.Categories = normCategories

	if q.Metadata != nil {
		encoded, err := json.Marshal(q.Metadata)
		if err != nil {
			return q, &memerr.ValidationError{Field: "metadata", Reason: "not JSON-serializable"}
		}
		if len(encoded) > maxMetadataBytes {
			return q, &memerr.ValidationError{Field: "metadata", Reason: "exceeds size cap"}
		}
	}

	if q.SortDirection != "" {
		dir := strings.ToLower(q.SortDirection)
		if dir != "asc" && dir != "desc" {
			return q, &memerr.ValidationError{Field: "sortDirection", Reason: "must be asc or desc"}
		}
		q.SortDirection = dir
	}

	return q, nil
}
