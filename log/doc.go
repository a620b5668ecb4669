// Package log provides a simple, leveled logging interface used
// throughout memcore: the orchestrator, recorder, manager, and stores
// all log through this package rather than the standard log package
// directly, so callers can swap in their own Logger.
//
// # Log Levels
//
// The package supports five log levels, in order of increasing severity:
//
//   - LogLevelDebug: Detailed debugging information for development
//   - LogLevelInfo: General informational messages about normal operation
//   - LogLevelWarn: Warning messages for potentially problematic situations
//   - LogLevelError: Error messages for failures that need attention
//   - LogLevelNone: Disables all logging output
//
// # Logger Interface
//
// The Logger interface provides four main logging methods:
//
//   - Debug: For detailed troubleshooting information
//   - Info: For general application flow information
//   - Warn: For issues that don't stop execution but need attention
//   - Error: For failures and exceptions
//
// # Example Usage
//
// ## Basic Logging
//
//	logger := log.NewDefaultLogger(log.LogLevelInfo)
//
//	logger.Info("search: orchestrator plan built with %d strategies", n)
//	logger.Debug("recorder: classifying chat %s", chatID)
//	logger.Warn("search: strategy %s degraded to fallback", name)
//	logger.Error("store: failed to consolidate duplicates: %v", err)
//
// ## Custom Output
//
//	file, err := os.OpenFile("memcore.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
//	if err != nil {
//		panic(err)
//	}
//	defer file.Close()
//
//	logger := log.NewCustomLogger(file, log.LogLevelDebug)
//
// ## Multi-Writer Logging
//
//	multiWriter := io.MultiWriter(os.Stdout, file)
//	logger := log.NewCustomLogger(multiWriter, log.LogLevelInfo)
//
// ## Filtering by Level
//
//	debugLogger := log.NewDefaultLogger(log.LogLevelDebug)
//	prodLogger := log.NewDefaultLogger(log.LogLevelWarn)
//
//	debugLogger.Debug("visible in debug mode")
//	prodLogger.Debug("not visible in production")
//
// # golog Integration
//
// For callers who prefer `github.com/kataras/golog`, a minimal wrapper
// is provided:
//
//	import "github.com/kataras/golog"
//
//	glogger := golog.New()
//	glogger.SetPrefix("[memcore] ")
//
//	logger := log.NewGologLogger(glogger)
//	logger.Info("manager started")
//	logger.SetLevel(log.LogLevelDebug)
//
// # Custom Loggers
//
// Any type satisfying the Logger interface can be passed to
// search.NewOrchestrator, recorder.New, or manager.New in place of the
// default:
//
//	type CustomLogger struct{}
//
//	func (l *CustomLogger) Debug(format string, v ...any) {}
//	func (l *CustomLogger) Info(format string, v ...any)  {}
//	func (l *CustomLogger) Warn(format string, v ...any)  {}
//	func (l *CustomLogger) Error(format string, v ...any) {}
//
// # Thread Safety
//
// The DefaultLogger implementation is thread-safe and can be used
// concurrently from multiple goroutines.
package log
