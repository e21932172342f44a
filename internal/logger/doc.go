// Package logger provides leveled, component-tagged logging on top of logrus.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Each entry carries a timestamp, level, optional component tag, and message.
// The component tag is usually a session ID or a subsystem name such as
// "supervisor" or "harness".
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "harness started")
//	logger.Info("supervisor", "run attempt %d", n)
//	logger.Error(sess.ID, "error - %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("engine", "listener bound on %s", addr)
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// # Thread Safety
//
// All logging operations are safe for concurrent use.
package logger
