// Package logger provides the structured logging interface used across the
// collector.
//
// It wraps zerolog behind the Logger interface so components can take a
// logger as a dependency and tests can substitute NewNopLogger or the
// capturing TestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil { ... }
//	log := logger.GetLogger().WithField("topic", "crypto")
//	log.InfoWithFields("fetch completed", map[string]interface{}{
//	    "posts": 1000,
//	    "pages": 10,
//	})
//
// When LoggingConfig.File is set, records are written to the console and
// appended to the file.
package logger
