package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed API request at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("API request client error", fields)
	default:
		l.DebugWithFields("API request completed", fields)
	}
}

// LogRateLimit logs a 429 from the API. Requests are not retried.
func LogRateLimit(l Logger, endpoint string, resetAt time.Time) {
	fields := map[string]interface{}{
		"endpoint": endpoint,
		"action":   "rate_limited",
	}
	if !resetAt.IsZero() {
		fields["reset_at"] = resetAt
	}
	l.WarnWithFields("Rate limit reached, request dropped", fields)
}

// LogFetchProgress logs pagination progress for one topic
func LogFetchProgress(l Logger, topic string, collected, target, page int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(collected) / float64(target) * 100
	}

	l.DebugWithFields("Fetch progress", map[string]interface{}{
		"topic":      topic,
		"collected":  collected,
		"target":     target,
		"page":       page,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// LogSnapshot logs a written engagement snapshot
func LogSnapshot(l Logger, topic, path string, rows int) {
	l.InfoWithFields("Snapshot written", map[string]interface{}{
		"topic": topic,
		"path":  path,
		"rows":  rows,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, details map[string]interface{}) {
	l = l.WithField("component", component)
	if len(details) > 0 {
		l = l.WithFields(details)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
