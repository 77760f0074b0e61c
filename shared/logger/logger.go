package logger

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	serviceName string
	minLevel    int

	mu  sync.Mutex
	out io.Writer
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Service   string    `json:"service"`
	RequestID string    `json:"request_id,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Fields    Fields    `json:"fields,omitempty"`
}

type Fields map[string]any

// Context key for request ID
type contextKey string

const RequestIDKey contextKey = "request_id"

var levels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Global logger instance
var defaultLogger *Logger

// Init configures the default logger. The optional level drops entries
// below it; unknown or missing levels fall back to info.
func Init(serviceName string, level ...string) {
	min := levels["info"]
	if len(level) > 0 {
		if l, ok := levels[strings.ToLower(strings.TrimSpace(level[0]))]; ok {
			min = l
		}
	}
	defaultLogger = &Logger{serviceName: serviceName, minLevel: min, out: os.Stdout}
}

// SetOutput redirects the default logger, mostly for tests.
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.mu.Lock()
	defaultLogger.out = w
	defaultLogger.mu.Unlock()
}

func (l *Logger) log(level string, ctx context.Context, message string, err error, fields Fields) {
	if levels[level] < l.minLevel {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Service:   l.serviceName,
		Message:   message,
		Fields:    fields,
	}

	if ctx != nil {
		entry.RequestID = RequestIDFrom(ctx)
	}

	if err != nil {
		entry.Error = err.Error()
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		log.Printf("JSON marshal error: %v, original message: %s", marshalErr, message)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(jsonData, '\n'))
}

func fieldsOf(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Package-level convenience functions using the default logger
func Info(ctx context.Context, message string, fields ...Fields) {
	if defaultLogger == nil {
		log.Printf("Logger not initialized, falling back to standard log: %s", message)
		return
	}
	defaultLogger.log("info", ctx, message, nil, fieldsOf(fields))
}

func Error(ctx context.Context, message string, err error, fields ...Fields) {
	if defaultLogger == nil {
		log.Printf("Logger not initialized, falling back to standard log: %s, error: %v", message, err)
		return
	}
	defaultLogger.log("error", ctx, message, err, fieldsOf(fields))
}

func Warn(ctx context.Context, message string, fields ...Fields) {
	if defaultLogger == nil {
		log.Printf("Logger not initialized, falling back to standard log: %s", message)
		return
	}
	defaultLogger.log("warn", ctx, message, nil, fieldsOf(fields))
}

// WarnErr logs a warning that carries an error, e.g. a failed cleanup that
// does not change the outcome of the request.
func WarnErr(ctx context.Context, message string, err error, fields ...Fields) {
	if defaultLogger == nil {
		log.Printf("Logger not initialized, falling back to standard log: %s, error: %v", message, err)
		return
	}
	defaultLogger.log("warn", ctx, message, err, fieldsOf(fields))
}

func Debug(ctx context.Context, message string, fields ...Fields) {
	if defaultLogger == nil {
		log.Printf("Logger not initialized, falling back to standard log: %s", message)
		return
	}
	defaultLogger.log("debug", ctx, message, nil, fieldsOf(fields))
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom returns the request ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
