package log

import (
	"io"
	"time"

	"github.com/gorilla/handlers"
)

// HTTPLogEntry is one served request.
type HTTPLogEntry struct {
	Timestamp  time.Time
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
}

// LogHTTPRequest writes an access log line under the "http" logger. Server
// errors are logged at warn level.
func LogHTTPRequest(e HTTPLogEntry) {
	l := Named("http")
	kv := []interface{}{
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration_ms", e.Duration.Milliseconds(),
		"size", e.Size,
		"remote_addr", e.RemoteAddr,
		"user_agent", e.UserAgent,
	}
	if e.Status >= 500 {
		l.Warnw("request failed", kv...)
		return
	}
	l.Debugw("request served", kv...)
}

// AccessLogFormatter adapts LogHTTPRequest to gorilla/handlers'
// CustomLoggingHandler. The writer is ignored; output goes through zap.
func AccessLogFormatter(_ io.Writer, p handlers.LogFormatterParams) {
	LogHTTPRequest(HTTPLogEntry{
		Timestamp:  p.TimeStamp,
		Method:     p.Request.Method,
		Path:       p.URL.Path,
		Status:     p.StatusCode,
		Duration:   time.Since(p.TimeStamp),
		Size:       p.Size,
		RemoteAddr: p.Request.RemoteAddr,
		UserAgent:  p.Request.UserAgent(),
	})
}
