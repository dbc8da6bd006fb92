package log

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerRequestID      = "X-Request-ID"
	metadataKeyRequestID = "x-request-id"

	maxRequestIDLen = 128
)

// requestID keeps a caller-supplied correlation id when it is usable and
// mints a new one otherwise.
func requestID(supplied string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" || len(supplied) > maxRequestIDLen {
		return uuid.NewString()
	}
	return supplied
}

func latencyMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// statusLevel maps an HTTP status to the level its completion line is
// written at. Probes are demoted so load balancer polling stays out of info.
func statusLevel(status int, path string) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	case isProbe(path):
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func isProbe(path string) bool {
	return path == "/health" || strings.HasSuffix(path, "/health")
}
