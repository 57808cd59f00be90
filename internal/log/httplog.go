package log

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// statusRecorder captures what a handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// LogHTTPRequest writes one access log entry
func LogHTTPRequest(logger *zap.SugaredLogger, method, path string, status int, duration time.Duration, size int, remoteAddr, userAgent string) {
	fields := []interface{}{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"size", size,
		"remote_addr", remoteAddr,
		"user_agent", userAgent,
	}
	if status >= http.StatusInternalServerError {
		logger.Errorw("http request", fields...)
		return
	}
	logger.Infow("http request", fields...)
}

// HTTPMiddleware logs every request passing through next
func HTTPMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			LogHTTPRequest(logger, r.Method, r.URL.Path, rec.status, time.Since(start), rec.size, r.RemoteAddr, r.UserAgent())
		})
	}
}
