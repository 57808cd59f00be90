package log

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCode  int64
		wantSize  int64
		wantLevel zapcore.Level
	}{
		{
			name:      "implicit ok",
			handler:   func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) },
			wantCode:  http.StatusOK,
			wantSize:  5,
			wantLevel: zapcore.InfoLevel,
		},
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantCode:  http.StatusInternalServerError,
			wantLevel: zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := HTTPMiddleware(zap.New(core).Sugar())(tt.handler)

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/version", nil))

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", e.Level, tt.wantLevel)
			}
			fields := e.ContextMap()
			if fields["status"] != tt.wantCode {
				t.Errorf("status = %v, want %d", fields["status"], tt.wantCode)
			}
			if fields["size"] != tt.wantSize {
				t.Errorf("size = %v, want %d", fields["size"], tt.wantSize)
			}
			if fields["path"] != "/version" {
				t.Errorf("path = %v", fields["path"])
			}
		})
	}
}
