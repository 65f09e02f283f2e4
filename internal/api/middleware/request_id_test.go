package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when not provided", func(t *testing.T) {
		var requestID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if _, err := uuid.Parse(requestID); err != nil {
			t.Errorf("expected UUID request ID, got %q: %v", requestID, err)
		}
		if got := rec.Header().Get("X-Request-ID"); got != requestID {
			t.Errorf("expected X-Request-ID %q in response, got %q", requestID, got)
		}
	})

	t.Run("uses client-provided request ID", func(t *testing.T) {
		expectedID := "client-request-123"
		var actualID string

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actualID = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", expectedID)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if actualID != expectedID {
			t.Errorf("expected request ID %q, got %q", expectedID, actualID)
		}
		if responseID := rec.Header().Get("X-Request-ID"); responseID != expectedID {
			t.Errorf("expected X-Request-ID %q, got %q", expectedID, responseID)
		}
	})

	t.Run("replaces oversized client request ID", func(t *testing.T) {
		var actualID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actualID = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", maxClientRequestID+1))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if _, err := uuid.Parse(actualID); err != nil {
			t.Errorf("expected generated UUID, got %q", actualID)
		}
	})

	t.Run("unique IDs per request", func(t *testing.T) {
		seen := make(map[string]bool)
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen[GetRequestID(r.Context())] = true
		}))

		for i := 0; i < 50; i++ {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
		}
		if len(seen) != 50 {
			t.Errorf("expected 50 unique IDs, got %d", len(seen))
		}
	})
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}

func TestWithLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := RequestID(WithLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Logger(r.Context()).Info("handled")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	req.Header.Set("X-Request-ID", "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("handled").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", fields["request_id"])
	}
	if fields["method"] != http.MethodPost {
		t.Errorf("expected method POST, got %v", fields["method"])
	}
	if fields["path"] != "/api/v1/jobs" {
		t.Errorf("expected path /api/v1/jobs, got %v", fields["path"])
	}
}

func TestLoggerDefaultsToNop(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("expected non-nil logger")
	}
}
