package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func ok(context.Context) error { return nil }

func TestHandler_Report(t *testing.T) {
	down := CheckerFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name       string
		register   func(h *Handler)
		wantStatus Status
		wantCode   int
	}{
		{
			name:       "no components",
			register:   func(*Handler) {},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name: "all healthy",
			register: func(h *Handler) {
				h.Register("storage", CheckerFunc(ok), true)
				h.Register("outbox", CheckerFunc(ok), false)
			},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name: "auxiliary component down",
			register: func(h *Handler) {
				h.Register("storage", CheckerFunc(ok), true)
				h.Register("outbox", down, false)
			},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name: "critical component down",
			register: func(h *Handler) {
				h.Register("storage", down, true)
				h.Register("outbox", CheckerFunc(ok), false)
			},
			wantStatus: StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.2.3")
			tt.register(handler)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("expected code %d, got %d", tt.wantCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected json content type, got %q", ct)
			}

			var response Response
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, response.Status)
			}
			if response.Version != "v1.2.3" {
				t.Errorf("expected version v1.2.3, got %s", response.Version)
			}
		})
	}
}

func TestHandler_ReportFillsNameAndCriticality(t *testing.T) {
	handler := NewHandler("test")
	handler.Register("storage", CheckerFunc(func(context.Context) error { return errors.New("refused") }), true)

	response := handler.Report(context.Background(), false)
	check, found := response.Checks["storage"]
	if !found {
		t.Fatal("expected storage check in report")
	}
	if check.Name != "storage" || !check.Critical || check.Message != "refused" {
		t.Errorf("unexpected check: %+v", check)
	}
}

func TestHandler_ReadinessSkipsAuxiliaryComponents(t *testing.T) {
	var auxCalls atomic.Int32
	handler := NewHandler("test")
	handler.Register("storage", CheckerFunc(ok), true)
	handler.Register("outbox", CheckerFunc(func(context.Context) error {
		auxCalls.Add(1)
		return errors.New("backlog")
	}), false)

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("expected ready, got %d %q", w.Code, w.Body.String())
	}
	if auxCalls.Load() != 0 {
		t.Errorf("readiness must not poll auxiliary components, polled %d times", auxCalls.Load())
	}
}

func TestHandler_ReadinessListsFailedComponents(t *testing.T) {
	handler := NewHandler("test")
	handler.Register("storage", CheckerFunc(func(context.Context) error { return errors.New("down") }), true)
	handler.Register("cache", CheckerFunc(func(context.Context) error { return errors.New("down") }), true)

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if got := w.Body.String(); got != "not ready: cache, storage" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestHandler_ReportHonoursTimeout(t *testing.T) {
	handler := NewHandler("test")
	handler.timeout = 20 * time.Millisecond
	handler.Register("storage", CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), true)

	start := time.Now()
	response := handler.Report(context.Background(), false)
	if time.Since(start) > time.Second {
		t.Fatalf("report must stop at the deadline, took %s", time.Since(start))
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy after timeout, got %s", response.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
}
