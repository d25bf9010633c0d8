package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/storage/memory"
)

func TestStorageChecker(t *testing.T) {
	healthy := NewStorageChecker("storage", func(context.Context) error { return nil }, 0)
	if check := healthy.Check(context.Background()); check.Status != StatusHealthy {
		t.Errorf("expected healthy storage, got %+v", check)
	}

	failing := NewStorageChecker("storage", func(context.Context) error { return errors.New("connection refused") }, time.Second)
	check := failing.Check(context.Background())
	if check.Status != StatusUnhealthy || check.Message != "connection refused" {
		t.Errorf("expected unhealthy storage with message, got %+v", check)
	}
}

func TestStorageChecker_Timeout(t *testing.T) {
	checker := NewStorageChecker("storage", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	if check := checker.Check(context.Background()); check.Status != StatusUnhealthy {
		t.Errorf("expected timeout to be unhealthy, got %+v", check)
	}
}

func TestOutboxBacklogChecker_Degraded(t *testing.T) {
	repo := memory.NewOutboxRepository(memory.NewStore())
	for i := 0; i < 3; i++ {
		if _, err := repo.Enqueue(context.Background(), domain.OutboxMessage{AggregateType: domain.AggregateSale, EventType: domain.EventSaleCreated}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	if check := NewOutboxBacklogChecker(repo, 5).Check(context.Background()); check.Status != StatusHealthy {
		t.Errorf("expected healthy outbox under limit, got %+v", check)
	}

	handler := NewHandler("test")
	handler.Register("outbox", NewOutboxBacklogChecker(repo, 2), false)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("degraded service must still answer 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("degraded service must stay ready, got %d", w.Code)
	}
}
