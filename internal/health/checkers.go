package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const defaultCheckTimeout = 2 * time.Second

// StorageChecker проверяет доступность хранилища продаж.
type StorageChecker struct {
	name    string
	ping    func(ctx context.Context) error
	timeout time.Duration
}

// NewStorageChecker создаёт проверку хранилища; timeout<=0 заменяется значением по умолчанию.
func NewStorageChecker(name string, ping func(ctx context.Context) error, timeout time.Duration) *StorageChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &StorageChecker{name: name, ping: ping, timeout: timeout}
}

// Check пингует хранилище с собственным таймаутом внутри дедлайна ctx.
func (c *StorageChecker) Check(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	check := CheckerFunc(c.ping).Check(ctx)
	check.Name = c.name
	return check
}

// OutboxBacklogChecker переводит сервис в degraded, когда outbox не успевает публиковать события.
type OutboxBacklogChecker struct {
	repo       domain.OutboxRepository
	maxPending int
}

// NewOutboxBacklogChecker создаёт проверку размера очереди outbox.
func NewOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) *OutboxBacklogChecker {
	return &OutboxBacklogChecker{repo: repo, maxPending: maxPending}
}

// Check сравнивает число неотправленных событий с порогом.
func (c *OutboxBacklogChecker) Check(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
	defer cancel()

	start := time.Now()
	stats, err := c.repo.Stats(ctx)
	check := Check{Name: "outbox", Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case c.maxPending > 0 && stats.PendingCount > c.maxPending:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending events exceed limit %d", stats.PendingCount, c.maxPending)
	}
	return check
}
