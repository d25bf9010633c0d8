// Package health отдаёт liveness, readiness и подробный health-отчёт sales-service.
//
// Компоненты делятся на критичные (хранилище продаж) и вспомогательные
// (backlog outbox). Отказ критичного компонента снимает сервис с readiness,
// отказ вспомогательного только переводит отчёт в degraded.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Status представляет статус компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const defaultReportTimeout = 3 * time.Second

// Check результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Critical   bool   `json:"critical"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response отчёт /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет один компонент. Реализация должна уважать дедлайн ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// CheckerFunc превращает функцию пинга в Checker.
type CheckerFunc func(ctx context.Context) error

// Check выполняет функцию и переводит ошибку в StatusUnhealthy.
func (f CheckerFunc) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{Status: StatusHealthy}
	if err := f(ctx); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	check.DurationMs = time.Since(start).Milliseconds()
	return check
}

type component struct {
	checker  Checker
	critical bool
}

// Handler собирает проверки компонентов и отвечает на health-пробы.
type Handler struct {
	mu         sync.RWMutex
	components map[string]component
	version    string
	startTime  time.Time
	timeout    time.Duration
}

// NewHandler создаёт health handler для указанной версии сборки.
func NewHandler(version string) *Handler {
	return &Handler{
		components: make(map[string]component),
		version:    version,
		startTime:  time.Now(),
		timeout:    defaultReportTimeout,
	}
}

// Register добавляет компонент; critical-компоненты влияют на readiness.
func (h *Handler) Register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component{checker: checker, critical: critical}
}

// Report параллельно опрашивает компоненты. onlyCritical ограничивает опрос
// критичными компонентами.
func (h *Handler) Report(ctx context.Context, onlyCritical bool) Response {
	h.mu.RLock()
	components := make(map[string]component, len(h.components))
	for name, c := range h.components {
		if onlyCritical && !c.critical {
			continue
		}
		components[name] = c
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]Check, len(components))
	)
	for name, c := range components {
		wg.Add(1)
		go func(name string, c component) {
			defer wg.Done()
			check := c.checker.Check(ctx)
			check.Name = name
			check.Critical = c.critical
			mu.Lock()
			checks[name] = check
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	return Response{
		Status:        overall(checks),
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
}

func overall(checks map[string]Check) Status {
	status := StatusHealthy
	for _, check := range checks {
		switch {
		case check.Status == StatusUnhealthy && check.Critical:
			return StatusUnhealthy
		case check.Status != StatusHealthy:
			status = StatusDegraded
		}
	}
	return status
}

// ServeHTTP отдаёт полный отчёт; 503 только при отказе критичного компонента.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := h.Report(r.Context(), false)

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler опрашивает только критичные компоненты.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	response := h.Report(r.Context(), true)

	var failed []string
	for name, check := range response.Checks {
		if check.Status == StatusUnhealthy {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready: " + strings.Join(failed, ", ")))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
