package kafka

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// ErrCircuitOpen возвращается, пока брокер считается недоступным.
var ErrCircuitOpen = fmt.Errorf("kafka publisher circuit is open: %w", domain.ErrPublisherUnavailable)

// CircuitState — состояние предохранителя.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerPublisher размыкает публикацию после maxFailures ошибок подряд
// и пропускает одну пробную попытку по истечении resetTimeout.
type BreakerPublisher struct {
	next         domain.OutboxPublisher
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *log.Entry

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
}

// NewBreakerPublisher оборачивает next предохранителем.
func NewBreakerPublisher(next domain.OutboxPublisher, maxFailures int, resetTimeout time.Duration, logger *log.Entry) *BreakerPublisher {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-breaker")
	}
	return &BreakerPublisher{
		next:         next,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       logger,
	}
}

// State возвращает текущее состояние предохранителя.
func (b *BreakerPublisher) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Publish передаёт событие дальше, если цепь не разомкнута.
func (b *BreakerPublisher) Publish(event domain.OutboxMessage) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := b.next.Publish(event)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == CircuitHalfOpen || b.failures >= b.maxFailures {
			if b.state != CircuitOpen {
				b.logger.WithField("failures", b.failures).Warn("kafka circuit opened")
			}
			b.state = CircuitOpen
		}
		return err
	}
	if b.state == CircuitHalfOpen {
		b.logger.Info("kafka circuit closed")
	}
	b.state = CircuitClosed
	b.failures = 0
	return nil
}

func (b *BreakerPublisher) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != CircuitOpen {
		return nil
	}
	if b.now().Sub(b.lastFailure) < b.resetTimeout {
		return ErrCircuitOpen
	}
	b.state = CircuitHalfOpen
	return nil
}

var _ domain.OutboxPublisher = (*BreakerPublisher)(nil)
