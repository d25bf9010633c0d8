package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const defaultSaleKeyTTL = 24 * time.Hour

// saleKeys хранит ключи POST /sales отдельно от снимков Store: ключ занимается
// до единицы работы продажи и переживает её откат.
type saleKeys struct {
	mu   sync.Mutex
	keys map[string]domain.IdempotencyRecord
	now  func() time.Time
}

// NewIdempotencyRepository создаёт in-memory хранилище ключей идемпотентности для POST /sales.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &saleKeys{
		keys: make(map[string]domain.IdempotencyRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *saleKeys) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	case requestHash == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := s.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultSaleKeyTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.keys[key]; ok && !held.Expired(now) {
		err := domain.ErrIdempotencyKeyAlreadyExists
		if held.RequestHash != requestHash {
			err = domain.ErrIdempotencyHashMismatch
		}
		return copyRecord(held), err
	}

	claimed := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.keys[key] = claimed
	return copyRecord(claimed), nil
}

func (s *saleKeys) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.keys[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(held), nil
}

func (s *saleKeys) Settle(_ context.Context, key string, status domain.IdempotencyStatus, resp domain.IdempotencyResponse) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.keys[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err := held.Settle(status, resp, s.now()); err != nil {
		return err
	}
	s.keys[key] = held
	return nil
}

// DeleteExpired удаляет ключи с истёкшим TTL, начиная с самых старых.
func (s *saleKeys) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, held := range s.keys {
		if held.Expired(before) {
			expired = append(expired, held)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].TTLAt.Before(expired[j].TTLAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, held := range expired {
		delete(s.keys, held.Key)
	}
	return len(expired), nil
}

func copyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

var _ domain.IdempotencyRepository = (*saleKeys)(nil)
