package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// timelineRepository хранит события продажи внутри снимка состояния.
type timelineRepository struct {
	tx *memTx
}

// Append добавляет событие; слайс копируется, чтобы не трогать предыдущий снимок.
func (r *timelineRepository) Append(_ context.Context, event domain.TimelineEvent) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	events := append(append([]domain.TimelineEvent(nil), r.tx.st.timeline[event.SaleID]...), event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.tx.st.timeline[event.SaleID] = events
	return nil
}

// List возвращает события продажи в хронологическом порядке.
func (r *timelineRepository) List(_ context.Context, saleID string) ([]domain.TimelineEvent, error) {
	events := r.tx.st.timeline[saleID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
