package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
)

// saleEvent — payload событий продажи в outbox.
type saleEvent struct {
	SaleID        string               `json:"sale_id"`
	CustomerID    string               `json:"customer_id,omitempty"`
	Status        domain.SaleStatus    `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Total         string               `json:"total"`
	NetRevenue    string               `json:"net_revenue"`
	Lines         int                  `json:"lines"`
	Promotions    []string             `json:"promotions,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    string               `json:"occurred_at"`
}

// emit добавляет событие в timeline и outbox в той же транзакции, что и изменение продажи.
func emit(ctx context.Context, tx domain.Tx, sale domain.Sale, eventType, reason string, at time.Time) error {
	if err := tx.Timeline().Append(ctx, domain.TimelineEvent{
		SaleID:   sale.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: at,
	}); err != nil {
		return fmt.Errorf("append timeline %s: %w", eventType, err)
	}

	promotions := make([]string, 0, len(sale.AppliedPromotions))
	for _, applied := range sale.AppliedPromotions {
		promotions = append(promotions, applied.PromotionID)
	}
	payload, err := json.Marshal(saleEvent{
		SaleID:        sale.ID,
		CustomerID:    sale.CustomerID,
		Status:        sale.Status,
		PaymentStatus: sale.PaymentStatus,
		Total:         money.Of(sale.Total).StringFixed(money.Scale),
		NetRevenue:    money.Of(sale.NetRevenue).StringFixed(money.Scale),
		Lines:         len(sale.Lines),
		Promotions:    promotions,
		Reason:        reason,
		OccurredAt:    at.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.AggregateSale,
		AggregateID:   sale.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}
