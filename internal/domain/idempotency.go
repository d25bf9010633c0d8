package domain

import (
	"fmt"
	"time"
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что запрос завершён успешно и ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что обработка завершилась ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord хранит состояние обработки запроса с idempotency-key.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	// SaleID — продажа, созданная запросом; пуст, пока запрос не завершён или если он отклонён.
	SaleID       string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyResponse — итог запроса, сохраняемый под ключом.
type IdempotencyResponse struct {
	SaleID     string
	HTTPStatus int
	Body       []byte
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Expired сообщает, что TTL ключа истёк к моменту now и ключ можно занять заново.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}

// Replayable сообщает, что по ключу сохранён готовый ответ для повтора.
func (r IdempotencyRecord) Replayable() bool {
	return r.Status != IdempotencyStatusProcessing && r.HTTPStatus != 0 && len(r.ResponseBody) > 0
}

// Settle переводит запись в status с итогом resp. Processing не является итогом.
func (r *IdempotencyRecord) Settle(status IdempotencyStatus, resp IdempotencyResponse, at time.Time) error {
	if status == IdempotencyStatusProcessing || !status.Valid() {
		return fmt.Errorf("settle idempotency key %s: unexpected status %q", r.Key, status)
	}
	r.Status = status
	r.SaleID = resp.SaleID
	r.HTTPStatus = resp.HTTPStatus
	r.ResponseBody = append([]byte(nil), resp.Body...)
	r.UpdatedAt = at
	return nil
}
