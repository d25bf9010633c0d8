package rest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const (
	// IdempotencyKeyHeader — заголовок с ключом идемпотентности.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader выставляется в ответах, восстановленных из кэша.
	ReplayedHeader = "Idempotent-Replayed"

	// createdSaleKey — ключ gin.Context, под которым createSale оставляет id новой продажи.
	createdSaleKey = "created_sale_id"
)

// bodyRecorder дублирует тело ответа в буфер, чтобы сохранить его под ключом.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(data []byte) (int, error) {
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// idempotent оборачивает обработчик: первый запрос с ключом выполняется и его ответ
// сохраняется, повтор с тем же телом получает сохранённый ответ. Без заголовка
// запрос выполняется как обычно.
func (h *Handler) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" || h.idempotency == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			badRequest(c, "body", "failed to read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		logger := h.logger.WithField("idempotency_key", key)
		reqHash := requestHash(c.Request.Method+" "+c.FullPath(), body)

		record, err := h.idempotency.CreateProcessing(ctx, key, reqHash, h.now().Add(h.idempotencyTTL))
		if err != nil {
			h.replay(c, logger, err, record)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// Ответ сохраняется и после отмены запроса клиентом.
		storeCtx := context.WithoutCancel(ctx)
		resp := domain.IdempotencyResponse{
			SaleID:     c.GetString(createdSaleKey),
			HTTPStatus: recorder.Status(),
			Body:       recorder.body.Bytes(),
		}
		status := domain.IdempotencyStatusDone
		if resp.HTTPStatus >= http.StatusBadRequest {
			status = domain.IdempotencyStatusFailed
		}
		if err := h.idempotency.Settle(storeCtx, key, status, resp); err != nil {
			logger.WithError(err).WithField("sale_id", resp.SaleID).Warn("failed to store idempotent response")
		}
	}
}

func (h *Handler) replay(c *gin.Context, logger *log.Entry, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: errorBody{
			Code:    "idempotency_key_reused",
			Message: "idempotency key is already used with different request payload",
		}})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Replayable():
			logger.WithField("sale_id", record.SaleID).Debug("replaying stored sale response")
			c.Header(ReplayedHeader, "true")
			if record.SaleID != "" {
				c.Header("Location", salePath(record.SaleID))
			}
			c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
		case record.Status == domain.IdempotencyStatusProcessing:
			c.JSON(http.StatusConflict, errorResponse{Error: errorBody{
				Code:    "request_in_progress",
				Message: "request with the same idempotency key is already processing",
			}})
		default:
			h.fail(c, errors.New("idempotency record has no stored response"))
		}
	default:
		logger.WithError(createErr).Warn("failed to create idempotency record")
		h.fail(c, createErr)
	}
}

// requestHash считает sha256 от "route:тело"; JSON приводится к компактной форме,
// чтобы форматирование клиента не меняло hash.
func requestHash(route string, body []byte) string {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil {
		body = compact.Bytes()
	}

	payload := make([]byte, 0, len(route)+1+len(body))
	payload = append(payload, route...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
