package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// errorBody — тело ответа с ошибкой.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	Field string `json:"field,omitempty"`

	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`

	CustomerID string `json:"customer_id,omitempty"`

	SaleID    string `json:"sale_id,omitempty"`
	Current   string `json:"current_status,omitempty"`
	Attempted string `json:"attempted_status,omitempty"`

	ResourceType string             `json:"resource_type,omitempty"`
	ResourceID   string             `json:"resource_id,omitempty"`
	Dependents   []domain.Dependent `json:"dependents,omitempty"`
	Suggestion   string             `json:"suggestion,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// statusFor сопоставляет ошибку домена с HTTP-статусом и телом ответа.
func statusFor(err error) (int, errorBody) {
	var (
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
		transition *domain.InvalidStateTransitionError
		integrity  *domain.DataIntegrityViolation
		points     *domain.LoyaltyPointsError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Code: "validation_error", Message: validation.Message, Field: validation.Field}
	case errors.As(err, &stock):
		available := stock.Available
		return http.StatusConflict, errorBody{
			Code:      "insufficient_stock",
			Message:   stock.Error(),
			ProductID: stock.ProductID,
			Requested: stock.Requested,
			Available: &available,
		}
	case errors.As(err, &transition):
		return http.StatusConflict, errorBody{
			Code:      "invalid_state_transition",
			Message:   transition.Error(),
			SaleID:    transition.SaleID,
			Current:   string(transition.Current),
			Attempted: string(transition.Attempted),
		}
	case errors.As(err, &integrity):
		return http.StatusConflict, errorBody{
			Code:         "data_integrity_violation",
			Message:      integrity.Error(),
			ResourceType: string(integrity.ResourceType),
			ResourceID:   integrity.ResourceID,
			Dependents:   integrity.Dependents,
			Suggestion:   integrity.Suggestion,
		}
	case errors.As(err, &points):
		available := points.Available
		return http.StatusConflict, errorBody{
			Code:       "insufficient_loyalty_points",
			Message:    points.Error(),
			CustomerID: points.CustomerID,
			Requested:  points.Requested,
			Available:  &available,
		}
	case errors.Is(err, domain.ErrStockConflict):
		return http.StatusConflict, errorBody{Code: "insufficient_stock", Message: err.Error()}
	case errors.Is(err, domain.ErrLoyaltyPointsInsufficient):
		return http.StatusConflict, errorBody{Code: "insufficient_loyalty_points", Message: "insufficient loyalty points"}
	case errors.Is(err, domain.ErrPromotionUsageExhausted):
		return http.StatusConflict, errorBody{Code: "promotion_usage_exhausted", Message: "promotion usage limit reached, retry the request"}
	case domain.IsNotFound(err):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, errorBody{Code: "version_conflict", Message: "sale was modified concurrently, retry the request"}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Code: "already_exists", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal error"}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := statusFor(err)
	entry := h.logger.WithFields(log.Fields{
		"method": c.Request.Method,
		"route":  c.FullPath(),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.JSON(status, errorResponse{Error: body})
}

func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Code: "validation_error", Field: field, Message: message}})
}
