package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/service/catalog"
	"github.com/vladislavdragonenkov/salescore/internal/service/integrity"
	"github.com/vladislavdragonenkov/salescore/internal/service/reporting"
	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
	"github.com/vladislavdragonenkov/salescore/internal/storage/memory"
)

type HandlerTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	idem   domain.IdempotencyRepository
	router *gin.Engine
}

func TestHandlerTestSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.idem = memory.NewIdempotencyRepository()

	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "rest-test")
	registry := prometheus.NewRegistry()
	salesMetrics := metrics.NewSalesMetricsWithRegisterer(registry)

	handler := NewHandler(Services{
		Sales:       sales.NewEngine(s.store, sales.WithLogger(logger), sales.WithMetrics(salesMetrics)),
		Guard:       integrity.NewGuard(s.store, integrity.WithLogger(logger), integrity.WithMetrics(salesMetrics)),
		Reports:     reporting.NewEngine(s.store, reporting.WithLogger(logger)),
		Catalog:     catalog.NewService(s.store, catalog.WithLogger(logger)),
		Idempotency: s.idem,
	}, WithLogger(logger))
	s.router = NewRouter(handler, metrics.NewHTTPMetrics(registry))

	s.Require().NoError(s.store.Do(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Products().Create(ctx, domain.Product{
			ID: "p-1", Name: "Widget", Price: decimal.NewFromInt(20), StockQuantity: 5, Active: true,
		}); err != nil {
			return err
		}
		return tx.Customers().Create(ctx, domain.Customer{ID: "c-1", Name: "Alice", Address: "Austin, USA"})
	}))
}

func (s *HandlerTestSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *HandlerTestSuite) errorCode(rec *httptest.ResponseRecorder) string {
	body := s.decode(rec)
	errBody, ok := body["error"].(map[string]any)
	s.Require().True(ok, rec.Body.String())
	return errBody["code"].(string)
}

func (s *HandlerTestSuite) createSale(qty int) string {
	rec := s.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id":    "c-1",
		"payment_method": "card",
		"lines":          []map[string]any{{"product_id": "p-1", "quantity": qty}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return s.decode(rec)["id"].(string)
}

func (s *HandlerTestSuite) TestSaleLifecycle() {
	rec := s.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id":    "c-1",
		"payment_method": "card",
		"lines":          []map[string]any{{"product_id": "p-1", "quantity": 2}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	created := s.decode(rec)
	s.Equal("pending", created["status"])
	s.Equal("40.00", created["total"])
	saleID := created["id"].(string)

	rec = s.do(http.MethodPut, "/api/v1/sales/"+saleID+"/lines", map[string]any{
		"lines": []map[string]any{{"product_id": "p-1", "quantity": 3}},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("60.00", s.decode(rec)["total"])

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	completed := s.decode(rec)
	s.Equal("completed", completed["status"])
	s.Equal("paid", completed["payment_status"])

	rec = s.do(http.MethodGet, "/api/v1/sales/"+saleID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	timeline := s.decode(rec)["timeline"].([]any)
	s.GreaterOrEqual(len(timeline), 3)

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("invalid_state_transition", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", map[string]any{"reason": "customer request"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("cancelled", s.decode(rec)["status"])

	rec = s.do(http.MethodGet, "/api/v1/customers/c-1/sales?limit=10", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Len(s.decode(rec)["sales"].([]any), 1)
}

func (s *HandlerTestSuite) TestCreateSaleErrors() {
	cases := map[string]struct {
		body   any
		status int
		code   string
	}{
		"malformed json":     {`{"lines":`, http.StatusBadRequest, "validation_error"},
		"no lines":           {map[string]any{"lines": []any{}}, http.StatusBadRequest, "validation_error"},
		"insufficient stock": {map[string]any{"lines": []map[string]any{{"product_id": "p-1", "quantity": 6}}}, http.StatusConflict, "insufficient_stock"},
		"unknown customer": {
			map[string]any{"customer_id": "ghost", "lines": []map[string]any{{"product_id": "p-1", "quantity": 1}}},
			http.StatusBadRequest, "validation_error",
		},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			rec := s.do(http.MethodPost, "/api/v1/sales", tc.body)
			s.Equal(tc.status, rec.Code, rec.Body.String())
			s.Equal(tc.code, s.errorCode(rec))
		})
	}

	rec := s.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"lines": []map[string]any{{"product_id": "p-1", "quantity": 6}},
	})
	errBody := s.decode(rec)["error"].(map[string]any)
	s.Equal("p-1", errBody["product_id"])
	s.EqualValues(6, errBody["requested"])
	s.EqualValues(5, errBody["available"])
}

func (s *HandlerTestSuite) TestGetSaleNotFound() {
	rec := s.do(http.MethodGet, "/api/v1/sales/missing", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", s.errorCode(rec))
}

func (s *HandlerTestSuite) TestIdempotentCreateReplaysResponse() {
	body := map[string]any{"lines": []map[string]any{{"product_id": "p-1", "quantity": 1}}}

	first := s.do(http.MethodPost, "/api/v1/sales", body, IdempotencyKeyHeader, "key-1")
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())

	second := s.do(http.MethodPost, "/api/v1/sales", body, IdempotencyKeyHeader, "key-1")
	s.Require().Equal(http.StatusCreated, second.Code)
	s.Equal("true", second.Header().Get(ReplayedHeader))
	s.JSONEq(first.Body.String(), second.Body.String())

	saleID := s.decode(first)["id"].(string)
	s.Equal("/api/v1/sales/"+saleID, first.Header().Get("Location"))
	s.Equal(first.Header().Get("Location"), second.Header().Get("Location"))
	record, err := s.idem.Get(s.ctx, "key-1")
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusDone, record.Status)
	s.Equal(saleID, record.SaleID)

	var stock int
	s.Require().NoError(s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		p, err := tx.Products().Get(ctx, "p-1")
		stock = p.StockQuantity
		return err
	}))
	s.Equal(4, stock, "replay must not reserve stock twice")

	other := s.do(http.MethodPost, "/api/v1/sales",
		map[string]any{"lines": []map[string]any{{"product_id": "p-1", "quantity": 2}}},
		IdempotencyKeyHeader, "key-1")
	s.Equal(http.StatusUnprocessableEntity, other.Code)
	s.Equal("idempotency_key_reused", s.errorCode(other))
}

func (s *HandlerTestSuite) TestIdempotentCreateReplaysFailureAndInFlight() {
	body := map[string]any{"lines": []map[string]any{{"product_id": "p-1", "quantity": 9}}}
	first := s.do(http.MethodPost, "/api/v1/sales", body, IdempotencyKeyHeader, "key-fail")
	s.Require().Equal(http.StatusConflict, first.Code)

	replayed := s.do(http.MethodPost, "/api/v1/sales", body, IdempotencyKeyHeader, "key-fail")
	s.Equal(http.StatusConflict, replayed.Code)
	s.Equal("insufficient_stock", s.errorCode(replayed))
	failed, err := s.idem.Get(s.ctx, "key-fail")
	s.Require().NoError(err)
	s.Equal(domain.IdempotencyStatusFailed, failed.Status)
	s.Empty(failed.SaleID)

	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	_, err = s.idem.CreateProcessing(s.ctx, "key-busy", requestHash("POST /api/v1/sales", raw), time.Now().Add(time.Hour))
	s.Require().NoError(err)
	busy := s.do(http.MethodPost, "/api/v1/sales", body, IdempotencyKeyHeader, "key-busy")
	s.Equal(http.StatusConflict, busy.Code)
	s.Equal("request_in_progress", s.errorCode(busy))
}

func (s *HandlerTestSuite) TestDeleteCustomerSafeAndForce() {
	s.createSale(1)

	rec := s.do(http.MethodDelete, "/api/v1/customers/c-1", nil)
	s.Require().Equal(http.StatusConflict, rec.Code, rec.Body.String())
	errBody := s.decode(rec)["error"].(map[string]any)
	s.Equal("data_integrity_violation", errBody["code"])
	s.Equal("customer", errBody["resource_type"])
	deps := errBody["dependents"].([]any)
	s.Require().Len(deps, 1)
	s.Equal("sale", deps[0].(map[string]any)["type"])
	s.NotEmpty(errBody["suggestion"])

	rec = s.do(http.MethodDelete, "/api/v1/customers/c-1?force=maybe", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/customers/c-1?force=true", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	deleted := s.decode(rec)["deleted"].(map[string]any)
	s.EqualValues(1, deleted["sale"])

	rec = s.do(http.MethodGet, "/api/v1/customers/c-1", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestCatalogEndpoints() {
	rec := s.do(http.MethodPost, "/api/v1/categories", map[string]any{"name": "Tools"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	categoryID := s.decode(rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Drill", "price": "49.90", "stock_quantity": 3, "category_id": categoryID,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	product := s.decode(rec)
	s.Equal("49.90", product["price"])
	productID := product["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "Bad", "price": "-1"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("price", s.decode(rec)["error"].(map[string]any)["field"])

	rec = s.do(http.MethodDelete, "/api/v1/categories/"+categoryID, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.EqualValues(1, s.decode(rec)["detached"].(map[string]any)["product"])

	rec = s.do(http.MethodPost, "/api/v1/products/"+productID+"/deactivate", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(false, s.decode(rec)["active"])

	rec = s.do(http.MethodPost, "/api/v1/promotions", map[string]any{
		"name": "Spring", "type": "percentage", "value": "10",
		"starts_at": "2026-03-01T00:00:00Z", "coupon_code": "SPRING10",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("all", s.decode(rec)["eligibility"])

	rec = s.do(http.MethodPost, "/api/v1/suppliers", map[string]any{"name": "ACME"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	supplierID := s.decode(rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"supplier_id": supplierID,
		"lines":       []map[string]any{{"product_id": "p-1", "quantity": 10, "unit_cost": "12.5"}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("draft", s.decode(rec)["status"])

	rec = s.do(http.MethodDelete, "/api/v1/suppliers/"+supplierID, nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/products/p-1", nil)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerTestSuite) TestReturnsEndpoints() {
	saleID := s.createSale(2)
	rec := s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	lineID := s.decode(rec)["lines"].([]any)[0].(map[string]any)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/returns", map[string]any{
		"sale_id": saleID,
		"reason":  "damaged",
		"items":   []map[string]any{{"sale_line_id": lineID, "quantity": 1}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	ret := s.decode(rec)
	returnID := ret["id"].(string)
	s.Equal("20.00", ret["items"].([]any)[0].(map[string]any)["refund_amount"])

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("data_integrity_violation", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/api/v1/returns/"+returnID+"/cancel", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("cancelled", s.decode(rec)["status"])

	rec = s.do(http.MethodGet, "/api/v1/returns/"+returnID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", nil)
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *HandlerTestSuite) TestSalesSummary() {
	saleID := s.createSale(2)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil).Code)
	s.createSale(1)

	today := time.Now().UTC().Format(dateLayout)
	rec := s.do(http.MethodGet, "/api/v1/reports/summary?from="+today+"&to="+today, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	summary := s.decode(rec)
	s.EqualValues(2, summary["total_sales"])
	s.EqualValues(1, summary["completed_sales"])
	s.Equal("40.00", summary["total_revenue"])
	s.Equal("50.00", summary["conversion_rate"])
	s.Nil(summary["revenue_growth"])
	s.Equal("40.00", summary["revenue_by_region"].(map[string]any)["USA"])
	s.Len(summary["top_products"].([]any), 1)
}

func (s *HandlerTestSuite) TestSalesSummaryRejectsBadDates() {
	cases := map[string]string{
		"missing from": "/api/v1/reports/summary?to=2026-01-01",
		"bad format":   "/api/v1/reports/summary?from=01/01/2026&to=2026-01-02",
		"reversed":     "/api/v1/reports/summary?from=2026-02-01&to=2026-01-01",
	}
	for name, path := range cases {
		s.Run(name, func() {
			rec := s.do(http.MethodGet, path, nil)
			s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func (s *HandlerTestSuite) TestUpdateCompletedSaleIsStateConflict() {
	saleID := s.createSale(1)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil).Code)

	rec := s.do(http.MethodPut, "/api/v1/sales/"+saleID+"/lines", map[string]any{
		"lines": []map[string]any{{"product_id": "p-1", "quantity": 2}},
	})
	s.Require().Equal(http.StatusConflict, rec.Code, rec.Body.String())
	errBody := s.decode(rec)["error"].(map[string]any)
	s.Equal("invalid_state_transition", errBody["code"])
	s.Equal("completed", errBody["current_status"])
	s.Equal("pending", errBody["attempted_status"])
}

func (s *HandlerTestSuite) TestCancelCompletedSaleAfterPointsSpent() {
	saleID := s.createSale(3)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/complete", nil).Code)

	var earned int
	s.Require().NoError(s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		customer, err := tx.Customers().Get(ctx, "c-1")
		earned = customer.LoyaltyPoints
		return err
	}))
	s.Require().Positive(earned)

	rec := s.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"customer_id":              "c-1",
		"payment_method":           "card",
		"loyalty_points_to_redeem": earned,
		"lines":                    []map[string]any{{"product_id": "p-1", "quantity": 1}},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/sales/"+saleID+"/cancel", map[string]any{"reason": "late refund"})
	s.Require().Equal(http.StatusConflict, rec.Code, rec.Body.String())
	errBody := s.decode(rec)["error"].(map[string]any)
	s.Equal("insufficient_loyalty_points", errBody["code"])
	s.Equal("c-1", errBody["customer_id"])
	s.EqualValues(earned, errBody["requested"])
	s.EqualValues(0, errBody["available"])
}

func TestStatusFor_BusinessRejections(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "loyalty points typed", err: fmt.Errorf("cancel: %w", &domain.LoyaltyPointsError{CustomerID: "c-1", Requested: 5}), wantCode: http.StatusConflict, wantBody: "insufficient_loyalty_points"},
		{name: "loyalty points sentinel", err: fmt.Errorf("redeem: %w", domain.ErrLoyaltyPointsInsufficient), wantCode: http.StatusConflict, wantBody: "insufficient_loyalty_points"},
		{name: "promotion exhausted", err: fmt.Errorf("promotion promo-1: %w", domain.ErrPromotionUsageExhausted), wantCode: http.StatusConflict, wantBody: "promotion_usage_exhausted"},
		{name: "stock conflict", err: fmt.Errorf("adjust: %w", domain.ErrStockConflict), wantCode: http.StatusConflict, wantBody: "insufficient_stock"},
		{name: "state transition", err: &domain.InvalidStateTransitionError{SaleID: "s-1", Current: domain.SaleStatusCompleted, Attempted: domain.SaleStatusPending}, wantCode: http.StatusConflict, wantBody: "invalid_state_transition"},
		{name: "storage failure", err: errors.New("connection reset"), wantCode: http.StatusInternalServerError, wantBody: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := statusFor(tt.err)
			if code != tt.wantCode || body.Code != tt.wantBody {
				t.Fatalf("statusFor(%v) = %d %s, want %d %s", tt.err, code, body.Code, tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestRequestHashIgnoresFormatting(t *testing.T) {
	compact := requestHash("POST /api/v1/sales", []byte(`{"lines":[{"product_id":"p-1","quantity":1}]}`))
	spaced := requestHash("POST /api/v1/sales", []byte("{ \"lines\": [ {\"product_id\": \"p-1\", \"quantity\": 1} ] }"))
	other := requestHash("POST /api/v1/sales", []byte(`{"lines":[{"product_id":"p-1","quantity":2}]}`))

	if compact != spaced {
		t.Fatalf("expected formatting-insensitive hash")
	}
	if compact == other {
		t.Fatalf("expected different payloads to hash differently")
	}
}
