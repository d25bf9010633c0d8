// Package metrics содержит Prometheus-метрики продаж, операций удаления и HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Результаты операций для label "result".
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// SalesMetrics содержит метрики движка продаж и guard'а целостности.
// Нулевой указатель допустим: все методы становятся no-op.
type SalesMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rejections        *prometheus.CounterVec
	completedRevenue  prometheus.Counter
	deletions         *prometheus.CounterVec
	timelineEvents    prometheus.Counter
	outboxEvents      prometheus.Counter
	pendingSales      prometheus.Gauge
}

// NewSalesMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewSalesMetrics() *SalesMetrics {
	return NewSalesMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSalesMetricsWithRegisterer регистрирует метрики в указанном registerer.
func NewSalesMetricsWithRegisterer(registerer prometheus.Registerer) *SalesMetrics {
	return &SalesMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_operations_total",
			Help: "Total number of sale operations grouped by operation and result.",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sales_operation_duration_seconds",
			Help:    "Duration of sale operations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		rejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_rejections_total",
			Help: "Total number of rejected sale operations grouped by reason.",
		}, []string{"reason"}),
		completedRevenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_completed_revenue_total",
			Help: "Sum of totals of completed sales.",
		}),
		deletions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_integrity_deletions_total",
			Help: "Total number of guarded deletions grouped by entity type, mode and result.",
		}, []string{"entity_type", "mode", "result"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_timeline_events_total",
			Help: "Total number of sale timeline events recorded.",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_outbox_events_total",
			Help: "Total number of events enqueued into the transactional outbox.",
		}),
		pendingSales: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "sales_pending_sales",
			Help: "Number of sales created and not yet completed or cancelled by this process.",
		}),
	}
}

// RecordOperation фиксирует исход и длительность операции над продажей.
func (m *SalesMetrics) RecordOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRejection увеличивает счётчик отказов по причине.
func (m *SalesMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordCompletedRevenue добавляет итог завершённой продажи.
func (m *SalesMetrics) RecordCompletedRevenue(total decimal.Decimal) {
	if m == nil || !total.IsPositive() {
		return
	}
	m.completedRevenue.Add(total.InexactFloat64())
}

// RecordDeletion фиксирует результат удаления через guard.
func (m *SalesMetrics) RecordDeletion(entityType string, force bool, result string) {
	if m == nil {
		return
	}
	mode := "safe"
	if force {
		mode = "force"
	}
	m.deletions.WithLabelValues(entityType, mode, result).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SalesMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SalesMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordSalePending увеличивает число незавершённых продаж.
func (m *SalesMetrics) RecordSalePending() {
	if m == nil {
		return
	}
	m.pendingSales.Inc()
}

// RecordSaleSettled уменьшает число незавершённых продаж.
func (m *SalesMetrics) RecordSaleSettled() {
	if m == nil {
		return
	}
	m.pendingSales.Dec()
}
