package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the registration gateway.
type Metrics struct {
	Created          prometheus.Counter
	EntitlementsSent prometheus.Counter
	Delivered        prometheus.Counter
	StoreFailures    *prometheus.CounterVec
	CreateDuration   prometheus.Histogram
	UpdateDuration   prometheus.Histogram
	FetchDuration    prometheus.Histogram
}

// New registers the registration metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "handover_registrations_created_total",
			Help: "Total number of homeowner registrations created",
		}),
		EntitlementsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "handover_entitlements_sent_total",
			Help: "Total number of warranty entitlements sent to homeowners",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "handover_entitlements_delivered_total",
			Help: "Total number of entitlement delivery receipts applied",
		}),
		StoreFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "handover_registration_store_failures_total",
			Help: "Registration store calls that failed, by operation",
		}, []string{"operation"}),
		CreateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "handover_registration_create_duration_seconds",
			Help:    "Duration of registration create calls",
			Buckets: storeBuckets,
		}),
		UpdateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "handover_registration_update_duration_seconds",
			Help:    "Duration of registration update calls",
			Buckets: storeBuckets,
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "handover_registration_fetch_duration_seconds",
			Help:    "Duration of registration fetch calls",
			Buckets: storeBuckets,
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.Created.Inc()
}

func (m *Metrics) IncrementEntitlementsSent() {
	if m == nil {
		return
	}
	m.EntitlementsSent.Inc()
}

func (m *Metrics) IncrementDelivered() {
	if m == nil {
		return
	}
	m.Delivered.Inc()
}

func (m *Metrics) IncrementStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(operation).Inc()
}

// ObserveCreate records the duration of a create call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the duration of an update call.
func (m *Metrics) ObserveUpdate(start time.Time) {
	if m == nil {
		return
	}
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}

// ObserveFetch records the duration of a fetch call.
func (m *Metrics) ObserveFetch(start time.Time) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(time.Since(start).Seconds())
}
