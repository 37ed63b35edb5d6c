package telemetry

import (
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	grpcRequestsTotal    *prometheus.CounterVec
	grpcRequestDuration  *prometheus.HistogramVec
	grpcRequestsInFlight prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeCallsTotal   *prometheus.CounterVec
	storeCallDuration *prometheus.HistogramVec

	operationsTotal *prometheus.CounterVec
	smsSendsTotal   *prometheus.CounterVec
	smsSendDuration *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		grpcRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_grpc_requests_total",
				Help: "Total gRPC requests by method and code.",
			},
			[]string{"method", "code"},
		),
		grpcRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_grpc_request_duration_seconds",
				Help:    "gRPC request latency in seconds by method and code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
		grpcRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "identity_grpc_requests_in_flight",
				Help: "Current number of in-flight gRPC requests.",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_http_requests_total",
				Help: "Total HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		storeCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_store_calls_total",
				Help: "Total account store calls by backend, method and status.",
			},
			[]string{"backend", "method", "status"},
		),
		storeCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_store_call_duration_seconds",
				Help:    "Account store call duration in seconds by backend, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "method", "status"},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_operations_total",
				Help: "Account operations by operation and outcome kind.",
			},
			[]string{"operation", "outcome"},
		),
		smsSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_sms_sends_total",
				Help: "SMS delivery attempts by provider and status.",
			},
			[]string{"provider", "status"},
		),
		smsSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_sms_send_duration_seconds",
				Help:    "SMS delivery latency in seconds by provider and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "status"},
		),
	}

	registerer.MustRegister(
		m.grpcRequestsTotal,
		m.grpcRequestDuration,
		m.grpcRequestsInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.storeCallsTotal,
		m.storeCallDuration,
		m.operationsTotal,
		m.smsSendsTotal,
		m.smsSendDuration,
	)

	return m
}

func (m *Metrics) ObserveRPC(method, code string, duration time.Duration) {
	if m == nil {
		return
	}

	m.grpcRequestsTotal.WithLabelValues(method, code).Inc()
	m.grpcRequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}

	m.grpcRequestsInFlight.Inc()
}

func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}

	m.grpcRequestsInFlight.Dec()
}

func (m *Metrics) ObserveHTTP(route, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.httpRequestsTotal.WithLabelValues(route, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, status).Observe(duration.Seconds())
}

func (m *Metrics) ObserveStore(backend, method, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.storeCallsTotal.WithLabelValues(backend, method, status).Inc()
	m.storeCallDuration.WithLabelValues(backend, method, status).Observe(duration.Seconds())
}

// ObserveOperation counts one register/verify/login outcome. outcome is "ok"
// or the error kind.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}

	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveSMS(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.smsSendsTotal.WithLabelValues(provider, status).Inc()
	m.smsSendDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func RegisterDBPoolMetrics(db *sql.DB, registerer prometheus.Registerer) error {
	if db == nil {
		return errors.New("db is nil")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "identity_db_pool_open_connections",
				Help: "Open database connections.",
			},
			func() float64 { return float64(db.Stats().OpenConnections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "identity_db_pool_in_use_connections",
				Help: "In-use database connections.",
			},
			func() float64 { return float64(db.Stats().InUse) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "identity_db_pool_idle_connections",
				Help: "Idle database connections.",
			},
			func() float64 { return float64(db.Stats().Idle) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "identity_db_pool_wait_count_total",
				Help: "Total number of waits for a free connection.",
			},
			func() float64 { return float64(db.Stats().WaitCount) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "identity_db_pool_wait_duration_seconds_total",
				Help: "Total time blocked waiting for a free connection in seconds.",
			},
			func() float64 { return db.Stats().WaitDuration.Seconds() },
		),
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}

	return nil
}
