package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Resultados de una operación del ledger (label "result").
const (
	ResultOK                = "ok"
	ResultInvalidArgument   = "invalid_argument"
	ResultNotFound          = "not_found"
	ResultInsufficientStock = "insufficient_stock"
	ResultConflict          = "conflict"
	ResultInconsistency     = "inconsistency"
	ResultError             = "error"
)

// Metrics métricas Prometheus del servicio, sobre un registry propio.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ConflictRetries   *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registra las métricas bajo el namespace dado (p. ej. "stock_ledger").
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Operaciones del ledger por tipo y resultado",
		}, []string{"operation", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones del ledger, reintentos incluidos",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		ConflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Reintentos por conflictos de concurrencia",
		}, []string{"operation"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests HTTP por método, ruta y status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duración de requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	registry.MustRegister(
		m.OperationsTotal, m.OperationDuration, m.ConflictRetries,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}

// ObserveOperation implementa inventory.Recorder.
func (m *Metrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, Result(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncConflictRetry implementa inventory.Recorder.
func (m *Metrics) IncConflictRetry(operation string) {
	m.ConflictRetries.WithLabelValues(operation).Inc()
}

// Result clasifica un error de dominio en el label "result".
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrInvalidArgument):
		return ResultInvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return ResultInsufficientStock
	case errors.Is(err, domain.ErrConflict):
		return ResultConflict
	case errors.Is(err, domain.ErrInconsistency):
		return ResultInconsistency
	default:
		return ResultError
	}
}

// Middleware registra cada request HTTP con la ruta declarada (no la URL concreta).
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry acceso al registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
