package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the generation engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	generationDuration prometheus.Histogram
	generationTotal    *prometheus.CounterVec
	sessionsPlaced     prometheus.Counter
	unplacedRequests   prometheus.Counter
	repairMoves        prometheus.Counter
	conflictsDetected  *prometheus.CounterVec
	conflictsResolved  *prometheus.CounterVec
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of timetable generation runs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generation_runs_total",
		Help: "Generation runs by terminal status",
	}, []string{"status"})

	sessionsPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_sessions_placed_total",
		Help: "Sessions placed by the engine",
	})

	unplacedRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_unplaced_requests_total",
		Help: "Placement requests left unplaced",
	})

	repairMoves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_repair_moves_total",
		Help: "Local repair moves performed during placement",
	})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_detected_total",
		Help: "Conflicts found by scans, by type",
	}, []string{"type"})

	conflictsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_conflicts_resolved_total",
		Help: "Conflicts resolved, by type",
	}, []string{"type"})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		generationDuration,
		generationTotal,
		sessionsPlaced,
		unplacedRequests,
		repairMoves,
		conflictsDetected,
		conflictsResolved,
	)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		generationDuration: generationDuration,
		generationTotal:    generationTotal,
		sessionsPlaced:     sessionsPlaced,
		unplacedRequests:   unplacedRequests,
		repairMoves:        repairMoves,
		conflictsDetected:  conflictsDetected,
		conflictsResolved:  conflictsResolved,
	}
}

// Handler exposes the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveGeneration records the outcome of one generation run.
func (m *MetricsService) ObserveGeneration(status models.PlacementStatus, stats models.GenerationStats, duration time.Duration) {
	m.generationDuration.Observe(duration.Seconds())
	m.generationTotal.WithLabelValues(string(status)).Inc()
	m.sessionsPlaced.Add(float64(stats.SessionsPlaced))
	m.unplacedRequests.Add(float64(stats.Unplaced))
	m.repairMoves.Add(float64(stats.RepairMoves))
}

// ObserveConflicts records scan findings by type.
func (m *MetricsService) ObserveConflicts(conflicts []models.Conflict) {
	for _, conflict := range conflicts {
		m.conflictsDetected.WithLabelValues(string(conflict.Type)).Inc()
	}
}

// ObserveResolution records one resolved conflict.
func (m *MetricsService) ObserveResolution(conflictType models.ConflictType) {
	m.conflictsResolved.WithLabelValues(string(conflictType)).Inc()
}
