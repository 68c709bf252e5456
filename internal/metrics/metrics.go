package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reduction outcomes
const (
	OutcomeUnchanged = "unchanged"
	OutcomeReduced   = "reduced"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)

var (
	// reductionsTotal counts reducer runs by outcome
	reductionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "galleryroom_reductions_total",
		Help: "Image reductions by outcome",
	}, []string{"outcome"})

	reductionTries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "galleryroom_reduction_tries",
		Help:    "Encodes attempted before a reduction fit the budget",
		Buckets: []float64{1, 2, 5, 11, 22, 44, 99},
	})

	serviceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "galleryroom_service_requests_total",
		Help: "Outbound prediction and gallery requests by result",
	}, []string{"service", "result"})

	serviceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "galleryroom_service_duration_seconds",
		Help:    "Outbound request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})

	// staleDiscards counts async results dropped because a newer request superseded them
	staleDiscards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "galleryroom_stale_results_total",
		Help: "Async results discarded after being superseded",
	}, []string{"step"})

	rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "galleryroom_carousel_rotations_total",
		Help: "Accepted carousel rotations by input kind",
	}, []string{"kind"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "galleryroom_sessions",
		Help: "Gallery sessions held in memory",
	})
)

// ObserveReduction records a reducer run
func ObserveReduction(outcome string, tries int) {
	reductionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeReduced {
		reductionTries.Observe(float64(tries))
	}
}

// ObserveService records an outbound call to service ("predict" or "gallery")
func ObserveService(service string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	serviceRequests.WithLabelValues(service, result).Inc()
	serviceDuration.WithLabelValues(service).Observe(seconds)
}

// StaleDiscard records a superseded result for step
func StaleDiscard(step string) {
	staleDiscards.WithLabelValues(step).Inc()
}

// Rotation records an accepted rotation driven by kind
func Rotation(kind string) {
	rotations.WithLabelValues(kind).Inc()
}

// SetSessions reports the number of live sessions
func SetSessions(n int) {
	activeSessions.Set(float64(n))
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
