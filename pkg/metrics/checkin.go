package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckInMetrics counts door-scan outcomes per event.
type CheckInMetrics struct {
	arrivals   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewCheckInMetrics registers the check-in metrics on the provided registerer.
func NewCheckInMetrics(reg prometheus.Registerer) *CheckInMetrics {
	if reg == nil {
		return &CheckInMetrics{}
	}
	arrivals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_arrivals_total",
		Help: "Credentials redeemed for the first time.",
	}, []string{"kind"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_duplicate_scans_total",
		Help: "Scans of credentials that were already redeemed.",
	}, []string{"kind"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_rejected_scans_total",
		Help: "Scans rejected as unknown, malformed, or cancelled.",
	}, []string{"reason"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkin_scan_duration_seconds",
		Help:    "Latency of scan resolution in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind"})
	reg.MustRegister(arrivals, duplicates, rejected, latency)
	return &CheckInMetrics{
		arrivals:   arrivals,
		duplicates: duplicates,
		rejected:   rejected,
		latency:    latency,
	}
}

// IncArrival records a first-time redemption for the credential kind.
func (c *CheckInMetrics) IncArrival(kind string) {
	if c == nil || c.arrivals == nil {
		return
	}
	c.arrivals.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDuplicate records a repeat scan of an already-redeemed credential.
func (c *CheckInMetrics) IncDuplicate(kind string) {
	if c == nil || c.duplicates == nil {
		return
	}
	c.duplicates.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncRejected records a scan that could not be honored.
func (c *CheckInMetrics) IncRejected(reason string) {
	if c == nil || c.rejected == nil {
		return
	}
	c.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveScan records how long a scan took to resolve.
func (c *CheckInMetrics) ObserveScan(kind string, seconds float64) {
	if c == nil || c.latency == nil {
		return
	}
	c.latency.WithLabelValues(normalizeLabel(kind)).Observe(seconds)
}
