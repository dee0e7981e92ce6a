package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// RegisterMetrics registers active/queued/limit gauges for every class of the
// set on reg. Call once per Set; duplicate registration returns an error from
// the registry via MustRegister's panic, so callers register at startup.
func RegisterMetrics(reg prometheus.Registerer, s *Set) {
	for _, class := range Classes() {
		limiter := s.Get(class)
		labels := prometheus.Labels{"class": string(class)}

		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "promptbeam_ratelimit_active",
			Help:        "In-flight operations holding a permit.",
			ConstLabels: labels,
		}, func() float64 { return float64(limiter.Metrics().Active) }))

		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "promptbeam_ratelimit_queued",
			Help:        "Operations waiting for a permit.",
			ConstLabels: labels,
		}, func() float64 { return float64(limiter.Metrics().Queued) }))

		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "promptbeam_ratelimit_limit",
			Help:        "Configured concurrency bound.",
			ConstLabels: labels,
		}, func() float64 { return float64(limiter.Metrics().Limit) }))
	}
}
