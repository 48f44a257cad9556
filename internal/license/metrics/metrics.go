package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Generated   *prometheus.CounterVec
	Validations *prometheus.CounterVec
	Redemptions *prometheus.CounterVec
	Revocations prometheus.Counter
	Expiries    prometheus.Counter
}

// New registers the license metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the license metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinictrack_licenses_generated_total",
			Help: "Total number of licenses generated, by kind",
		}, []string{"kind"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinictrack_license_validations_total",
			Help: "Total number of license validations, by outcome",
		}, []string{"outcome"}),
		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinictrack_license_redemptions_total",
			Help: "Total number of license redemption attempts, by result",
		}, []string{"result"}),
		Revocations: f.NewCounter(prometheus.CounterOpts{
			Name: "clinictrack_licenses_revoked_total",
			Help: "Total number of licenses revoked",
		}),
		Expiries: f.NewCounter(prometheus.CounterOpts{
			Name: "clinictrack_license_lazy_expiries_total",
			Help: "Total number of expiries persisted on read",
		}),
	}
}

func (m *Metrics) IncrementGenerated(kind string) {
	m.Generated.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementValidation(outcome string) {
	m.Validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRedemption(result string) {
	m.Redemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.Revocations.Inc()
}

func (m *Metrics) IncrementExpired() {
	m.Expiries.Inc()
}
