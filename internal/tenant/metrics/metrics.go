package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TenantsRegistered      prometheus.Counter
	RegistrationRejections *prometheus.CounterVec
	UsersCreated           prometheus.Counter
	UserLimitRejections    prometheus.Counter
	LoginDuration          *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TenantsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "clinictrack_tenants_registered_total",
			Help: "Total number of tenants registered with a license",
		}),
		RegistrationRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinictrack_tenant_registration_rejections_total",
			Help: "Total number of rejected tenant registrations, by reason",
		}, []string{"reason"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "clinictrack_professional_users_created_total",
			Help: "Total number of professional users created",
		}),
		UserLimitRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "clinictrack_user_limit_rejections_total",
			Help: "Total number of user creations rejected by the tenant user limit",
		}),
		LoginDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinictrack_login_duration_seconds",
			Help:    "Duration of password logins, by account type",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"account"}),
	}
}

func (m *Metrics) IncrementTenantRegistered() {
	m.TenantsRegistered.Inc()
}

func (m *Metrics) IncrementRegistrationRejected(reason string) {
	m.RegistrationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementUserCreated() {
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementUserLimitRejected() {
	m.UserLimitRejections.Inc()
}

func (m *Metrics) ObserveLogin(account string, start time.Time) {
	m.LoginDuration.WithLabelValues(account).Observe(time.Since(start).Seconds())
}
