package service

import (
	"log/slog"
	"time"

	"clinictrack/internal/audit"
	licensemetrics "clinictrack/internal/license/metrics"
	"clinictrack/internal/platform/tracer"
)

// serviceConfig holds optional dependencies for the service.
type serviceConfig struct {
	logger  *slog.Logger
	metrics *licensemetrics.Metrics
	tracer  tracer.Tracer
	audit   audit.Emitter
	tx      StoreTx
	clock   func() time.Time
}

// Option configures the service.
type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *licensemetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *serviceConfig) {
		c.tracer = t
	}
}

// WithAudit records generate, revoke and expiry events.
func WithAudit(e audit.Emitter) Option {
	return func(c *serviceConfig) {
		c.audit = e
	}
}

// WithTx sets the transaction runner shared with the tenant service.
func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) {
		c.tx = tx
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *serviceConfig) {
		c.clock = clock
	}
}
