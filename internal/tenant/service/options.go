package service

import (
	"log/slog"
	"time"

	"clinictrack/internal/audit"
	"clinictrack/internal/platform/tracer"
	tenantmetrics "clinictrack/internal/tenant/metrics"
)

type serviceConfig struct {
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
	tracer  tracer.Tracer
	audit   audit.Emitter
	tx      StoreTx
	hasher  PasswordHasher
	clock   func() time.Time
}

type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *serviceConfig) {
		c.tracer = t
	}
}

func WithAudit(e audit.Emitter) Option {
	return func(c *serviceConfig) {
		c.audit = e
	}
}

// WithTx sets the transaction runner. It must be shared with the license service.
func WithTx(tx StoreTx) Option {
	return func(c *serviceConfig) {
		c.tx = tx
	}
}

func WithHasher(h PasswordHasher) Option {
	return func(c *serviceConfig) {
		c.hasher = h
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *serviceConfig) {
		c.clock = clock
	}
}
