package service

import (
	"log/slog"
	"time"

	"clinictrack/internal/platform/tracer"
)

type serviceConfig struct {
	logger *slog.Logger
	tracer tracer.Tracer
	clock  func() time.Time
}

type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *serviceConfig) {
		c.tracer = t
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *serviceConfig) {
		c.clock = clock
	}
}
