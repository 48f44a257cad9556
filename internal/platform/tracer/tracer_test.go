package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"clinictrack/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, "test.span", tracer.String("key", "value"))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Bool("flag", true))
	span.AddEvent("test.event", tracer.Int64("count", 42))
	span.End(errors.New("boom"))
}

func TestOTelTracerWithNoopProvider(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanLicenseValidate,
		tracer.String(tracer.AttrOutcome, "redeemable"),
		tracer.Int64(tracer.AttrLicenseID, 7),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.String(tracer.AttrTenant, "ClinicA"))
	span.AddEvent("lazy_expiry")
	span.End(nil)
}

func TestOTelTracerDefaultsToGlobalProvider(t *testing.T) {
	_, span := tracer.NewOTel().Start(context.Background(), "global")
	span.End(nil)
}

func TestOTelTracerIgnoresUnmappedValues(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanPatientReport,
		tracer.Attribute{Key: "weird", Value: struct{}{}},
		tracer.Attribute{Key: tracer.AttrEntries, Value: 3},
	)
	span.End(errors.New("report failed"))
}
