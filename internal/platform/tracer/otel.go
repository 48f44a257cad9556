package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer forwards spans to OpenTelemetry. Without an installed provider
// the global one records nothing.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) { o.tracer = t }
}

func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{tracer: otel.Tracer("clinictrack")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, s := t.tracer.Start(ctx, name, trace.WithAttributes(keyValues(attrs)...))
	return ctx, otelSpan{s}
}

type otelSpan struct{ trace.Span }

func (s otelSpan) End(err error) {
	if err != nil {
		s.Span.RecordError(err)
		s.Span.SetStatus(codes.Error, err.Error())
	}
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs ...Attribute) {
	s.Span.SetAttributes(keyValues(attrs)...)
}

func (s otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.Span.AddEvent(name, trace.WithAttributes(keyValues(attrs)...))
}

// keyValues drops attributes whose value type has no OpenTelemetry mapping.
func keyValues(attrs []Attribute) []attribute.KeyValue {
	var out []attribute.KeyValue
	for _, a := range attrs {
		if kv, ok := a.keyValue(); ok {
			out = append(out, kv)
		}
	}
	return out
}

func (a Attribute) keyValue() (attribute.KeyValue, bool) {
	k := attribute.Key(a.Key)
	switch v := a.Value.(type) {
	case string:
		return k.String(v), true
	case bool:
		return k.Bool(v), true
	case int:
		return k.Int(v), true
	case int64:
		return k.Int64(v), true
	case float64:
		return k.Float64(v), true
	}
	return attribute.KeyValue{}, false
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = otelSpan{}
)
