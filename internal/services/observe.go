package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	applog "basecamp/internal/log"
	"basecamp/internal/metrics"
)

const spanPrefix = "UC."

var tracer = otel.Tracer("basecamp/internal/services")

// useCase brackets one service operation with a span, RED metrics and a
// use_case_done log line.
type useCase struct {
	ctx     context.Context
	name    string
	span    trace.Span
	metrics *metrics.Metrics
	start   time.Time
	outcome string
	fields  []zap.Field
}

func begin(ctx context.Context, m *metrics.Metrics, name, spanName string, attrs ...attribute.KeyValue) (context.Context, *useCase) {
	attrs = append(attrs, attribute.String("use_case", name))
	ctx, span := tracer.Start(ctx, spanPrefix+spanName, trace.WithAttributes(attrs...))
	return ctx, &useCase{ctx: ctx, name: name, span: span, metrics: m, start: time.Now()}
}

func (u *useCase) with(fields ...zap.Field) { u.fields = append(u.fields, fields...) }

// replay marks a successful call that returned an existing result.
func (u *useCase) replay() { u.outcome = metrics.OutcomeReplay }

func (u *useCase) end(err error) {
	outcome := u.outcome
	if outcome == "" || err != nil {
		outcome = metrics.Outcome(err)
	}
	if err != nil {
		u.span.RecordError(err)
		u.span.SetStatus(codes.Error, err.Error())
	} else {
		u.span.SetStatus(codes.Ok, "OK")
	}
	u.span.End()
	u.metrics.Observe(u.name, outcome, u.start)

	fields := append([]zap.Field{
		zap.String("component", "services"),
		zap.String("use_case", u.name),
		zap.String("outcome", outcome),
		zap.Float64("latency_seconds", time.Since(u.start).Seconds()),
	}, u.fields...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	applog.Ctx(u.ctx).Info("use_case_done", fields...)
}
