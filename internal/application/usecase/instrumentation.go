package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
)

const instrumentationName = "github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"

// Instruments holds the tracer and counters shared by the use cases.
type Instruments struct {
	tracer              trace.Tracer
	schedulesGenerated  metric.Int64Counter
	loansDisbursed      metric.Int64Counter
	repaymentsAllocated metric.Int64Counter
	reclassifications   metric.Int64Counter
	finesAssessed       metric.Int64Counter
	loansWrittenOff     metric.Int64Counter
	publishDeferred     metric.Int64Counter
}

// NewInstruments creates the use-case counters on mp and a tracer on tp.
func NewInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	meter := mp.Meter(instrumentationName)
	inst := &Instruments{tracer: tp.Tracer(instrumentationName)}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&inst.schedulesGenerated, "schedules_generated", "Installment schedules generated, quotes included."},
		{&inst.loansDisbursed, "loans_disbursed", "Loans committed and disbursed."},
		{&inst.repaymentsAllocated, "repayments_allocated", "Payments allocated to a loan."},
		{&inst.reclassifications, "delinquency_reclassifications", "Loans reclassified on an accounting day."},
		{&inst.finesAssessed, "fines_assessed", "Fines charged on overdue installments."},
		{&inst.loansWrittenOff, "loans_written_off", "Loans written off."},
		{&inst.publishDeferred, "event_publish_deferred", "Committed event batches left to the outbox relay after a failed publish."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return inst, nil
}

// NopInstruments records nothing.
func NopInstruments() *Instruments {
	inst, _ := NewInstruments(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	return inst
}

func orNop(inst *Instruments) *Instruments {
	if inst == nil {
		return NopInstruments()
	}
	return inst
}

func (i *Instruments) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// publish hands committed events to publisher. They are already in the
// outbox, so a failure only delays delivery: it is recorded, not returned.
func (i *Instruments) publish(ctx context.Context, publisher port.EventPublisher, evts []event.DomainEvent) {
	if len(evts) == 0 {
		return
	}
	if err := publisher.Publish(ctx, evts...); err != nil {
		i.publishDeferred.Add(ctx, 1)
		trace.SpanFromContext(ctx).AddEvent("event publish deferred to outbox relay",
			trace.WithAttributes(attribute.String("error", err.Error())))
	}
}
