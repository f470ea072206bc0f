package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/library-lending/internal/core/domain"
)

const (
	instrumentationName = "github.com/rl1809/library-lending/internal/core/service"

	metricCheckedOut = "library.loans.checked_out"
	metricReturned   = "library.loans.returned"
	metricRejected   = "library.loans.rejected"

	attrBookID     = "library.book_id"
	attrBorrowerID = "library.borrower_id"
	attrOperation  = "operation"
	attrReason     = "reason"
)

type instruments struct {
	tracer     trace.Tracer
	checkedOut metric.Int64Counter
	returned   metric.Int64Counter
	rejected   metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) instruments {
	meter := mp.Meter(instrumentationName)

	return instruments{
		tracer:     tp.Tracer(instrumentationName),
		checkedOut: counter(meter, metricCheckedOut, "Loans opened by checkout"),
		returned:   counter(meter, metricReturned, "Loans closed by return"),
		rejected:   counter(meter, metricRejected, "Checkouts and returns refused by a lending rule"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{loan}"))
	if err != nil {
		c, _ = noop.Meter{}.Int64Counter(name)
	}
	return c
}

func (i instruments) start(ctx context.Context, name, bookID, borrowerID string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(attrBookID, bookID),
		attribute.String(attrBorrowerID, borrowerID),
	))
}

// rejectReason names the lending rule behind err, or "" for infrastructure failures.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrAlreadyCheckedOut):
		return "already_checked_out"
	case errors.Is(err, domain.ErrNotCheckedOut):
		return "not_checked_out"
	case errors.Is(err, domain.ErrBookNotFound), errors.Is(err, domain.ErrBorrowerNotFound):
		return "not_found"
	default:
		return ""
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
