package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-service/apierror"
)

var tracer = otel.Tracer("chat-service/service")

// fail records err on the span. Client errors do not mark the span as failed.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if status := apierror.StatusOf(err); status == 0 || status >= 500 {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
