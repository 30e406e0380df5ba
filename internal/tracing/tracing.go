// Package tracing wraps a resilience.Continuation in OpenTelemetry spans,
// one span per invocation, named after the stage and method.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexusfab/fabric/internal/resilience"
)

const tracerName = "github.com/nexusfab/fabric/internal/resilience"

// Traced wraps next, starting a child span named stage.method for every
// invocation and recording the call's outcome on it.
func Traced(stage string, next resilience.Continuation) resilience.Continuation {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, call *resilience.CallDescriptor) (interface{}, error) {
		spanName := fmt.Sprintf("%s.%s", stage, resilience.MethodName(call.Method))
		ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
			attribute.String("fabric.service", call.Service),
			attribute.String("fabric.method", call.Method),
		))
		defer span.End()

		result, err := next(ctx, call)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("fabric.failure_code", resilience.CodeOf(err).String()))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return result, err
	}
}
