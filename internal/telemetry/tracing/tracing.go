package tracing

import (
	"fmt"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var GlobalTracer = otel.Tracer("trainingplan-backend")

// HoneycombSetup configures the OpenTelemetry SDK via the honeycomb distro
// and hooks the redis client into tracing. When disabled, a noop shutdown is
// returned and the global tracer stays a noop tracer.
func HoneycombSetup(enabled bool, serviceName string, rdb *redis.Client) (shutdown func(), err error) {
	if !enabled {
		log.Debugln("tracing disabled")
		return func() {}, nil
	}

	bsp := honeycomb.NewBaggageSpanProcessor()
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithSpanProcessor(bsp),
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, fmt.Errorf("configure otel sdk: %w", err)
	}

	rdb.AddHook(redisotel.NewTracingHook())

	log.Debugln("honeycomb otel setup done")
	return otelShutdown, nil
}

// EndSpanWithErrCheck ends the span, recording err on it first if set.
func EndSpanWithErrCheck(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
