package weekreflect

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Afrawles/weekreflect/internal/weekreflect"

var (
	stageDuration   metric.Float64Histogram
	fallbackCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)

	var err error
	stageDuration, err = meter.Float64Histogram(
		"weekreflect.stage.duration",
		metric.WithDescription("Duration of each pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create stage duration histogram: %v", err))
	}

	fallbackCounter, err = meter.Int64Counter(
		"weekreflect.fallbacks",
		metric.WithDescription("Number of degraded outcomes by component"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create fallback counter: %v", err))
	}
}
