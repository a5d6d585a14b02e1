package executor

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Afrawles/weekreflect/internal/executor"

var retryCounter metric.Int64Counter

func init() {
	var err error
	retryCounter, err = otel.Meter(instrumentationName).Int64Counter(
		"weekreflect.executor.retries",
		metric.WithDescription("Number of retried outbound calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create retry counter: %v", err))
	}
}
