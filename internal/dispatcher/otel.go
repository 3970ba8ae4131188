package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/spatialplot/globeviz/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
