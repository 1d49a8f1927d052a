package observability

import (
	"context"

	"github.com/nexypass/nexypass-backend/internal/infrastructure/observability"
)

// Setup initializes logging, metrics and tracing. The returned function shuts
// the tracer provider down; the /metrics endpoint is registered by the router.
func Setup(serviceName string) func(context.Context) error {
	observability.InitLogger()
	observability.InitMetrics()
	return observability.InitTracing(serviceName)
}
