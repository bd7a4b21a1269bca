package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Closer is a resource released during shutdown, such as the memcached client.
type Closer interface {
	Close() error
}

// FlushTelemetry syncs logs and closes the given resources after in-flight requests drain.
// Metrics are pull-based and need no flush. All closers run; the first error is returned.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, closers ...Closer) error {
	var first error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("close: %w", err)
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil && first == nil {
			first = fmt.Errorf("flush logs: %w", err)
		}
	}
	return first
}
