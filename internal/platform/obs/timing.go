package obs

import (
	"context"
	"time"

	"dispatch-sim/internal/platform/logger"

	"go.uber.org/zap"
)

// Time measures an operation and logs its duration on return. Use as
// `defer obs.Time(ctx, "name")(&err)` so failures are logged with the error.
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		l := logger.WithContext(ctx)

		if errp != nil && *errp != nil {
			l.Warn("operation failed",
				zap.String("op", name),
				zap.Int64("dur_ms", dur.Milliseconds()),
				zap.Error(*errp),
			)
			return
		}
		l.Debug("operation complete",
			zap.String("op", name),
			zap.Int64("dur_ms", dur.Milliseconds()),
		)
	}
}
