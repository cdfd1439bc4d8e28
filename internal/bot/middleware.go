package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/model"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev model.Event) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies mws so that the first one is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Logging tags the event with an id and logs its outcome. Payloads are never logged.
func Logging(log *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev model.Event) error {
			id, ok := EventIDFromCtx(ctx)
			if !ok {
				id = uuid.Must(uuid.NewV4())
				ctx = WithEventID(ctx, id)
			}
			start := time.Now()
			err := next(ctx, ev)

			fields := []zap.Field{
				zap.String("event_id", id.String()),
				zap.Int64("user_id", ev.UserID),
				zap.String("kind", string(ev.Kind)),
				zap.Duration("dur", time.Since(start)),
			}
			if err != nil {
				log.Warn("event failed", append(fields, zap.Error(err))...)
				return err
			}
			log.Debug("event", fields...)
			return nil
		}
	}
}

// Recover turns a handler panic into an error.
func Recover(log *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev model.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic",
						zap.Any("reason", r),
						zap.ByteString("stack", debug.Stack()),
						zap.Int64("user_id", ev.UserID),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, ev)
		}
	}
}
