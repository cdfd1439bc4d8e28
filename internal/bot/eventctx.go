package bot

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const eventIDKey ctxKey = "lumen.eventID"

// WithEventID tags the context of one handled event.
func WithEventID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, eventIDKey, id)
}

// EventIDFromCtx returns the id set by WithEventID.
func EventIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(eventIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
