package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const deviceIDKey ctxKey = "tk.deviceID"

// WithDeviceID stores the authenticated device ID in context.
func WithDeviceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

// DeviceIDFromCtx fetches the device ID from context.
func DeviceIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(deviceIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
