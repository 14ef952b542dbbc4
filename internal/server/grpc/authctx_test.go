package grpcserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
)

func TestWithDeviceID_And_DeviceIDFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := DeviceIDFromCtx(context.Background()); ok || id != uuid.Nil {
		t.Fatalf("expected no device id in empty ctx")
	}

	want := uuid.Must(uuid.NewV4())
	ctx := WithDeviceID(context.Background(), want)

	got, ok := DeviceIDFromCtx(ctx)
	if !ok {
		t.Fatalf("expected device id in ctx")
	}
	if got != want {
		t.Fatalf("mismatch: got %s, want %s", got, want)
	}

	bad := context.WithValue(context.Background(), deviceIDKey, "not-uuid")
	if id, ok := DeviceIDFromCtx(bad); ok || id != uuid.Nil {
		t.Fatalf("expected miss on wrong typed value")
	}
}
