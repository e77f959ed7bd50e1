package server

import "context"

// requestIDKey is unexported so no other package can collide with it.
// Request ID propagation is a concern of this HTTP surface only -- the
// board workers and stream supervisor never see or need it -- so it
// lives here rather than in the shared internal package.
type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
