// Package trace carries a request-scoped trace id from the HTTP edge and
// from consumed envelopes into published events.
package trace

import "context"

type ctxKey struct{}

func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func ID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
