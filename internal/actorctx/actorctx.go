// Package actorctx carries the authenticated principal on a context.Context
// so code below the HTTP layer (logging, stores) can see who is acting.
package actorctx

import (
	"context"

	"github.com/geocoder89/notehub/internal/auth"
)

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(auth.Principal)

	return p, ok && p.User.ID != 0
}
