package httpapi

import (
	"context"

	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
)

type userContextKey struct{}

func contextWithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

func userFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userContextKey{}).(*auth.User)
	return u
}
