package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
)

// AccessGate turns request headers into an authenticated user. It has no
// side effects; the HTTP layer decides how failures are rendered.
type AccessGate struct {
	Codec *jwtx.Codec
	Store store.Store
}

// Authenticate reads the bearer token from h, verifies it and reloads the
// user so deleted accounts stop working before their tokens expire.
func (g *AccessGate) Authenticate(ctx context.Context, h http.Header) (domain.User, error) {
	token, ok := httpx.BearerToken(h)
	if !ok {
		return domain.User{}, ErrMissingCredential
	}

	claims, err := g.Codec.VerifyAccess(token)
	if err != nil {
		return domain.User{}, ErrInvalidOrExpiredAccess
	}

	user, err := g.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidOrExpiredAccess
		}
		return domain.User{}, storeUnavailable(err)
	}
	return user, nil
}
