package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
)

// RefreshRotator exchanges a refresh token for a new session. A token that
// verifies but is not the stored one has already been used, and is rejected
// without touching the stored value.
type RefreshRotator struct {
	Codec  *jwtx.Codec
	Store  store.Store
	Issuer *SessionIssuer
}

func (s *RefreshRotator) Rotate(ctx context.Context, presented string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)

	if presented == "" {
		return nil, ErrMissingCredential
	}

	claims, err := s.Codec.VerifyRefresh(presented)
	if err != nil {
		l.Debug("refresh token rejected", slog.String("reason", err.Error()))
		return nil, ErrInvalidOrExpiredRefresh
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOrExpiredRefresh
		}
		return nil, storeUnavailable(err)
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(user.CurrentRefreshToken)) != 1 {
		l.Warn("refresh token reuse detected", slog.String("user_id", user.ID))
		return nil, ErrReuseDetected
	}

	sess, err := s.Issuer.Rotate(ctx, user, presented)
	if errors.Is(err, ErrReuseDetected) {
		l.Warn("refresh token reuse detected", slog.String("user_id", user.ID), slog.Bool("raced", true))
	}
	return sess, err
}
