package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
)

// SessionIssuer mints token pairs and records the refresh token as the
// account's only valid one.
type SessionIssuer struct {
	Codec *jwtx.Codec
	Store store.Store
}

// Issue starts a new session for user, replacing whatever refresh token the
// account held before. Login and registration use it.
func (s *SessionIssuer) Issue(ctx context.Context, user domain.User) (*domain.Session, error) {
	sess, err := s.mint(user)
	if err != nil {
		return nil, err
	}

	err = s.Store.Users().SaveRefreshToken(ctx, user.ID, sess.RefreshToken, sess.RefreshExpiresAt)
	if err != nil {
		// The account vanished between load and save; treat it as a
		// failed login rather than an outage.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, storeUnavailable(err)
	}
	return sess, nil
}

// Rotate replaces presented with a fresh refresh token, but only if presented
// is still the stored one. Losing that race is reported as reuse.
func (s *SessionIssuer) Rotate(ctx context.Context, user domain.User, presented string) (*domain.Session, error) {
	sess, err := s.mint(user)
	if err != nil {
		return nil, err
	}

	exp := sess.RefreshExpiresAt
	swapped, err := s.Store.Users().CompareAndSwapRefreshToken(ctx, user.ID, presented, sess.RefreshToken, &exp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOrExpiredRefresh
		}
		return nil, storeUnavailable(err)
	}
	if !swapped {
		return nil, ErrReuseDetected
	}
	return sess, nil
}

func (s *SessionIssuer) mint(user domain.User) (*domain.Session, error) {
	access, accessExp, err := s.Codec.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.Codec.SignRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &domain.Session{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp.UTC().Truncate(time.Second),
		User:             user.Public(),
	}, nil
}
