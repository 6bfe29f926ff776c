package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/store"
	"github.com/aussiebroadwan/marquee/pkg/cryptox"
	"github.com/aussiebroadwan/marquee/pkg/idx"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
)

const maxPasswordLen = 1024

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AccountService covers the credential flows: register, login and logout.
type AccountService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Issuer *SessionIssuer
}

// Register creates an account and signs it in. Name is optional and falls
// back to the local part of the email.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if !validEmail(email) || in.Password == "" || len(in.Password) > maxPasswordLen {
		return nil, ErrInvalidRequest
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, storeUnavailable(err)
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return s.Issuer.Issue(ctx, user)
}

// Login checks the password and starts a new session, ending any previous
// one for the account. Unknown emails and wrong passwords are
// indistinguishable, including in timing.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" || len(password) > maxPasswordLen {
		return nil, ErrInvalidRequest
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.Hasher.VerifyDummy(password)
			return nil, ErrInvalidCredential
		}
		return nil, storeUnavailable(err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("user_id", user.ID), slog.Any("err", err))
		}
		return nil, ErrInvalidCredential
	}

	return s.Issuer.Issue(ctx, user)
}

// Logout ends the session that owns presented. It is idempotent: an empty,
// unknown or already rotated token is not an error.
func (s *AccountService) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}

	user, err := s.Store.Users().GetUserByRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return storeUnavailable(err)
	}

	_, err = s.Store.Users().CompareAndSwapRefreshToken(ctx, user.ID, presented, "", nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeUnavailable(err)
	}

	slogx.FromContext(ctx).Info("user signed out", slog.String("user_id", user.ID))
	return nil
}

func validEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	return ok && local != "" && domainPart != "" && !strings.ContainsAny(email, " \t\r\n")
}
