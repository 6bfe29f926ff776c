package http

import (
	"net/http"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
)

type AccountHandler struct {
	AccountService *service.AccountService
	Cookie         httpx.SessionCookie
}

// HandleRegister creates an account and signs it in.
//
//	@Summary		Register a new account
//	@Description	Creates an account and starts a session. The refresh token is set in the refreshToken cookie.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Account details (name is optional)"
//	@Success		201		{object}	authsdk.AuthResponse	"Access token and public user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request or email_taken"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Credential store unavailable"
//	@Router			/v1/users/register [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Debug("register: bad body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.AccountService.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSession(w, r, h.Cookie, http.StatusCreated, sess)
}

// HandleLogin signs in with email and password.
//
//	@Summary		Sign in
//	@Description	Verifies the password and starts a new session, ending any previous session for the account.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse	"Access token and public user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing email or password"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Credential store unavailable"
//	@Router			/v1/users/login [post].
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.AccountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSession(w, r, h.Cookie, http.StatusOK, sess)
}

// writeSession sets the refresh cookie and writes the access token body.
func writeSession(w http.ResponseWriter, r *http.Request, cookie httpx.SessionCookie, status int, sess *domain.Session) {
	cookie.Set(w, r, sess.RefreshToken)
	httpx.WriteJSON(w, status, authsdk.AuthResponse{
		AccessToken: sess.AccessToken,
		User:        publicUser(sess.User),
	})
}

func publicUser(u domain.PublicUser) authsdk.User {
	return authsdk.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
