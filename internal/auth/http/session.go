package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
)

type SessionHandler struct {
	RefreshRotator *service.RefreshRotator
	AccountService *service.AccountService
	Cookie         httpx.SessionCookie
}

// HandleRefresh rotates the refresh cookie and returns a new access token.
//
//	@Summary		Refresh the session
//	@Description	Exchanges the refreshToken cookie for a new access token and a rotated cookie.
//	@Description	A refresh token that was already used is rejected with reuse_detected and the cookie is cleared.
//	@Tags			Users
//	@Produce		json
//	@Success		200	{object}	authsdk.AuthResponse	"Access token and public user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"No refresh cookie"
//	@Failure		403	{object}	authsdk.ErrorResponse	"invalid_or_expired_refresh or reuse_detected"
//	@Failure		429	{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Credential store unavailable"
//	@Router			/v1/users/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.RefreshRotator.Rotate(r.Context(), h.Cookie.Read(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredRefresh) || errors.Is(err, service.ErrReuseDetected) {
			h.Cookie.Clear(w, r)
		}
		writeServiceError(w, r, err)
		return
	}

	writeSession(w, r, h.Cookie, http.StatusOK, sess)
}

// HandleLogout ends the session owning the refresh cookie.
//
//	@Summary		Sign out
//	@Description	Invalidates the stored refresh token and clears the cookie. Always succeeds without a cookie.
//	@Tags			Users
//	@Success		204	"Signed out"
//	@Failure		429	{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Credential store unavailable (cookie still cleared)"
//	@Router			/v1/users/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	err := h.AccountService.Logout(r.Context(), h.Cookie.Read(r))
	h.Cookie.Clear(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
