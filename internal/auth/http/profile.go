package http

import (
	"net/http"

	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
)

// HandleProfile returns the authenticated user.
//
//	@Summary		Get the signed-in user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User			"Public user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"missing_credential or invalid_or_expired_access"
//	@Failure		503	{object}	authsdk.ErrorResponse	"Credential store unavailable"
//	@Router			/v1/users/profile [get].
func HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		authsdk.ErrMissingCredential.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, publicUser(user.Public()))
}
