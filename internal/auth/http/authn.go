package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/marquee/internal/auth/domain"
	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/pkg/httpx"
)

const bearerRealm = "marquee"

type ctxKeyUser struct{}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKeyUser{}).(domain.User)
	return u, ok
}

// RequireUser authenticates the request through gate and stores the user in
// the context. Credential failures get a 401 with a Bearer challenge; store
// failures get a 503.
func RequireUser(gate *service.AccessGate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.Authenticate(r.Context(), r.Header)
			if err != nil {
				apiErr := apiError(r, err)
				if apiErr.StatusCode == http.StatusUnauthorized {
					if apiErr.Code == service.ErrMissingCredential.Error() {
						httpx.WriteBearerChallenge(w, bearerRealm, "", "")
					} else {
						httpx.WriteBearerChallenge(w, bearerRealm, "invalid_token", apiErr.Description)
					}
				}
				apiErr.WriteError(w)
				return
			}

			ctx := httpx.WithSubject(r.Context(), user.ID)
			ctx = context.WithValue(ctx, ctxKeyUser{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
