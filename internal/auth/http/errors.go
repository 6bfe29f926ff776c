package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/marquee/internal/auth/service"
	"github.com/aussiebroadwan/marquee/pkg/authsdk"
	"github.com/aussiebroadwan/marquee/pkg/slogx"
)

var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest},
	{service.ErrEmailTaken, authsdk.ErrEmailTaken},
	{service.ErrInvalidCredential, authsdk.ErrInvalidCredential},
	{service.ErrMissingCredential, authsdk.ErrMissingCredential},
	{service.ErrInvalidOrExpiredAccess, authsdk.ErrInvalidOrExpiredAccess},
	{service.ErrInvalidOrExpiredRefresh, authsdk.ErrInvalidOrExpiredRefresh},
	{service.ErrReuseDetected, authsdk.ErrReuseDetected},
	{service.ErrStoreUnavailable, authsdk.ErrStoreUnavailable},
}

// apiError maps a service error to its wire form. Anything unrecognised is a
// 500 and gets logged.
func apiError(r *http.Request, err error) *authsdk.APIError {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.err == service.ErrStoreUnavailable {
				slogx.FromContext(r.Context()).Error("credential store unavailable", slog.Any("err", err))
			}
			return m.api
		}
	}

	slogx.FromContext(r.Context()).Error("unhandled error", slog.Any("err", err))
	return authsdk.ErrServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiError(r, err).WriteError(w)
}
