/*
Package authsdk is the Go client for the marquee authentication service.

# Overview

The service hands out two tokens. A short-lived access token (15 minutes) is
returned in the JSON body and sent back as "Authorization: Bearer <token>". A
long-lived refresh token (7 days) only ever travels in the HttpOnly
refreshToken cookie, which the SDKClient's cookie jar stores and replays.

Every refresh rotates the cookie. Presenting an old refresh token a second
time is rejected with 403 reuse_detected, and signing in again ends any
earlier session for the same account.

# SDKClient vs TokenCoordinator

  - SDKClient performs the raw calls: Register, Login, Refresh, Logout and the
    health probes.
  - TokenCoordinator owns the access token for one signed-in session and
    handles expiry for you.

	client := authsdk.NewSDKClient("https://auth.example.com")
	tokens := authsdk.NewTokenCoordinator(client,
		authsdk.WithOnSessionEnded(func(err error) {
			// back to the login screen
		}),
	)

	if _, err := tokens.Login(ctx, "ada@example.com", password); err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidCredential {
			// wrong email or password
		}
	}

	user, err := tokens.Profile(ctx)

# Automatic Token Refresh

TokenCoordinator.Do sends a request with the current access token. When the
response is 401 it:

 1. returns the 401 as-is for /login, /register and /refresh;
 2. replays with the current token if another caller already refreshed;
 3. otherwise starts one refresh, or queues behind the one in flight;
 4. replays the request once with the new token.

Concurrent callers that hit a 401 together share a single refresh call and
are resumed in the order they arrived. If the refresh is rejected every
waiting caller receives the same error and the session-ended callback runs.

Requests with a body must be replayable (http.NewRequest sets GetBody for
the common reader types); otherwise the original 401 is returned.

# Error Handling

Every server error is an *APIError carrying the HTTP status, a machine
readable Code and a Description. Predefined values such as ErrReuseDetected
match with errors.Is.
*/
package authsdk
