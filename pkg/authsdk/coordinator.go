package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

// errNotReplayable is never returned to callers; a request whose body cannot
// be rebuilt gets its original 401 back instead.
var errNotReplayable = errors.New("request body cannot be replayed")

// DefaultBypassSuffixes are the paths whose 401 means "wrong credentials"
// rather than "access token expired".
var DefaultBypassSuffixes = []string{"/login", "/register", "/refresh"}

// refreshOutcome is handed to every caller queued behind a refresh. Each
// gets its own copy of the response.
type refreshOutcome struct {
	auth AuthResponse
	err  error
}

// TokenCoordinator owns the in-memory access token for one client session and
// makes sure concurrent 401s trigger a single refresh. Callers that hit a 401
// while a refresh is running wait in FIFO order and replay with its result.
//
// Create one per signed-in session and share it between goroutines.
type TokenCoordinator struct {
	client         *SDKClient
	bypass         []string
	refreshTimeout time.Duration
	onRefreshed    func(AuthResponse)
	onSessionEnded func(error)

	mu          sync.Mutex
	accessToken string
	refreshing  bool
	queue       []chan refreshOutcome
}

type CoordinatorOption func(*TokenCoordinator)

// WithOnRefreshed is called after every successful refresh, outside the lock.
func WithOnRefreshed(fn func(AuthResponse)) CoordinatorOption {
	return func(c *TokenCoordinator) { c.onRefreshed = fn }
}

// WithOnSessionEnded is called when a refresh is rejected and the local token
// has been cleared. Typically used to send the user back to a login screen.
func WithOnSessionEnded(fn func(error)) CoordinatorOption {
	return func(c *TokenCoordinator) { c.onSessionEnded = fn }
}

// WithBypassSuffixes replaces DefaultBypassSuffixes.
func WithBypassSuffixes(suffixes ...string) CoordinatorOption {
	return func(c *TokenCoordinator) { c.bypass = suffixes }
}

// WithRefreshTimeout bounds the shared refresh call. Defaults to 10s.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *TokenCoordinator) { c.refreshTimeout = d }
}

func NewTokenCoordinator(client *SDKClient, opts ...CoordinatorOption) *TokenCoordinator {
	c := &TokenCoordinator{
		client:         client,
		bypass:         DefaultBypassSuffixes,
		refreshTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current access token, empty when signed out.
func (c *TokenCoordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *TokenCoordinator) SetToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// Clear forgets the access token. It does not contact the server.
func (c *TokenCoordinator) Clear() { c.SetToken("") }

// Attach sets the Authorization header when a token is held.
func (c *TokenCoordinator) Attach(req *http.Request) {
	attach(req, c.Token())
}

func attach(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Do sends req with the current access token. On a 401 it refreshes once
// (shared with any concurrent callers) and replays req a single time. A 401
// from a bypassed path, or from the replay, is returned unchanged.
//
// If the refresh is rejected Do returns the refresh error and the response is
// nil.
func (c *TokenCoordinator) Do(req *http.Request) (*http.Response, error) {
	used := c.Token()
	attach(req, used)

	resp, err := c.client.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || c.bypassed(req.URL.Path) {
		return resp, nil
	}

	replay, err := cloneForReplay(req)
	if err != nil {
		return resp, nil
	}

	token, err := c.onUnauthorized(req.Context(), used)
	if err != nil {
		drain(resp)
		return nil, err
	}
	drain(resp)

	replay.Header.Del("Authorization")
	attach(replay, token)
	return c.client.HTTPClient.Do(replay)
}

func (c *TokenCoordinator) bypassed(path string) bool {
	for _, suffix := range c.bypass {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func cloneForReplay(req *http.Request) (*http.Request, error) {
	replay := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return replay, nil
	}
	if req.GetBody == nil {
		return nil, errNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	replay.Body = body
	return replay, nil
}

// onUnauthorized returns a token to replay with. used is the token the failed
// request carried.
func (c *TokenCoordinator) onUnauthorized(ctx context.Context, used string) (string, error) {
	c.mu.Lock()

	// Another caller already refreshed after this request was sent.
	if c.accessToken != "" && c.accessToken != used {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}

	auth, err := c.refreshLocked(ctx)
	if err != nil {
		return "", err
	}
	return auth.AccessToken, nil
}

// refreshLocked joins the running refresh or starts one. c.mu must be held
// on entry and is released before any waiting.
func (c *TokenCoordinator) refreshLocked(ctx context.Context) (*AuthResponse, error) {
	if c.refreshing {
		ch := make(chan refreshOutcome, 1)
		c.queue = append(c.queue, ch)
		c.mu.Unlock()

		select {
		case out := <-ch:
			if out.err != nil {
				return nil, out.err
			}
			auth := out.auth
			return &auth, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.refreshing = true
	c.mu.Unlock()

	return c.refresh(ctx)
}

// refresh performs the single shared refresh and settles the queue. The
// caller's cancellation does not abort it, since other callers wait on it.
func (c *TokenCoordinator) refresh(ctx context.Context) (*AuthResponse, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	auth, err := c.client.Refresh(ctx)

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	if err != nil {
		c.accessToken = ""
	} else {
		c.accessToken = auth.AccessToken
	}
	c.mu.Unlock()

	out := refreshOutcome{err: err}
	if err == nil {
		out.auth = *auth
	}
	for _, ch := range queue {
		ch <- out
	}

	if err != nil {
		if c.onSessionEnded != nil {
			c.onSessionEnded(err)
		}
		return nil, err
	}
	if c.onRefreshed != nil {
		c.onRefreshed(*auth)
	}
	return auth, nil
}

// ============================================================================
// Session helpers
// ============================================================================

// Register creates an account and keeps its access token.
func (c *TokenCoordinator) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	auth, err := c.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	c.SetToken(auth.AccessToken)
	return auth, nil
}

// Login signs in and keeps the access token.
func (c *TokenCoordinator) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	auth, err := c.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.SetToken(auth.AccessToken)
	return auth, nil
}

// Restore resumes a session from the refresh cookie alone, for example when
// an app starts. It shares the refresh with any concurrent 401 handling, so
// the cookie is presented once. A rejection clears local state, fires
// WithOnSessionEnded and is returned.
func (c *TokenCoordinator) Restore(ctx context.Context) (*AuthResponse, error) {
	c.mu.Lock()
	return c.refreshLocked(ctx)
}

// Logout ends the session on the server. Local state is cleared even when
// the server call fails.
func (c *TokenCoordinator) Logout(ctx context.Context) error {
	defer c.Clear()
	return c.client.Logout(ctx)
}

// Profile returns the signed-in user, refreshing the access token if needed.
func (c *TokenCoordinator) Profile(ctx context.Context) (*User, error) {
	req, err := c.client.newJSONRequest(ctx, http.MethodGet, PathProfile, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
