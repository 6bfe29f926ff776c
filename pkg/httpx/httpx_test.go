package httpx_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/marquee/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lower case scheme", "bearer abc", "abc", true},
		{"extra spaces", "  Bearer   abc  ", "abc", true},
		{"missing", "", "", false},
		{"scheme only", "Bearer", "", false},
		{"empty token", "Bearer   ", "", false},
		{"basic auth", "Basic dXNlcjpwYXNz", "", false},
		{"two tokens", "Bearer a b", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			got, ok := httpx.BearerToken(h)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWriteBearerChallenge(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteBearerChallenge(rec, "marquee", "", "")
	require.Equal(t, `Bearer realm="marquee"`, rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	httpx.WriteBearerChallenge(rec, "marquee", "invalid_token", "expired")
	require.Equal(t, `Bearer realm="marquee", error="invalid_token", error_description="expired"`, rec.Header().Get("WWW-Authenticate"))
}

func TestSessionCookie(t *testing.T) {
	c := httpx.SessionCookie{Name: "refreshToken", MaxAge: 7 * 24 * time.Hour}

	t.Run("set over plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.Set(rec, httptest.NewRequest(http.MethodPost, "/", nil), "tok")

		raw := rec.Header().Get("Set-Cookie")
		require.Contains(t, raw, "refreshToken=tok")
		require.Contains(t, raw, "Path=/")
		require.Contains(t, raw, "Max-Age=604800")
		require.Contains(t, raw, "HttpOnly")
		require.Contains(t, raw, "SameSite=Lax")
		require.NotContains(t, raw, "Secure")
	})

	t.Run("secure over tls", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.TLS = &tls.ConnectionState{}
		rec := httptest.NewRecorder()
		c.Set(rec, req, "tok")
		require.Contains(t, rec.Header().Get("Set-Cookie"), "Secure")
	})

	t.Run("secure behind tls proxy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-Proto", "HTTPS")
		rec := httptest.NewRecorder()
		c.Set(rec, req, "tok")
		require.Contains(t, rec.Header().Get("Set-Cookie"), "Secure")
	})

	t.Run("forced secure", func(t *testing.T) {
		forced := c
		forced.ForceSecure = true
		rec := httptest.NewRecorder()
		forced.Set(rec, httptest.NewRequest(http.MethodPost, "/", nil), "tok")
		require.Contains(t, rec.Header().Get("Set-Cookie"), "Secure")
	})

	t.Run("clear keeps attributes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c.Clear(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		raw := rec.Header().Get("Set-Cookie")
		require.True(t, strings.HasPrefix(raw, "refreshToken=;"), raw)
		require.Contains(t, raw, "Max-Age=0")
		require.Contains(t, raw, "HttpOnly")
		require.Contains(t, raw, "SameSite=Lax")
	})

	t.Run("read", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		require.Empty(t, c.Read(req))

		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "abc"})
		require.Equal(t, "abc", c.Read(req))
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	decode := func(raw string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &b)
		return b, err
	}

	b, err := decode(`{"email":"a@example.com","extra":1}`)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", b.Email)

	_, err = decode(``)
	require.Error(t, err)

	_, err = decode(`{"email":`)
	require.Error(t, err)

	_, err = decode(`{"email":"a"} {"email":"b"}`)
	require.Error(t, err)
}
