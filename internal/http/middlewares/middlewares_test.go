package middlewares

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/questions/internal/auth"
	"github.com/dropDatabas3/questions/internal/domain/repository"
	"github.com/dropDatabas3/questions/internal/rate"
)

type stubValidator map[string]*repository.User

func (s stubValidator) Validate(_ context.Context, cred string) (*repository.User, error) {
	if cred == "boom" {
		return nil, stderrors.New("db down")
	}
	if u, ok := s[cred]; ok {
		return u, nil
	}
	return nil, auth.ErrUnauthenticated
}

func guarded(t *testing.T, called *bool) http.Handler {
	t.Helper()
	v := stubValidator{"gho_ok": {ID: "u1", GitHubID: "42", AccessToken: "gho_ok"}}
	return RequireBearer(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		u := GetUser(r.Context())
		require.NotNil(t, u)
		_, _ = w.Write([]byte(u.GitHubID))
	}))
}

func TestBearerCredentialSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/me?access_token=from-query", nil)
	assert.Equal(t, "from-query", BearerCredential(r))

	r.Header.Set("Authorization", "bearer from-header")
	assert.Equal(t, "from-header", BearerCredential(r))

	r = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, BearerCredential(r))
}

func TestRequireBearer(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		status    int
		challenge string
	}{
		{"missing", "", http.StatusUnauthorized, `Bearer realm="Users"`},
		{"unknown", "Bearer nope", http.StatusUnauthorized, `Bearer realm="Users", error="invalid_token"`},
		{"validator error", "Bearer boom", http.StatusInternalServerError, ""},
		{"ok", "Bearer gho_ok", http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			guarded(t, &called).ServeHTTP(rec, r)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.challenge, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tc.status == http.StatusOK, called)
			if tc.status == http.StatusOK {
				assert.Equal(t, "42", rec.Body.String())
			} else {
				assert.NotContains(t, rec.Body.String(), "42")
			}
		})
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, stderrors.New("redis down")
}

func TestWithRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	h := WithRateLimit(RateLimitConfig{Limiter: rate.NewMemoryLimiter(1, time.Hour), KeyFunc: IPPathRateKey})(ok)
	do := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}
	assert.Equal(t, http.StatusNoContent, do("/api/auth/github").Code)
	blocked := do("/api/auth/github")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	// otro path, otro cupo
	assert.Equal(t, http.StatusNoContent, do("/api/auth/logout").Code)

	open := WithRateLimit(RateLimitConfig{Limiter: failingLimiter{}})(ok)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestProxyPolicyResolve(t *testing.T) {
	p, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.7 "})
	require.NoError(t, err)

	req := func(remote, xff string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if xff != "" {
			r.Header.Set("X-Forwarded-For", xff)
		}
		return r
	}

	// cliente directo: el header se ignora
	assert.Equal(t, "198.51.100.1", p.Resolve(req("198.51.100.1:5000", "1.2.3.4")))
	assert.Equal(t, "198.51.100.1", ProxyPolicy{}.Resolve(req("198.51.100.1:5000", "1.2.3.4")))

	// detrás de proxies confiables se toma el primer salto no confiable desde la derecha
	assert.Equal(t, "203.0.113.5", p.Resolve(req("10.1.1.1:443", "1.2.3.4, 203.0.113.5, 10.2.2.2")))
	assert.Equal(t, "203.0.113.5", p.Resolve(req("192.0.2.7:443", "203.0.113.5")))

	// sin header o con basura queda el último salto válido
	assert.Equal(t, "10.1.1.1", p.Resolve(req("10.1.1.1:443", "")))
	assert.Equal(t, "10.2.2.2", p.Resolve(req("10.1.1.1:443", "nope, 10.2.2.2")))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	require.Error(t, err)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := WithClientIP(ProxyPolicy{})(WithRateLimit(RateLimitConfig{Limiter: rate.NewMemoryLimiter(1, time.Hour)})(ok))

	allowed := 0
	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/github", nil)
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code == http.StatusNoContent {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRateLimitOnLimitOverridesJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(1, time.Hour),
		OnLimit: func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/", http.StatusFound) },
	})(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
