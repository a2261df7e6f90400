package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"socialhub/cache"
	"socialhub/clock"
	"socialhub/logging"
	"socialhub/memstore"
	"socialhub/middleware"
	"socialhub/models"
	"socialhub/tokens"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const secret = "gateway-test-secret"

type seen struct {
	hits   atomic.Int32
	path   atomic.Value
	userID atomic.Value
	body   atomic.Value
}

func backend(t *testing.T) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.path.Store(r.URL.RequestURI())
		s.userID.Store(r.Header.Get(middleware.UserIDHeader))
		b, _ := io.ReadAll(r.Body)
		s.body.Store(string(b))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

type harness struct {
	router *gin.Engine
	clock  *clock.Stub
}

func newHarness(t *testing.T, routes []Route, limit int) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	c := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	clk := clock.NewStub(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	prepared, err := prepare(routes)
	require.NoError(t, err)

	gw := New(prepared, tokens.NewVerifier(secret, clk), logging.Discard())
	r := gin.New()
	r.Use(middleware.RateLimit(cache.NewRateLimiter(c, "rl:gateway", limit, time.Minute, clk), logging.Discard()))
	r.Any("/v1/*path", gw.Dispatch)
	return &harness{router: r, clock: clk}
}

func (h *harness) token(t *testing.T) (string, string) {
	t.Helper()
	svc := tokens.NewService(memstore.NewRefreshTokens(), memstore.NewAccounts(), tokens.Options{Secret: secret, Clock: h.clock})
	account := &models.Account{ID: primitive.NewObjectID(), Username: "gw"}
	pair, err := svc.Issue(context.Background(), account)
	require.NoError(t, err)
	return pair.AccessToken, account.ID.Hex()
}

// proxyRecorder adds CloseNotify to the recorder: gin's writer asserts it
// when the reverse proxy serves a request without a cancelable context.
type proxyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newProxyRecorder() *proxyRecorder {
	return &proxyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *proxyRecorder) CloseNotify() <-chan bool { return r.closed }

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := newProxyRecorder()
	h.router.ServeHTTP(w, req)
	return w.ResponseRecorder
}

func TestProtectedRouteRejectsBeforeBackend(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/posts", Upstream: srv.URL, Protected: true}}, 100)

	for _, header := range []string{"", "Bearer", "Bearer nope", "Token abc"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/posts/create-post", strings.NewReader(`{}`))
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := h.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
	assert.Zero(t, s.hits.Load(), "backend must never see unauthenticated traffic")
}

func TestForwardsWithVerifiedUser(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/posts", Upstream: srv.URL, Protected: true}}, 100)
	token, userID := h.token(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/posts/create-post?draft=1", strings.NewReader(`{"content":"hi there"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserIDHeader, "spoofed")

	w := h.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, "/api/posts/create-post?draft=1", s.path.Load())
	assert.Equal(t, userID, s.userID.Load())
	assert.Equal(t, `{"content":"hi there"}`, s.body.Load())
}

func TestAuthRoutesBypassVerification(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/auth", Upstream: srv.URL}}, 100)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{}`))
	req.Header.Set(middleware.UserIDHeader, "spoofed")
	w := h.do(req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/auth/login", s.path.Load())
	assert.Equal(t, "", s.userID.Load(), "inbound user ids are stripped on public routes too")
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/posts", Upstream: srv.URL}}, 100)

	for _, path := range []string{"/v1/unknown", "/v1/postsx/1"} {
		w := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	assert.Zero(t, s.hits.Load())
}

func TestUnreachableBackendIs500(t *testing.T) {
	srv, _ := backend(t)
	url := srv.URL
	srv.Close()
	h := newHarness(t, []Route{{Prefix: "/v1/search", Upstream: url}}, 100)

	w := h.do(httptest.NewRequest(http.MethodGet, "/v1/search/posts?query=go", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal server error"}`, w.Body.String())
}

func TestBodyLimit(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/auth", Upstream: srv.URL, MaxBodyBytes: 8}}, 100)

	w := h.do(httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, s.hits.Load())
}

func TestRateLimitNPlusOne(t *testing.T) {
	srv, s := backend(t)
	h := newHarness(t, []Route{{Prefix: "/v1/auth", Upstream: srv.URL}}, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, h.do(httptest.NewRequest(http.MethodGet, "/v1/auth/x", nil)).Code)
	}
	w := h.do(httptest.NewRequest(http.MethodGet, "/v1/auth/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, int32(3), s.hits.Load())

	h.clock.Advance(time.Minute)
	assert.Equal(t, http.StatusCreated, h.do(httptest.NewRequest(http.MethodGet, "/v1/auth/x", nil)).Code)
}

func TestLoadRoutes(t *testing.T) {
	t.Setenv("TEST_POST_URL", "http://posts.internal:3002")
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  - prefix: /v1/auth
    upstream: http://identity:3001
  - prefix: /v1/posts/
    upstream: ${TEST_POST_URL}
    protected: true
    maxBodyBytes: 1024
  - prefix: /v1/posts/live
    upstream: ${TEST_POST_URL}
    targetPrefix: /api/posts/live
    protected: true
`), 0o600))

	routes, err := LoadRoutes(path)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, "/v1/posts/live", routes[0].Prefix, "longest prefix first")
	assert.Equal(t, "/v1/posts", routes[1].Prefix)
	assert.Equal(t, "/api/posts", routes[1].TargetPrefix)
	assert.Equal(t, "posts.internal:3002", routes[1].target.Host)
	assert.True(t, routes[1].Protected)
	assert.Equal(t, int64(1024), routes[1].MaxBodyBytes)
	assert.Equal(t, "/api/posts/create-post", routes[1].rewrite("/v1/posts/create-post"))
}

func TestLoadRoutesRejectsBadTables(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty":        "routes: []",
		"no scheme":    "routes:\n  - prefix: /v1/a\n    upstream: identity:3001\n",
		"bad prefix":   "routes:\n  - prefix: v1/a\n    upstream: http://a\n",
		"duplicate":    "routes:\n  - prefix: /v1/a\n    upstream: http://a\n  - prefix: /v1/a/\n    upstream: http://b\n",
		"invalid yaml": "routes: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadRoutes(path)
			assert.Error(t, err)
		})
	}
}
