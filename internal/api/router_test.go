package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/metrics"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
	"github.com/nekogravitycat/blog-backend/internal/pkg/ratelimit"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
	"github.com/nekogravitycat/blog-backend/internal/pkg/storage"
	"github.com/nekogravitycat/blog-backend/internal/post"
	"github.com/nekogravitycat/blog-backend/internal/post/posttest"
	"github.com/nekogravitycat/blog-backend/internal/user"
)

const testSecret = "router-test-secret"

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// memUsers is a user.Service over a map.
type memUsers struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func (s *memUsers) Register(_ context.Context, name, email, password string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, user.ErrEmailAlreadyUsed
	}
	u := &user.User{
		ID:           fmt.Sprintf("aaaaaaaa-aaaa-4aaa-8aaa-%012d", len(s.users)+1),
		Name:         name,
		Email:        email,
		PasswordHash: password,
		Role:         user.RoleUser,
		CreatedAt:    time.Now(),
	}
	s.users[email] = u
	return u, nil
}

func (s *memUsers) Login(_ context.Context, email, password string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok || u.PasswordHash != password {
		return nil, user.ErrInvalidCredentials
	}
	return u, nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (s *memUsers) EnsureUser(ctx context.Context, name, email, _ string) (*user.User, error) {
	if u, err := s.GetByEmail(ctx, email); err == nil {
		return u, nil
	}
	return s.Register(ctx, name, email, "")
}

type testServer struct {
	router  *gin.Engine
	logs    *syncBuffer
	jwt     *auth.JWTManager
	metrics *metrics.ServerMetrics
}

type option func(*Config)

func newTestServer(t *testing.T, opts ...option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logs := &syncBuffer{}
	log := logger.New(logger.Options{Level: logger.LevelDebug, Format: logger.FormatJSON, Writer: logs})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	m := metrics.New()

	cfg := Config{
		Development:    false,
		CORSOrigins:    []string{"http://localhost:3000"},
		MaxBodyBytes:   1 << 20,
		MaxUploadBytes: 5 << 20,
		Logger:         log,
		Metrics:        m,
		DB:             fakePinger{},
		UserService:    &memUsers{users: map[string]*user.User{}},
		PostService:    post.NewService(posttest.NewMemoryRepository(), store, storage.NewImageProcessor()),
		JWTManager:     jwtManager,
	}
	for _, o := range opts {
		o(&cfg)
	}

	r := NewRouter(cfg)

	// Routes that misbehave on purpose.
	r.GET("/api/test/boom", func(c *gin.Context) {
		response.Error(c, errors.New("database exploded"))
	})
	r.GET("/api/test/panic", func(c *gin.Context) {
		panic("nil map write")
	})
	r.POST("/api/test/echo-log", func(c *gin.Context) {
		var body map[string]any
		require.NoError(t, c.ShouldBindJSON(&body))
		logger.FromContext(c.Request.Context()).Info("echo", "payload", body, "authorization", c.GetHeader("Authorization"))
		c.Status(http.StatusNoContent)
	})

	return &testServer{router: r, logs: logs, jwt: jwtManager, metrics: m}
}

func (s *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var b response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b), w.Body.String())
	return b
}

func TestRegisterMissingEmail(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/register", `{"name":"alice","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	b := errorBody(t, w)
	assert.Equal(t, "error", b.Status)
	assert.Contains(t, b.Message, "email")
}

func TestExpiredToken(t *testing.T) {
	s := newTestServer(t)
	expired := auth.NewJWTManager(testSecret, -time.Minute)
	token, err := expired.GenerateAccessToken("aaaaaaaa-aaaa-4aaa-8aaa-000000000001", "a@b.co", auth.RoleUser)
	require.NoError(t, err)

	w := s.do(http.MethodGet, "/api/auth/me", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", errorBody(t, w).Message)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Resource not found"}`, w.Body.String())
}

func TestUnexpectedErrorProduction(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/test/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Internal Server Error"}`, w.Body.String())
	assert.Contains(t, s.logs.String(), "database exploded")
}

func TestUnexpectedErrorDevelopment(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.Development = true })

	w := s.do(http.MethodGet, "/api/test/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	b := errorBody(t, w)
	assert.Equal(t, "database exploded", b.Message)
	assert.NotEmpty(t, b.Stack)
}

func TestPanicBecomes500(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/test/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", errorBody(t, w).Message)

	// the server keeps serving
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/health", "").Code)

	metricsOut := s.do(http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metricsOut, "http_panic_total 1")
}

func TestConcurrentRequestsRedactIndependently(t *testing.T) {
	s := newTestServer(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"user":{"name":"u%d","password":"pw-%d"},"note":"n%d"}`, i, i, i)
			w := s.do(http.MethodPost, "/api/test/echo-log", body, "Authorization", fmt.Sprintf("Bearer tok-%d", i))
			assert.Equal(t, http.StatusNoContent, w.Code)
		}()
	}
	wg.Wait()

	out := s.logs.String()
	for i := range 20 {
		assert.NotContains(t, out, fmt.Sprintf("pw-%d", i))
		assert.NotContains(t, out, fmt.Sprintf("tok-%d", i))
		assert.Contains(t, out, fmt.Sprintf(`"note":"n%d"`, i))
	}
	assert.Equal(t, 20, strings.Count(out, `"msg":"echo"`))
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = s.do(http.MethodGet, "/api/health", "", "X-Request-Id", "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var h HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "UP", h.Status)
	assert.Equal(t, "UP", h.Database)

	down := newTestServer(t, func(c *Config) { c.DB = fakePinger{err: errors.New("dial tcp: refused")} })
	w = down.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"DOWN"`)
}

func TestDocs(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/docs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = s.do(http.MethodGet, "/api/docs/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/posts/{id}")
}

func TestGzip(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/docs/openapi.json", "", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	// errors are rendered through the same writer and stay readable
	w = s.do(http.MethodGet, "/api/unknown", "", "Accept-Encoding", "gzip")
	assert.Equal(t, http.StatusNotFound, w.Code)
	if w.Header().Get("Content-Encoding") == "gzip" {
		zr, err = gzip.NewReader(w.Body)
		require.NoError(t, err)
		raw, err = io.ReadAll(zr)
		require.NoError(t, err)
	} else {
		raw = w.Body.Bytes()
	}
	assert.JSONEq(t, `{"status":"error","message":"Resource not found"}`, string(raw))
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := newTestServer(t, func(c *Config) {
		c.Limiter = ratelimit.New(ctx, ratelimit.WithWindow(2, time.Hour))
	})

	for range 2 {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/health", "").Code)
	}
	w := s.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ratelimit.Message, errorBody(t, w).Message)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestFormBodyIsAccepted(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"name": {"alice"}, "email": {"alice@example.com"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Malformed JSON body", errorBody(t, w).Message)
}

func TestOversizedBody(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 64 })

	body := `{"email":"a@b.co","password":"` + strings.Repeat("x", 200) + `"}`
	w := s.do(http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/auth/register", `{"name":"alice","email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	authz := "Bearer " + reg.Data.Token

	// anonymous create is rejected
	w = s.do(http.MethodPost, "/api/posts", `{"title":"Hello world","content":"This content is long enough."}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/posts",
		`{"title":"Hello world","content":"This content is <script>alert(1)</script>long enough.","tags":["go"]}`,
		"Authorization", authz)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "alert(1)")

	var created struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "draft", created.Data.Status)
	id := created.Data.ID

	// drafts are hidden from anonymous readers
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/posts/"+id, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/posts/"+id, "", "Authorization", authz).Code)

	w = s.do(http.MethodPut, "/api/posts/"+id, `{"status":"published"}`, "Authorization", authz)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/posts?tags=go,rust&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data response.PageResponse[map[string]any] `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Data.Total)
	assert.Equal(t, 5, page.Data.Limit)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/posts/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/posts?limit=500", "").Code)

	// only admins may trigger generation
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/posts/generate", "", "Authorization", authz).Code)

	w = s.do(http.MethodDelete, "/api/posts/"+id, "", "Authorization", authz)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/posts/"+id, "").Code)
}

func TestGenerateDisabled(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.GenerateAccessToken("bbbbbbbb-bbbb-4bbb-8bbb-000000000001", "admin@example.com", auth.RoleAdmin)
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/api/posts/generate", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
