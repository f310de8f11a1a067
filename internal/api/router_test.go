package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/api/middleware"
	"github.com/d60-Lab/engagement-service/internal/model"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/database"
)

const (
	testSecret     = "test-secret"
	testServiceKey = "svc-key"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testServiceKey), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, Mode: gin.TestMode, JWTSecret: testSecret, ServiceKeyHash: string(hash), IPRate: 1000, IPBurst: 1000},
		Tracing: config.TracingConfig{ServiceName: "engagement-test"},
		RateLimit: config.RateLimitConfig{
			Store: "database",
			Policies: map[string]config.PolicyConfig{
				"comment": {Limit: 10, Window: 60},
				"like":    {Limit: 30, Window: 60},
				"post":    {Limit: 5, Window: 3600},
				"search":  {Limit: 60, Window: 60},
				"report":  {Limit: 5, Window: 3600},
				"pin":     {Limit: 3, Window: 2592000},
			},
			Bypass:        []config.BypassConfig{{Role: "admin", Action: "post"}},
			RoleCacheTTL:  time.Minute,
			RoleCacheSize: 100,
			Retention:     24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Trending: config.TrendingConfig{
			Interval: time.Hour, RunTimeout: 10 * time.Second, Lookback: 7 * 24 * time.Hour, TopN: 10,
			LikeWeight: 1, CommentWeight: 2, ShareWeight: 3, ViewWeight: 0.1,
			DecayExponent: -1.5, DecayOffset: 2, Concurrency: 4,
		},
		Signup: config.SignupConfig{
			AllowedDomains:    []string{"gmail.com"},
			DisposableDomains: []string{"tempmail.com"},
			MaxAttempts:       5,
			AttemptWindow:     time.Hour,
		},
	}
}

type testServer struct {
	t   *testing.T
	db  *gorm.DB
	app *App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(t))
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	users := repository.NewUserRepository(db)
	for _, u := range []*model.User{
		{ID: "u1", Username: "u1", Email: "u1@gmail.com", Role: model.RoleNormal},
		{ID: "admin", Username: "admin", Email: "admin@gmail.com", Role: model.RoleAdmin},
	} {
		require.NoError(t, users.Create(context.Background(), u))
	}
	return &testServer{t: t, db: db, app: NewApp(cfg, db, nil)}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)
	return w
}

func (s *testServer) bearer(userID string, role model.Role) map[string]string {
	s.t.Helper()
	tok, err := middleware.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(s.t, err)
	return map[string]string{"Authorization": "Bearer " + tok}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

var svcHeaders = map[string]string{middleware.ServiceKeyHeader: testServiceKey}

func TestRouter_RateLimitCheck(t *testing.T) {
	s := newTestServer(t)
	req := map[string]string{"subject_id": "u1", "action_kind": "comment"}

	for i := 0; i < 10; i++ {
		w := s.do(http.MethodPost, "/api/v1/rate-limit/check", req, svcHeaders)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["allowed"])
		assert.Equal(t, float64(10), body["limit"])
		assert.Equal(t, float64(9-i), body["remaining"])
		assert.Equal(t, float64(0), body["retry_after"])
	}

	w := s.do(http.MethodPost, "/api/v1/rate-limit/check", req, svcHeaders)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	body := decode(t, w)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, float64(60), body["retry_after"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "Rate limit exceeded. Maximum 10 comments per 1 minute(s).", body["message"])
}

func TestRouter_RateLimitCheckErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"subject_id": "u1", "action_kind": "donate"}, svcHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["allowed"])
	assert.NotEmpty(t, body["error"])

	w = s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"subject_id": "ghost", "action_kind": "comment"}, svcHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["allowed"])

	w = s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"action_kind": "comment"}, svcHeaders)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"subject_id": "u1", "action_kind": "comment"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"subject_id": "u1", "action_kind": "comment"},
		map[string]string{middleware.ServiceKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_TrendingRun(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/internal/trending/run", nil, svcHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "No posts to update", body["message"])
	assert.Equal(t, float64(0), body["trending_count"])
	assert.Equal(t, float64(0), body["total_processed"])

	posts := repository.NewPostRepository(s.db)
	for i := 0; i < 12; i++ {
		require.NoError(t, posts.Create(context.Background(), &model.Post{AuthorID: "u1", Title: "p", LikesCount: int64(i)}))
	}
	w = s.do(http.MethodPost, "/api/v1/internal/trending/run", nil, svcHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "Trending posts updated successfully", body["message"])
	assert.Equal(t, float64(10), body["trending_count"])
	assert.Equal(t, float64(12), body["total_processed"])

	w = s.do(http.MethodGet, "/api/v1/posts/trending?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 5)

	w = s.do(http.MethodGet, "/api/v1/internal/stats", nil, svcHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/internal/action-logs/purge", nil, svcHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["data"].(map[string]any)["deleted"])
}

func TestRouter_UserRoutes(t *testing.T) {
	s := newTestServer(t)
	user := s.bearer("u1", model.RoleNormal)

	w := s.do(http.MethodPost, "/api/v1/posts", map[string]string{"title": "hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var postID string
	for i := 0; i < 5; i++ {
		w = s.do(http.MethodPost, "/api/v1/posts", map[string]string{"title": "hi"}, user)
		require.Equal(t, http.StatusCreated, w.Code)
		postID = decode(t, w)["data"].(map[string]any)["id"].(string)
	}
	w = s.do(http.MethodPost, "/api/v1/posts", map[string]string{"title": "hi"}, user)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(3600), data["retry_after"])
	assert.Equal(t, float64(5), data["limit"])

	w = s.do(http.MethodPost, "/api/v1/posts/"+postID+"/like", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]any)["liked"])

	w = s.do(http.MethodPost, "/api/v1/posts/"+postID+"/view", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/posts/"+postID+"/comment", map[string]string{"body": "nice"}, user)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "nice", decode(t, w)["data"].(map[string]any)["body"])

	w = s.do(http.MethodGet, "/api/v1/posts/"+postID+"/comments", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	comments := decode(t, w)["data"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "u1", comments[0].(map[string]any)["user_id"])

	w = s.do(http.MethodPost, "/api/v1/posts/missing/share", nil, user)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/posts/search?q=hi", nil, user)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/posts/"+postID+"/report", map[string]string{"reason": "spam"}, user)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/v1/posts/"+postID+"/report", nil, user)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/posts/"+postID+"/ban", map[string]bool{"banned": true}, user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, "/api/v1/admin/posts/"+postID+"/ban", map[string]bool{"banned": true}, s.bearer("admin", model.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/posts/for-you", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].(map[string]any)["list"], 4)
}

func TestRouter_SignupAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/signup/verify-email", map[string]string{"email": "new@gmail.com", "action": "signup"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "gmail.com", body["domain"])

	w = s.do(http.MethodPost, "/api/v1/signup/verify-email", map[string]string{"email": "new@yahoo.com", "action": "signup"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, decode(t, w)["allowed"])

	w = s.do(http.MethodPost, "/api/v1/signup/verify-email", map[string]string{"email": "new@gmail.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_IPThrottleSkipsServiceRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.IPRate = 20
	cfg.Server.IPBurst = 40
	s := newTestServerWithConfig(t, cfg)

	// search 配额 60/60s，全部在配额内
	req := map[string]string{"subject_id": "u1", "action_kind": "search"}
	for i := 0; i < 60; i++ {
		w := s.do(http.MethodPost, "/api/v1/rate-limit/check", req, svcHeaders)
		require.Equal(t, http.StatusOK, w.Code, "check %d", i)
		body := decode(t, w)
		assert.Equal(t, true, body["allowed"])
		assert.Equal(t, float64(59-i), body["remaining"])
	}
}

func TestRouter_IPThrottleOnUserRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.IPRate = 0.001
	cfg.Server.IPBurst = 2
	s := newTestServerWithConfig(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/posts/trending", nil, nil).Code)
	}
	w := s.do(http.MethodGet, "/api/v1/posts/for-you", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 服务密钥路由不共享这个桶
	w = s.do(http.MethodPost, "/api/v1/rate-limit/check", map[string]string{"subject_id": "u1", "action_kind": "comment"}, svcHeaders)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Notifications(t *testing.T) {
	s := newTestServer(t)
	author := s.bearer("u1", model.RoleNormal)
	other := s.bearer("admin", model.RoleAdmin)

	w := s.do(http.MethodPost, "/api/v1/posts", map[string]string{"title": "hi"}, author)
	require.Equal(t, http.StatusCreated, w.Code)
	postID := decode(t, w)["data"].(map[string]any)["id"].(string)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/posts/"+postID+"/like", nil, other).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/posts/"+postID+"/comment", map[string]string{"body": "hey"}, other).Code)

	w = s.do(http.MethodGet, "/api/v1/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/notifications", nil, author)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["unread_count"])
	items := data["items"].([]any)
	require.Len(t, items, 2)
	firstID := items[0].(map[string]any)["id"].(string)

	w = s.do(http.MethodPost, "/api/v1/notifications/"+firstID+"/read", nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodPost, "/api/v1/notifications/"+firstID+"/read", nil, author)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/notifications/read-all", nil, author)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]any)["updated"])
}
