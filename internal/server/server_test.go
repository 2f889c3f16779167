package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"anoa.com/forumboard/internal/agent/providers"
	"anoa.com/forumboard/internal/bootstrap"
	"anoa.com/forumboard/internal/config"
	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var botID = uuid.MustParse("6f1c1d9e-9b1a-4c55-8d3f-4b8f6a2c0b11")

type scriptedCompleter struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ providers.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.reply, nil
}

// keywordClassifier flags any text containing "forbidden".
type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string) (string, error) {
	if strings.Contains(strings.ToLower(text), "forbidden") {
		return "unsafe\nS1", nil
	}
	return "safe", nil
}

type appFixture struct {
	t         *testing.T
	db        *gorm.DB
	srv       *Server
	completer *scriptedCompleter
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		AllowedOrigins:        "*",
		JWTSecret:             "server-test-secret",
		JWTTTL:                time.Hour,
		ForumBotID:            botID,
		AutoReplyThreadDelay:  50 * time.Millisecond,
		AutoReplyCommentDelay: 50 * time.Millisecond,
		AITaskTimeout:         5 * time.Second,
		MaxUploadBytes:        1 << 20,
	}
}

func newApp(t *testing.T, mutate func(*config.Config)) *appFixture {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	db := testutil.NewDB(t)
	require.NoError(t, bootstrap.SeedForumBot(db, botID, slog.Default()))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	completer := &scriptedCompleter{reply: "Welcome to the board!"}
	srv, err := NewServer(Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Completer:  completer,
		Classifier: keywordClassifier{},
	})
	require.NoError(t, err)
	srv.Scheduler().Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &appFixture{t: t, db: db, srv: srv, completer: completer}
}

func (a *appFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signup registers and logs in a user, returning the bearer token.
func (a *appFixture) signup(username string) string {
	a.t.Helper()

	w := a.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](a.t, w).Token
}

type authorBody struct {
	ID    uuid.UUID `json:"id"`
	IsBot bool      `json:"is_bot"`
}

type commentBody struct {
	ID       uuid.UUID     `json:"id"`
	ThreadID uuid.UUID     `json:"thread_id"`
	ParentID *uuid.UUID    `json:"parent_id"`
	Content  string        `json:"content"`
	Author   authorBody    `json:"author"`
	Replies  []commentBody `json:"replies"`
}

type threadBody struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	CommentCount int64         `json:"comment_count"`
	Author       authorBody    `json:"author"`
	Comments     []commentBody `json:"comments"`
}

func (a *appFixture) botComments(threadID uuid.UUID) []entity.Comment {
	var rows []entity.Comment
	require.NoError(a.t, a.db.Where("thread_id = ? AND author_id = ?", threadID, botID).Order("created_at").Find(&rows).Error)
	return rows
}

func TestHelloWorldGetsBotReply(t *testing.T) {
	const delay = 3 * time.Second
	app := newApp(t, func(c *config.Config) { c.AutoReplyThreadDelay = delay })
	token := app.signup("alice")

	start := time.Now()
	w := app.do(http.MethodPost, "/api/threads", token, map[string]string{
		"title":   "Hello World",
		"content": "My first thread on the board",
	})
	elapsed := time.Since(start)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Less(t, elapsed, delay/3, "create must return before the reply delay")

	thread := decode[threadBody](t, w)
	assert.Equal(t, "Hello World", thread.Title)
	assert.False(t, thread.Author.IsBot)
	assert.Empty(t, app.botComments(thread.ID), "create must not wait for the bot")

	require.Eventually(t, func() bool {
		return len(app.botComments(thread.ID)) == 1
	}, delay+3*time.Second, 50*time.Millisecond)

	w = app.do(http.MethodGet, "/api/threads/"+thread.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[threadBody](t, w)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Welcome to the board!", detail.Comments[0].Content)
	assert.True(t, detail.Comments[0].Author.IsBot)
	assert.Nil(t, detail.Comments[0].ParentID)
	assert.Equal(t, int64(1), detail.CommentCount)
}

func TestThanksBotGetsExactlyOneReply(t *testing.T) {
	app := newApp(t, nil)
	token := app.signup("alice")

	w := app.do(http.MethodPost, "/api/threads", token, map[string]string{"title": "Hello World", "content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	thread := decode[threadBody](t, w)

	require.Eventually(t, func() bool { return len(app.botComments(thread.ID)) == 1 }, 3*time.Second, 20*time.Millisecond)
	botComment := app.botComments(thread.ID)[0]

	app.completer.mu.Lock()
	app.completer.reply = "Glad to help!"
	app.completer.mu.Unlock()

	w = app.do(http.MethodPost, "/api/comments", token, map[string]any{
		"parent_id": botComment.ID,
		"content":   "Thanks bot!",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	userComment := decode[commentBody](t, w)
	assert.Equal(t, thread.ID, userComment.ThreadID)
	require.NotNil(t, userComment.ParentID)
	assert.Equal(t, botComment.ID, *userComment.ParentID)

	require.Eventually(t, func() bool { return len(app.botComments(thread.ID)) == 2 }, 3*time.Second, 20*time.Millisecond)

	// the bot's own reply must not trigger another one
	time.Sleep(200 * time.Millisecond)
	replies := app.botComments(thread.ID)
	require.Len(t, replies, 2)
	require.NotNil(t, replies[1].ParentID)
	assert.Equal(t, userComment.ID, *replies[1].ParentID)
	assert.Equal(t, "Glad to help!", replies[1].Content)

	w = app.do(http.MethodGet, "/api/comments/thread/"+thread.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]commentBody](t, w)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.True(t, tree[0].Replies[0].Replies[0].Author.IsBot)
}

func TestRejectedContentIsNotStored(t *testing.T) {
	app := newApp(t, nil)
	token := app.signup("mallory")

	w := app.do(http.MethodPost, "/api/threads", token, map[string]string{
		"title":   "Totally normal",
		"content": "this is forbidden talk",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "moderation_rejected", body["code"])

	var count int64
	require.NoError(t, app.db.Model(&entity.Thread{}).Count(&count).Error)
	assert.Zero(t, count)

	time.Sleep(150 * time.Millisecond)
	app.completer.mu.Lock()
	defer app.completer.mu.Unlock()
	assert.Zero(t, app.completer.calls)
}

func TestAuthAndOwnershipRoutes(t *testing.T) {
	app := newApp(t, nil)
	alice := app.signup("alice")
	bob := app.signup("bob")

	w := app.do(http.MethodPost, "/api/threads", "", map[string]string{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/api/threads", alice, map[string]string{"title": "Alice's", "content": "c"})
	require.Equal(t, http.StatusCreated, w.Code)
	thread := decode[threadBody](t, w)

	w = app.do(http.MethodPut, "/api/threads/"+thread.ID.String(), bob, map[string]string{"title": "hijack", "content": "c"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodDelete, "/api/threads/"+thread.ID.String(), alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/threads/"+thread.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThreadCreationIsRateLimited(t *testing.T) {
	app := newApp(t, func(c *config.Config) { c.RateLimitThread = time.Minute })
	token := app.signup("alice")

	w := app.do(http.MethodPost, "/api/threads", token, map[string]string{"title": "one", "content": "c"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodPost, "/api/threads", token, map[string]string{"title": "two", "content": "c"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[map[string]string](t, w)["code"])
}

func TestThreadEventsStreamComments(t *testing.T) {
	app := newApp(t, func(c *config.Config) { c.ForumBotID = uuid.Nil })
	token := app.signup("alice")

	w := app.do(http.MethodPost, "/api/threads", token, map[string]string{"title": "Live", "content": "c"})
	require.Equal(t, http.StatusCreated, w.Code)
	thread := decode[threadBody](t, w)

	ts := httptest.NewServer(app.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/threads/" + thread.ID.String() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	w = app.do(http.MethodPost, "/api/comments", token, map[string]any{"thread_id": thread.ID, "content": "streamed"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Event    string      `json:"event"`
		ThreadID uuid.UUID   `json:"thread_id"`
		Data     commentBody `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "comment.created", event.Event)
	assert.Equal(t, thread.ID, event.ThreadID)
	assert.Equal(t, "streamed", event.Data.Content)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(t, nil)

	w := app.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok", "database": "up", "redis": "up"}, decode[map[string]string](t, w))

	w = app.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServerWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)

	srv, err := NewServer(Deps{Config: testConfig(), DB: db})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	req = httptest.NewRequest(http.MethodGet, "/api/threads/"+uuid.NewString()+"/events", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// no file storage configured, so uploads are not routed
	req = httptest.NewRequest(http.MethodPost, "/api/uploads", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewServerNeedsDatabase(t *testing.T) {
	_, err := NewServer(Deps{Config: testConfig()})
	assert.Error(t, err)
}
