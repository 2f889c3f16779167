package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/forumboard/internal/entity"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	ownership "anoa.com/forumboard/internal/modules/ownership/service"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	userRepo "anoa.com/forumboard/internal/modules/user/repository"
	user "anoa.com/forumboard/internal/modules/user/service"
	"anoa.com/forumboard/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "middleware-secret"

func sign(t *testing.T, subject string, ttl time.Duration) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, user.Claims{
		Role: "admin", // ignored, the row decides
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	auth := NewAuthMiddleware(userRepo.NewUserRepository(db), secret)
	owner := ownership.NewOwnershipService(threadRepo.NewThreadRepository(db), commentRepo.NewCommentRepository(db))

	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.DELETE("/threads/:id", auth.RequireAuth(), RequireOwnership(owner, ownership.ResourceThread), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	r := newRouter(db)

	w := do(r, http.MethodGet, "/me", sign(t, alice.ID.String(), time.Hour))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, alice.ID.String(), body["user_id"])
	assert.Equal(t, entity.RoleUser, body["role"])

	// query parameter fallback for websocket clients
	w = do(r, http.MethodGet, "/me?token="+sign(t, alice.ID.String(), time.Hour), "")
	assert.Equal(t, http.StatusOK, w.Code)

	for name, token := range map[string]string{
		"missing":      "",
		"garbage":      "not-a-jwt",
		"expired":      sign(t, alice.ID.String(), -time.Minute),
		"unknown user": sign(t, uuid.NewString(), time.Hour),
	} {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/me", token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
		})
	}
}

func TestRequireOwnership(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	admin := testutil.CreateUser(t, db, "admin")
	require.NoError(t, db.Model(&admin).Update("role", entity.RoleAdmin).Error)
	thread := testutil.CreateThread(t, db, alice, "alice's")
	r := newRouter(db)

	path := "/threads/" + thread.ID.String()
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, path, sign(t, bob.ID.String(), time.Hour)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, path, sign(t, alice.ID.String(), time.Hour)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, path, sign(t, admin.ID.String(), time.Hour)).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/threads/"+uuid.NewString(), sign(t, alice.ID.String(), time.Hour)).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/threads/nope", sign(t, alice.ID.String(), time.Hour)).Code)
}
