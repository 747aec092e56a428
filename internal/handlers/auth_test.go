package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/unica-api/internal/constants"
	"github.com/yukikurage/unica-api/internal/dto"
	apierrors "github.com/yukikurage/unica-api/internal/errors"
	"github.com/yukikurage/unica-api/internal/middleware"
	"github.com/yukikurage/unica-api/internal/services"
)

func authRouter(env testEnv) *gin.Engine {
	r := gin.New()
	store := cookie.NewStore([]byte("secret"))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))
	r.POST("/api/auth/signup", env.auth.Signup)
	r.POST("/api/auth/login", env.auth.Login)
	r.POST("/api/auth/logout", env.auth.Logout)
	r.GET("/api/auth/me", middleware.RequireAuth(), env.auth.GetCurrentUser)
	return r
}

func postJSON(r *gin.Engine, url string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Signup(t *testing.T) {
	env := setupTestEnv(t)
	r := authRouter(env)

	w := postJSON(r, "/api/auth/signup", map[string]string{
		"username":     "newuser",
		"display_name": "New User",
		"password":     "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	response := decode[dto.UserDTO](t, w)
	require.Equal(t, "newuser", response.Username)
	require.Equal(t, "New User", response.DisplayName)
}

func TestAuthHandler_SignupRejectsDuplicateAndShortPassword(t *testing.T) {
	env := setupTestEnv(t)
	r := authRouter(env)

	w := postJSON(r, "/api/auth/signup", map[string]string{"username": "dup", "password": "supersecret"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/api/auth/signup", map[string]string{"username": "dup", "password": "supersecret"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(r, "/api/auth/signup", map[string]string{"username": "short", "password": "123"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_LoginMeLogout(t *testing.T) {
	env := setupTestEnv(t)
	r := authRouter(env)

	_, err := env.authService.Signup(services.SignupInput{
		Username: "existing",
		Password: "supersecret",
	})
	require.NoError(t, err)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "existing", "password": "supersecret"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "existing", decode[dto.UserDTO](t, w).Username)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "expected session cookie to be set")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "existing", decode[dto.UserDTO](t, w).Username)

	w = postJSON(r, "/api/auth/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	env := setupTestEnv(t)
	r := authRouter(env)

	_, err := env.authService.Signup(services.SignupInput{Username: "existing", Password: "supersecret"})
	require.NoError(t, err)

	w := postJSON(r, "/api/auth/login", map[string]string{"username": "existing", "password": "wrongpassword"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, apierrors.ErrCodeUnauthorized, errorCode(t, w))
	require.Empty(t, w.Result().Cookies())
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.authService.Signup(services.SignupInput{
		Username: "current-user",
		Password: "supersecret",
	})
	require.NoError(t, err)

	c, w := testContext(http.MethodGet, "/api/auth/me", nil, user.ID)
	env.auth.GetCurrentUser(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, user.Username, decode[dto.UserDTO](t, w).Username)
}
