package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/in-nis/untis-back/internal/config"
	"github.com/in-nis/untis-back/internal/models"
)

var errNotFound = errors.New("record not found")

type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uint(len(m.users) + 1)
	m.users = append(m.users, u)
	return nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *memUsers) LinkGoogleUser(ctx context.Context, googleID, email string) (*models.User, error) {
	u := &models.User{Username: email, Email: email, GoogleID: googleID}
	return u, m.CreateUser(ctx, u)
}

type staticProfiles struct{ data models.ProfileData }

func (p staticProfiles) GetProfile(context.Context, uint) (models.ProfileData, error) {
	return p.data, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		AdminUsers:      []string{"admin"},
	}
}

func setupAuth(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(testConfig(), &memUsers{}, staticProfiles{data: models.ProfileData{Grade: "EF"}})

	r := gin.New()
	r.POST("/api/auth/register", svc.RegisterHandler())
	r.POST("/api/auth/login", svc.LoginHandler())
	r.POST("/api/auth/logout", svc.LogoutHandler())
	r.POST("/api/auth/refresh", svc.RefreshHandler())
	r.GET("/api/auth/status", svc.StatusHandler())
	r.GET("/auth/google/login", svc.GoogleLoginHandler())

	protected := r.Group("/api")
	protected.Use(svc.AuthMiddleware())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "username": Username(c)})
	})
	admin := protected.Group("/admin")
	admin.Use(AdminMiddleware(svc.cfg))
	admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r, svc
}

func do(r http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func tokens(t *testing.T, w *httptest.ResponseRecorder) TokenPair {
	t.Helper()
	var pair TokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	return pair
}

func TestRegisterLoginAndAccess(t *testing.T) {
	r, _ := setupAuth(t)

	w := do(r, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Values("Set-Cookie")[0], "access_token=")

	w = do(r, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"another pass"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	pair := tokens(t, w)

	w = do(r, http.MethodGet, "/api/me", "", bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/me", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: accessCookie, Value: pair.AccessToken})
	})
	assert.Equal(t, http.StatusOK, w.Code, "cookie auth")

	w = do(r, http.MethodGet, "/api/me", "", bearer(pair.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are not access tokens")

	w = do(r, http.MethodGet, "/api/admin/ping", "", bearer(pair.AccessToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	r, _ := setupAuth(t)
	for _, body := range []string{
		`{}`,
		`{"username":"al","password":"longenough"}`,
		`{"username":"with space","password":"longenough"}`,
		`{"username":"alice","password":"short"}`,
	} {
		w := do(r, http.MethodPost, "/api/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestAdminAccess(t *testing.T) {
	r, _ := setupAuth(t)
	w := do(r, http.MethodPost, "/api/auth/register", `{"username":"admin","password":"admin-pass"}`)
	pair := tokens(t, w)

	w = do(r, http.MethodGet, "/api/admin/ping", "", bearer(pair.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRefresh(t *testing.T) {
	r, svc := setupAuth(t)
	pair := tokens(t, do(r, http.MethodPost, "/api/auth/register", `{"username":"bob","password":"bob-password"}`))

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	w := do(r, http.MethodGet, "/api/me", "", bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access token expired")

	w = do(r, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/auth/refresh", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: refreshCookie, Value: pair.RefreshToken})
	})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := tokens(t, w)

	w = do(r, http.MethodGet, "/api/me", "", bearer(fresh.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatus(t *testing.T) {
	r, _ := setupAuth(t)

	w := do(r, http.MethodGet, "/api/auth/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false,"admin":false}`, w.Body.String())

	pair := tokens(t, do(r, http.MethodPost, "/api/auth/register", `{"username":"carol","password":"carol-pass"}`))
	w = do(r, http.MethodGet, "/api/auth/status", "", bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Authenticated)
	assert.Equal(t, "carol", st.Username)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "EF", st.Profile.Grade)
}

func TestLogoutClearsCookies(t *testing.T) {
	r, _ := setupAuth(t)
	w := do(r, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := strings.Join(w.Header().Values("Set-Cookie"), "\n")
	assert.Contains(t, cookies, "access_token=;")
	assert.Contains(t, cookies, "Max-Age=0")
}

func TestGoogleLoginDisabled(t *testing.T) {
	r, _ := setupAuth(t)
	w := do(r, http.MethodGet, "/auth/google/login", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	_, svc := setupAuth(t)
	other := NewService(&config.Config{JWTSecret: "other", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Minute}, &memUsers{}, nil)
	pair, err := other.IssueTokens(&models.User{ID: 1, Username: "eve"})
	require.NoError(t, err)

	_, err = svc.ParseToken(pair.AccessToken, tokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "other"))
	assert.False(t, CheckPassword("", "s3cret-pass"))
}
