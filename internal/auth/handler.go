package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/in-nis/untis-back/internal/models"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type StatusResponse struct {
	Authenticated bool                `json:"authenticated"`
	Username      string              `json:"username,omitempty"`
	Admin         bool                `json:"admin"`
	Profile       *models.ProfileData `json:"profile,omitempty"`
}

func (s *Service) setTokenCookies(c *gin.Context, pair TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, pair.AccessToken, int(s.cfg.AccessTokenTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
	c.SetCookie(refreshCookie, pair.RefreshToken, int(s.cfg.RefreshTokenTTL.Seconds()), "/api/auth", "", s.cfg.CookieSecure, true)
}

func (s *Service) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
	c.SetCookie(refreshCookie, "", -1, "/api/auth", "", s.cfg.CookieSecure, true)
}

func (s *Service) respondWithTokens(c *gin.Context, status int, u *models.User) {
	pair, err := s.IssueTokens(u)
	if err != nil {
		log.Println("❌ Failed to sign tokens:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue tokens"})
		return
	}
	s.setTokenCookies(c, pair)
	c.JSON(status, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"username":      u.Username,
	})
}

// @Summary      Register a local account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  Credentials  true  "Username and password"
// @Success      201 {object} map[string]string
// @Failure      400 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /api/auth/register [post]
func (s *Service) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if n := len(req.Username); n < 3 || n > 64 || strings.ContainsAny(req.Username, " \t\n") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-64 characters without spaces"})
			return
		}
		if len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must have at least 8 characters"})
			return
		}

		if _, err := s.users.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		u := &models.User{Username: req.Username, PasswordHash: hash}
		if err := s.users.CreateUser(c.Request.Context(), u); err != nil {
			log.Println("❌ Failed to create user:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user"})
			return
		}
		log.Printf("✅ Registered user %s", u.Username)
		s.respondWithTokens(c, http.StatusCreated, u)
	}
}

// @Summary      Login with username and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  Credentials  true  "Username and password"
// @Success      200 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /api/auth/login [post]
func (s *Service) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req Credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		u, err := s.Authenticate(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
			return
		}
		s.respondWithTokens(c, http.StatusOK, u)
	}
}

// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /api/auth/logout [post]
func (s *Service) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.clearTokenCookies(c)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// @Summary      Refresh tokens
// @Description  Takes the refresh token from the body or the refresh cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /api/auth/refresh [post]
func (s *Service) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.RefreshToken == "" {
			req.RefreshToken, _ = c.Cookie(refreshCookie)
		}
		if req.RefreshToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing refresh token"})
			return
		}

		claims, err := s.ParseToken(req.RefreshToken, tokenRefresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
			return
		}
		u, err := s.users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}
		s.respondWithTokens(c, http.StatusOK, u)
	}
}

// @Summary      Login status
// @Description  Never fails; anonymous callers get authenticated=false
// @Tags         auth
// @Produce      json
// @Success      200 {object} StatusResponse
// @Router       /api/auth/status [get]
func (s *Service) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := accessToken(c)
		if !ok {
			c.JSON(http.StatusOK, StatusResponse{})
			return
		}
		claims, err := s.ParseToken(tok, tokenAccess)
		if err != nil {
			c.JSON(http.StatusOK, StatusResponse{})
			return
		}

		resp := StatusResponse{
			Authenticated: true,
			Username:      claims.Username,
			Admin:         s.cfg.IsAdmin(claims.Username),
		}
		if s.profiles != nil {
			if p, err := s.profiles.GetProfile(c.Request.Context(), claims.UserID); err == nil {
				resp.Profile = &p
			} else {
				log.Println("⚠️ Failed to load profile:", err)
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary      Login with Google
// @Tags         auth
// @Success      307 {string} string "redirect to Google"
// @Failure      404 {object} map[string]string
// @Router       /auth/google/login [get]
func (s *Service) GoogleLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.google == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google login is not configured"})
			return
		}
		state, err := randomState()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start login"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, 600, "/auth/google", "", s.cfg.CookieSecure, true)
		c.Redirect(http.StatusTemporaryRedirect, s.google.AuthCodeURL(state, oauth2.AccessTypeOnline))
	}
}

// @Summary      Google Callback
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      400 {object} map[string]string
// @Router       /auth/google/callback [get]
func (s *Service) GoogleCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.google == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google login is not configured"})
			return
		}
		want, err := c.Cookie(stateCookie)
		if err != nil || want == "" || c.Query("state") != want {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
			return
		}

		ctx := c.Request.Context()
		token, err := s.google.Exchange(ctx, c.Query("code"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to exchange token"})
			return
		}

		// Fetch user info
		resp, err := s.google.Client(ctx, token).Get(googleUserInfoURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get user info"})
			return
		}
		defer resp.Body.Close()

		var userInfo struct {
			ID            string `json:"id"`
			Email         string `json:"email"`
			VerifiedEmail bool   `json:"verified_email"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil || userInfo.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse user info"})
			return
		}
		if !userInfo.VerifiedEmail {
			c.JSON(http.StatusForbidden, gin.H{"error": "Google e-mail is not verified"})
			return
		}

		u, err := s.users.LinkGoogleUser(ctx, userInfo.ID, userInfo.Email)
		if err != nil {
			log.Println("❌ Failed to link Google user:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user"})
			return
		}
		s.respondWithTokens(c, http.StatusOK, u)
	}
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
