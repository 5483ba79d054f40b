package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/middleware"
	"github.com/luxora/storefront-api/internal/service"
)

const refreshTokenCookie = "refreshToken"

type AuthHandler struct {
	authService  *service.AuthService
	secureCookie bool
}

func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setTokens(c, res)
	created(c, "User registered successfully", dto.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setTokens(c, res)
	ok(c, "Login successful", dto.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

// RefreshToken accepts the refresh token from the body or the refreshToken cookie.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshTokenCookie)
	}

	res, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}

	h.setTokens(c, res)
	ok(c, "Token refreshed successfully", dto.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		fail(c, err)
		return
	}

	h.setCookie(c, middleware.AccessTokenCookie, "", -1)
	h.setCookie(c, refreshTokenCookie, "", -1)
	ok(c, "Logout successful", nil)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.authService.Profile(c.Request.Context(), middleware.SessionFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Profile retrieved successfully", user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), middleware.SessionFrom(c).UserID, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Profile updated successfully", user)
}

func (h *AuthHandler) setTokens(c *gin.Context, res *service.AuthResult) {
	tokens := h.authService.Tokens()
	h.setCookie(c, middleware.AccessTokenCookie, res.AccessToken, tokens.AccessExpiry())
	h.setCookie(c, refreshTokenCookie, res.RefreshToken, tokens.RefreshExpiry())
}

// setCookie clears the cookie when maxAge is negative.
func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	seconds := int(maxAge.Seconds())
	if maxAge < 0 {
		seconds = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   seconds,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
