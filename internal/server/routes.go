package server

import (
	"strings"

	"github.com/nfrund/accounts/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	h := s.accountHandler
	rateLimiter := middleware.RateLimiter()
	auth := middleware.Auth(s.accounts, nil)

	s.E.GET("/health", s.healthHandler.Check)

	s.E.POST("/accounts", h.Create, rateLimiter)

	authGroup := s.E.Group("/auth")
	authGroup.POST("/login", h.Login, rateLimiter)
	authGroup.POST("/token", h.TokenLogin, rateLimiter)
	authGroup.POST("/logout", h.Logout, auth)
	authGroup.POST("/forgot-password", h.ForgotPassword, rateLimiter)
	authGroup.POST("/reset-password", h.ResetPassword, rateLimiter)

	me := s.E.Group("/accounts/me", auth)
	me.GET("", h.Me)
	me.PATCH("", h.Update)
	me.PUT("/password", h.UpdatePassword)
	me.POST("/avatar", h.UpdateAvatar)

	// Avatar URLs point at IMAGE_WEB_PATH, served straight from IMAGE_PATH.
	s.E.Static(staticPrefix(s.Cfg.GetImageWebPath()), s.Cfg.GetImagePath())
}

func staticPrefix(webPath string) string {
	prefix := strings.TrimSuffix(webPath, "/")
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
