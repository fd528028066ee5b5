package handler

import (
	"net/http"

	"github.com/entrylog/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SessionName 是会话 cookie 的名称
const SessionName = "entrylog_session"

const sessionMaxAge = 30 * 24 * 60 * 60

// Sessions builds the cookie-backed session middleware.
// Secure is only set in production so the cookie survives plain-HTTP development.
func Sessions(cfg config.AppConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(SessionName, store)
}
