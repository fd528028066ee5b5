package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/entrylog/internal/logger"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	sessionLoggedInKey = "logged_in"
	loginPath          = "/login/"
	maxTrackedClients  = 10000
)

// Authenticator checks the shared admin secret and throttles failed logins per client.
type Authenticator struct {
	hash      []byte
	perMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewAuthenticator accepts either a plain password or a bcrypt hash; the hash wins when both are set.
func NewAuthenticator(password, passwordHash string, perMinute int) (*Authenticator, error) {
	if perMinute <= 0 {
		perMinute = 10
	}

	var hash []byte
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, errors.New("ADMIN_PASSWORD_HASH is not a bcrypt hash")
		}
		hash = []byte(passwordHash)
	case password != "":
		generated, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = generated
	default:
		return nil, errors.New("admin password is not configured")
	}

	return &Authenticator{
		hash:      hash,
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

// Check reports whether password matches the admin secret.
func (a *Authenticator) Check(password string) bool {
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

// Throttled reports whether client has used up its failed-attempt budget.
func (a *Authenticator) Throttled(client string) bool {
	return a.limiter(client).Tokens() < 1
}

// RecordFailure spends one attempt from client's budget.
func (a *Authenticator) RecordFailure(client string) {
	a.limiter(client).Allow()
}

func (a *Authenticator) limiter(client string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lim, ok := a.limiters[client]; ok {
		return lim
	}
	if len(a.limiters) >= maxTrackedClients {
		// 简单丢弃全部记录，防止内存无限增长
		a.limiters = make(map[string]*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(a.perMinute)), a.perMinute)
	a.limiters[client] = lim
	return lim
}

func isLoggedIn(c *gin.Context) bool {
	if loggedIn, ok := c.Get(sessionLoggedInKey); ok {
		return loggedIn.(bool)
	}
	value, _ := sessions.Default(c).Get(sessionLoggedInKey).(bool)
	c.Set(sessionLoggedInKey, value)
	return value
}

// AuthRequired redirects anonymous visitors to the login page, remembering where they were going.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoggedIn(c) {
			c.Redirect(http.StatusFound, loginPath+"?next="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ShowLogin 渲染登录页面
func (a *API) ShowLogin(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "login.html", gin.H{
		"title": "Log in",
		"next":  safeNext(c.Query("next")),
	})
}

// Login 校验共享密码并写入会话
func (a *API) Login(c *gin.Context) {
	next := c.Query("next")
	if next == "" {
		next = c.PostForm("next")
	}
	next = safeNext(next)
	password := c.PostForm("password")
	client := c.ClientIP()
	log := logger.FromContext(c.Request.Context())

	if password == "" {
		a.ShowLogin(c)
		return
	}

	if a.auth.Throttled(client) {
		log.Warn("login throttled", zap.String("client", client))
		a.renderHTML(c, http.StatusTooManyRequests, "login.html", gin.H{
			"title": "Log in",
			"next":  next,
			"error": "Too many login attempts. Try again later.",
		})
		return
	}

	if !a.auth.Check(password) {
		a.auth.RecordFailure(client)
		log.Info("login failed", zap.String("client", client))
		addFlash(c, flashDanger, "Incorrect password.")
		a.renderHTML(c, http.StatusOK, "login.html", gin.H{
			"title": "Log in",
			"next":  next,
		})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionLoggedInKey, true)
	session.AddFlash("You are now logged in.", flashSuccess)
	if err := session.Save(); err != nil {
		a.serverError(c, err)
		return
	}

	log.Info("admin logged in", zap.String("client", client))
	if next == "" {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

// ShowLogout 渲染登出确认页
func (a *API) ShowLogout(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "logout.html", gin.H{"title": "Log out"})
}

// Logout 清空会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		a.serverError(c, err)
		return
	}
	c.Redirect(http.StatusFound, loginPath)
}

// safeNext only allows local absolute paths so login cannot redirect off-site.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}
