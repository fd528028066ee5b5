package handler

import (
	"html/template"
	"net/http"

	"github.com/entrylog/internal/config"
	"github.com/entrylog/internal/embed"
	"github.com/entrylog/internal/logger"
	"github.com/entrylog/internal/render"
	"github.com/entrylog/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	flashSuccess = "success"
	flashDanger  = "danger"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	entries  *service.EntryService
	queries  *service.QueryService
	renderer *render.Renderer
	css      template.CSS
	auth     *Authenticator
	logger   *zap.Logger
	siteName string
	perPage  int
}

type flashMessage struct {
	Category string
	Message  string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, cfg config.AppConfig, l *zap.Logger) (*API, error) {
	if l == nil {
		l = zap.NewNop()
	}

	auth, err := NewAuthenticator(cfg.AdminPassword, cfg.AdminPasswordHash, cfg.LoginRatePerMin)
	if err != nil {
		return nil, err
	}

	css, err := render.StyleSheet()
	if err != nil {
		return nil, err
	}

	perPage := cfg.EntriesPerPage
	if perPage <= 0 {
		perPage = service.DefaultPerPage
	}

	return &API{
		db:       gdb,
		entries:  service.NewEntryService(gdb, l),
		queries:  service.NewQueryService(gdb),
		renderer: render.New(embed.NewResolver(cfg.SiteWidth)),
		css:      css,
		auth:     auth,
		logger:   l,
		siteName: cfg.SiteName,
		perPage:  perPage,
	}, nil
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}

	if _, exists := payload["siteName"]; !exists {
		payload["siteName"] = a.siteName
	}
	if _, exists := payload["query"]; !exists {
		payload["query"] = ""
	}
	payload["highlightCSS"] = a.css
	payload["loggedIn"] = isLoggedIn(c)
	payload["flashes"] = consumeFlashes(c)
	payload["requestQuery"] = c.Request.URL.Query()

	c.HTML(status, template, payload)
}

func (a *API) serverError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	_ = c.Error(err)
	c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte("<h3>Internal server error</h3>"))
	c.Abort()
}

// NotFound 渲染统一的 404 页面。
func NotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h3>Not found</h3>"))
	c.Abort()
}

func addFlash(c *gin.Context, category, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, category)
	_ = session.Save()
}

func consumeFlashes(c *gin.Context) []flashMessage {
	session := sessions.Default(c)
	var messages []flashMessage
	for _, category := range []string{flashSuccess, flashDanger} {
		for _, raw := range session.Flashes(category) {
			if text, ok := raw.(string); ok {
				messages = append(messages, flashMessage{Category: category, Message: text})
			}
		}
	}
	if len(messages) > 0 {
		_ = session.Save()
	}
	return messages
}
