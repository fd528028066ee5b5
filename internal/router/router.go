package router

import (
	"github.com/entrylog/internal/config"
	"github.com/entrylog/internal/handler"
	"github.com/entrylog/internal/metrics"
	"github.com/entrylog/web"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig, logger *zap.Logger) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestLogger(logger))
	r.Use(metrics.Middleware())

	// 配置会话中间件
	r.Use(handler.Sessions(cfg))

	tmpl, err := handler.ParseTemplates(web.Templates)
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	r.NoRoute(handler.NotFound)

	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", api.Healthz)

	r.GET("/", api.Index)
	r.GET("/login/", api.ShowLogin)
	r.POST("/login/", api.Login)
	r.GET("/logout/", api.ShowLogout)
	r.POST("/logout/", api.Logout)
	r.GET("/:slug/", api.Detail)

	// 需要登录的路由
	auth := r.Group("/")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/create/", api.ShowCreate)
		auth.POST("/create/", api.Create)
		auth.GET("/drafts/", api.Drafts)
		auth.GET("/:slug/edit/", api.ShowEdit)
		auth.POST("/:slug/edit/", api.Edit)
	}

	return r, nil
}
