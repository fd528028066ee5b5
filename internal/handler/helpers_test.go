package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/entrylog/internal/config"
	"github.com/entrylog/internal/db"
	"github.com/entrylog/web"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const testPassword = "correct horse"

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(t *testing.T, handler http.Handler) *localClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) do(req *http.Request) *http.Response {
	for _, ck := range c.jar.Cookies(req.URL) {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	c.jar.SetCookies(req.URL, resp.Cookies())
	return resp
}

func (c *localClient) get(path string) *http.Response {
	return c.do(httptest.NewRequest(http.MethodGet, "http://blog.test"+path, http.NoBody))
}

func (c *localClient) postForm(path string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "http://blog.test"+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func testConfig() config.AppConfig {
	return config.AppConfig{
		AdminPassword:   testPassword,
		SessionSecret:   "handler-test-secret",
		SiteName:        "Test Blog",
		SiteWidth:       640,
		EntriesPerPage:  2,
		LoginRatePerMin: 3,
	}
}

func setupTestAPI(t *testing.T, cfg config.AppConfig) (*API, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, db.WithLogLevel(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := db.Migrate(context.Background(), gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	api, err := NewAPI(gdb, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create api: %v", err)
	}

	tmpl, err := ParseTemplates(web.Templates)
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(RequestLogger(zap.NewNop()))
	r.Use(Sessions(cfg))
	r.NoRoute(NotFound)

	r.GET("/", api.Index)
	r.GET("/healthz", api.Healthz)
	r.GET("/login/", api.ShowLogin)
	r.POST("/login/", api.Login)
	r.GET("/logout/", api.ShowLogout)
	r.POST("/logout/", api.Logout)
	r.GET("/:slug/", api.Detail)

	auth := r.Group("/", AuthRequired())
	auth.GET("/create/", api.ShowCreate)
	auth.POST("/create/", api.Create)
	auth.GET("/drafts/", api.Drafts)
	auth.GET("/:slug/edit/", api.ShowEdit)
	auth.POST("/:slug/edit/", api.Edit)

	return api, r
}

func login(t *testing.T, client *localClient) {
	t.Helper()
	resp := client.postForm("/login/", url.Values{"password": {testPassword}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
}
