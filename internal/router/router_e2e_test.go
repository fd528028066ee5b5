package router

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
	"github.com/entrylog/internal/handler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const e2ePassword = "e2e-secret"

type e2eSuite struct {
	handler http.Handler
	db      *gorm.DB
	public  *localClient
	admin   *localClient
	baseURL string
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func TestE2E_EntryLifecycle(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("anonymous access", suite.testAnonymousAccess)
	suite.login(t)
	t.Run("publish, search and edit", suite.testPublishSearchEdit)
	t.Run("operational endpoints", suite.testOperationalEndpoints)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, db.WithLogLevel(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	if err := db.Migrate(context.Background(), gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	cfg := config.AppConfig{
		SessionSecret:   "e2e-session-secret",
		AdminPassword:   e2ePassword,
		SiteName:        "E2E Blog",
		SiteWidth:       800,
		EntriesPerPage:  20,
		LoginRatePerMin: 10,
	}

	api, err := handler.NewAPI(gdb, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}
	engine, err := SetupRouter(api, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to set up router: %v", err)
	}

	return &e2eSuite{
		handler: engine,
		db:      gdb,
		public:  newLocalClient(engine, false),
		admin:   newLocalClient(engine, true),
		baseURL: "http://example.test",
	}
}

func (s *e2eSuite) request(t *testing.T, client *localClient, method, path string, form url.Values) (*http.Response, string) {
	t.Helper()

	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()
	resp, _ := s.request(t, s.admin, http.MethodPost, "/login/", url.Values{"password": {e2ePassword}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
}

func (s *e2eSuite) createEntry(t *testing.T, title, content string, published bool) string {
	t.Helper()
	form := url.Values{"title": {title}, "content": {content}}
	if published {
		form.Set("published", "on")
	}
	resp, _ := s.request(t, s.admin, http.MethodPost, "/create/", form)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("create %q failed: %d", title, resp.StatusCode)
	}
	return resp.Header.Get("Location")
}

func (s *e2eSuite) testAnonymousAccess(t *testing.T) {
	resp, body := s.request(t, s.public, http.MethodGet, "/", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "No entries have been created yet.") {
		t.Fatalf("unexpected empty index: %d %s", resp.StatusCode, body)
	}

	for _, path := range []string{"/create/", "/drafts/", "/anything/edit/"} {
		resp, _ := s.request(t, s.public, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusFound || !strings.HasPrefix(resp.Header.Get("Location"), "/login/?next=") {
			t.Fatalf("%s should redirect to login, got %d %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	resp, body = s.request(t, s.public, http.MethodGet, "/nope/", nil)
	if resp.StatusCode != http.StatusNotFound || body != "<h3>Not found</h3>" {
		t.Fatalf("expected not found page, got %d %q", resp.StatusCode, body)
	}
}

func (s *e2eSuite) testPublishSearchEdit(t *testing.T) {
	older := s.createEntry(t, "Older Post", "earlier thoughts", true)
	if older != "/older-post/" {
		t.Fatalf("unexpected location %q", older)
	}
	// 时间戳需要严格递增
	time.Sleep(5 * time.Millisecond)

	if loc := s.createEntry(t, "First Post", "Hello world", true); loc != "/first-post/" {
		t.Fatalf("expected slug first-post, got %q", loc)
	}
	if loc := s.createEntry(t, "Quiet Draft", "Hello from a draft", false); loc != "/quiet-draft/edit/" {
		t.Fatalf("expected draft to redirect to edit, got %q", loc)
	}

	_, body := s.request(t, s.public, http.MethodGet, "/", nil)
	first, second := strings.Index(body, "First Post"), strings.Index(body, "Older Post")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected newest entry first on the index: %s", body)
	}
	if strings.Contains(body, "Quiet Draft") {
		t.Fatal("draft leaked onto the public index")
	}

	_, body = s.request(t, s.public, http.MethodGet, "/?q=hello", nil)
	if !strings.Contains(body, "First Post") || !strings.Contains(body, "relevance") {
		t.Fatalf("expected ranked search hit: %s", body)
	}
	if strings.Contains(body, "Quiet Draft") {
		t.Fatal("draft leaked into search results")
	}

	resp, _ := s.request(t, s.admin, http.MethodPost, "/first-post/edit/", url.Values{
		"title":     {"First Post"},
		"slug":      {"first-post"},
		"content":   {"Hello universe"},
		"published": {"on"},
	})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("edit failed: %d", resp.StatusCode)
	}

	var indexed string
	if err := s.db.Raw("SELECT content FROM entry_search_index WHERE docid = (SELECT id FROM entries WHERE slug = ?)", "first-post").
		Scan(&indexed).Error; err != nil {
		t.Fatalf("read search index: %v", err)
	}
	if !strings.Contains(indexed, "universe") {
		t.Fatalf("expected search index to follow the edit, got %q", indexed)
	}

	_, body = s.request(t, s.public, http.MethodGet, "/?q=world", nil)
	if strings.Contains(body, "First Post") {
		t.Fatalf("stale content should no longer match: %s", body)
	}

	_, body = s.request(t, s.public, http.MethodGet, "/first-post/", nil)
	if !strings.Contains(body, "Hello universe") {
		t.Fatalf("detail should show edited content: %s", body)
	}
}

func (s *e2eSuite) testOperationalEndpoints(t *testing.T) {
	resp, body := s.request(t, s.public, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("unexpected healthz response %d %s", resp.StatusCode, body)
	}

	resp, body = s.request(t, s.public, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", resp.StatusCode)
	}
	for _, name := range []string{"entrylog_entry_saves_total", "entrylog_searches_total", "entrylog_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}

	resp, _ = s.request(t, s.public, http.MethodGet, "/", nil)
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}
