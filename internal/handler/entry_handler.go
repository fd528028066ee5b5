package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/service"
	"github.com/gin-gonic/gin"
)

// Index 展示已发布条目；带 q 参数时执行全文搜索。
func (a *API) Index(c *gin.Context) {
	ctx := c.Request.Context()
	query := c.Query("q")

	q := service.Latest(a.queries.Public(ctx))
	if query != "" {
		q = a.queries.Search(ctx, query)
	}

	data := gin.H{"title": "Blog entries", "query": query, "search": query != ""}
	page, err := a.queries.Paginate(ctx, q, parsePage(c), a.perPage)
	if err != nil {
		if !errors.Is(err, service.ErrMalformedSearch) {
			a.serverError(c, err)
			return
		}
		data["searchError"] = "That search could not be understood. Try simpler words."
		page = &service.EntryPage{Entries: []db.Entry{}, Page: 1, PerPage: a.perPage, TotalPages: 1}
	}
	data["page"] = page

	a.renderHTML(c, http.StatusOK, "index.html", data)
}

// Drafts 列出未发布的条目（需要登录）。
func (a *API) Drafts(c *gin.Context) {
	ctx := c.Request.Context()
	page, err := a.queries.Paginate(ctx, service.Latest(a.queries.Drafts(ctx)), parsePage(c), a.perPage)
	if err != nil {
		a.serverError(c, err)
		return
	}

	a.renderHTML(c, http.StatusOK, "index.html", gin.H{
		"title":  "Drafts",
		"drafts": true,
		"page":   page,
	})
}

// Detail renders a single entry. Drafts are only visible to the logged-in author.
func (a *API) Detail(c *gin.Context) {
	entry, err := a.queries.GetBySlug(c.Request.Context(), c.Param("slug"), isLoggedIn(c))
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			NotFound(c)
			return
		}
		a.serverError(c, err)
		return
	}

	body, err := a.renderer.HTML(entry.Content)
	if err != nil {
		a.serverError(c, err)
		return
	}

	a.renderHTML(c, http.StatusOK, "detail.html", gin.H{
		"title": entry.Title,
		"entry": entry,
		"body":  body,
	})
}

// ShowCreate 渲染新建表单
func (a *API) ShowCreate(c *gin.Context) {
	a.renderForm(c, http.StatusOK, "create.html", service.NewEntry())
}

// Create handles the new-entry form.
func (a *API) Create(c *gin.Context) {
	a.save(c, service.NewEntry(), "create.html")
}

// ShowEdit 渲染编辑表单
func (a *API) ShowEdit(c *gin.Context) {
	entry, ok := a.loadForEdit(c)
	if !ok {
		return
	}
	a.renderForm(c, http.StatusOK, "edit.html", entry)
}

// Edit handles the edit form of an existing entry.
func (a *API) Edit(c *gin.Context) {
	entry, ok := a.loadForEdit(c)
	if !ok {
		return
	}
	a.save(c, entry, "edit.html")
}

func (a *API) loadForEdit(c *gin.Context) (*db.Entry, bool) {
	entry, err := a.queries.GetBySlug(c.Request.Context(), c.Param("slug"), true)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			NotFound(c)
			return nil, false
		}
		a.serverError(c, err)
		return nil, false
	}
	return entry, true
}

func (a *API) save(c *gin.Context, entry *db.Entry, template string) {
	outcome, err := a.entries.Save(c.Request.Context(), entry, parseEntryForm(c))
	if err != nil {
		switch outcome {
		case service.OutcomeRejected, service.OutcomeDuplicateSlug:
			addFlash(c, flashDanger, err.Error())
			a.renderForm(c, http.StatusOK, template, entry)
		default:
			a.serverError(c, err)
		}
		return
	}

	addFlash(c, flashSuccess, "Entry saved successfully.")
	if entry.Published {
		c.Redirect(http.StatusFound, entryPath(entry.Slug))
		return
	}
	c.Redirect(http.StatusFound, entryPath(entry.Slug)+"edit/")
}

func (a *API) renderForm(c *gin.Context, status int, template string, entry *db.Entry) {
	title, submit := "Create entry", "Create"
	if !entry.IsNew() {
		title, submit = "Edit "+entry.Title, "Save"
	}
	a.renderHTML(c, status, template, gin.H{
		"title":       title,
		"entry":       entry,
		"submitLabel": submit,
	})
}

func parseEntryForm(c *gin.Context) service.EntryForm {
	form := service.EntryForm{
		Title:     strings.TrimSpace(c.PostForm("title")),
		Content:   c.PostForm("content"),
		Published: parsePublished(c.PostForm("published")),
	}
	if strings.TrimSpace(form.Content) == "" {
		form.Content = ""
	}
	if slug, ok := c.GetPostForm("slug"); ok {
		form.Slug = &slug
	}
	return form
}

// parsePublished 只接受明确的布尔值写法，"false" 等其他字符串一律视为草稿。
func parsePublished(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func parsePage(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func entryPath(slug string) string {
	return "/" + url.PathEscape(slug) + "/"
}
