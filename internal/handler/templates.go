package handler

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"time"
)

// TemplateFuncs are the helpers available to page templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"cleanQuery": cleanQuery,
		"formatTime": formatTime,
		"entryPath":  entryPath,
	}
}

// ParseTemplates 解析 fsys 中 templates/*.html 下的全部页面模板。
func ParseTemplates(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(TemplateFuncs()).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// cleanQuery keeps the current query string but replaces key with value,
// e.g. turning ?q=go&page=2 into ?q=go&page=3.
func cleanQuery(values url.Values, key string, value any) template.URL {
	cloned := url.Values{}
	for k, v := range values {
		if k == key {
			continue
		}
		cloned[k] = append([]string(nil), v...)
	}
	cloned.Set(key, fmt.Sprint(value))
	return template.URL(cloned.Encode())
}

func formatTime(t time.Time) string {
	return t.Format("01/02/2006 at 3:04PM")
}
