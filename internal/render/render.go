// Package render converts entry Markdown into sanitised HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/entrylog/internal/embed"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// HighlightStyle 是代码高亮使用的 chroma 配色
const HighlightStyle = "github"

// 代码高亮只输出 class，配色由 StyleSheet 提供
var highlightClass = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// Renderer 负责 Markdown 渲染、媒体嵌入与 HTML 过滤。
type Renderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
	embeds    *embed.Resolver
}

// New creates a Renderer. A nil resolver disables media embeds.
func New(embeds *embed.Resolver) *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(highlightClass).OnElements("div", "pre", "code", "span")
	if embeds != nil {
		embed.AllowEmbeds(policy)
	}

	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.DefinitionList,
				extension.Typographer,
				highlighting.NewHighlighting(
					highlighting.WithStyle(HighlightStyle),
					highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
					highlighting.WithWrapperRenderer(wrapHighlight),
				),
			),
			// 原始 HTML 交给 bluemonday 过滤，嵌入的播放器依赖这一点
			goldmark.WithRendererOptions(html.WithUnsafe(), html.WithXHTML()),
		),
		sanitizer: policy,
		embeds:    embeds,
	}
}

// HTML renders markdown into trusted, sanitised HTML.
func (r *Renderer) HTML(markdown string) (template.HTML, error) {
	if r.embeds != nil {
		markdown = r.embeds.Apply(markdown)
	}

	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// StyleSheet returns the CSS for the classes emitted by code highlighting.
func StyleSheet() (template.CSS, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(HighlightStyle)); err != nil {
		return "", fmt.Errorf("highlight css: %w", err)
	}
	return template.CSS(buf.String()), nil
}

func wrapHighlight(w util.BufWriter, _ highlighting.CodeBlockContext, entering bool) {
	if entering {
		_, _ = w.WriteString(`<div class="highlight">`)
		return
	}
	_, _ = w.WriteString("</div>")
}
