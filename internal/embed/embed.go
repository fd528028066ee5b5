// Package embed turns standalone media links in Markdown into player iframes.
package embed

import (
	"fmt"
	htmlstd "html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxWidth 与站点内容区宽度一致。
const DefaultMaxWidth = 800

const (
	ProviderYouTube  = "youtube"
	ProviderVimeo    = "vimeo"
	ProviderBilibili = "bilibili"
)

var (
	standaloneURLPattern = regexp.MustCompile(`^\s*<?((?:https?://)?[^\s<>]+)>?\s*$`)
	iframeSrcPattern     = regexp.MustCompile(
		`^https://(?:www\.youtube-nocookie\.com/embed/|www\.youtube\.com/embed/|player\.vimeo\.com/video/|player\.bilibili\.com/player\.html\?)`,
	)
	timestampPattern   = regexp.MustCompile(`(?i)(\d+)(h|m|s)`)
	orderedListPattern = regexp.MustCompile(`^\d+[.)]\s+`)
	vimeoIDPattern     = regexp.MustCompile(`^\d+$`)
)

// Embed describes a resolved media link.
type Embed struct {
	Provider string
	Source   string
	EmbedURL string
	Width    int
	Height   int
}

// Resolver recognises media links and renders them at no more than maxWidth pixels.
type Resolver struct {
	maxWidth int
}

// NewResolver creates a Resolver. Non-positive widths fall back to DefaultMaxWidth.
func NewResolver(maxWidth int) *Resolver {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Resolver{maxWidth: maxWidth}
}

// MaxWidth returns the iframe width used for embeds.
func (r *Resolver) MaxWidth() int {
	return r.maxWidth
}

// Apply replaces every line that consists of a single media URL with player
// HTML. Code blocks, quotes and list items are left untouched.
func (r *Resolver) Apply(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	fence := ""

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" || isIndentedCode(line) || skipLine(trimmed) {
			continue
		}

		match := standaloneURLPattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		e, ok := r.Resolve(match[1])
		if !ok {
			continue
		}
		lines[i] = r.HTML(e)
	}

	return strings.Join(lines, "\n")
}

// Resolve parses raw as a media link from a known provider.
func (r *Resolver) Resolve(raw string) (Embed, bool) {
	source := normalizeURL(strings.Trim(strings.TrimSpace(raw), "<>"))
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return Embed{}, false
	}

	var (
		provider string
		embedURL string
		ok       bool
	)
	switch host := strings.ToLower(u.Hostname()); {
	case host == "youtu.be" || isHostOrSubdomain(host, "youtube.com"):
		provider = ProviderYouTube
		embedURL, ok = youTubeURL(u, host)
	case isHostOrSubdomain(host, "vimeo.com"):
		provider = ProviderVimeo
		embedURL, ok = vimeoURL(u)
	case isHostOrSubdomain(host, "bilibili.com"):
		provider = ProviderBilibili
		embedURL, ok = bilibiliURL(u)
	}
	if !ok || embedURL == "" {
		return Embed{}, false
	}

	return Embed{
		Provider: provider,
		Source:   source,
		EmbedURL: embedURL,
		Width:    r.maxWidth,
		Height:   r.maxWidth * 9 / 16,
	}, true
}

// HTML renders the player markup for e.
func (r *Resolver) HTML(e Embed) string {
	sandbox := ""
	if e.Provider == ProviderBilibili {
		sandbox = ` sandbox="allow-scripts allow-same-origin allow-presentation"`
	}
	return fmt.Sprintf(
		`<div class="media-embed" data-embed-provider="%s" data-embed-source="%s">`+
			`<iframe src="%s" width="%d" height="%d" title="%s" loading="lazy" `+
			`allow="accelerometer; clipboard-write; encrypted-media; gyroscope; picture-in-picture; web-share" `+
			`allowfullscreen frameborder="0" referrerpolicy="strict-origin-when-cross-origin"%s></iframe></div>`,
		htmlstd.EscapeString(e.Provider),
		htmlstd.EscapeString(e.Source),
		htmlstd.EscapeString(e.EmbedURL),
		e.Width,
		e.Height,
		htmlstd.EscapeString(playerTitle(e.Provider)),
		sandbox,
	)
}

// AllowEmbeds extends policy so the markup produced by HTML survives sanitising.
func AllowEmbeds(policy *bluemonday.Policy) *bluemonday.Policy {
	policy.AllowElements("iframe")
	policy.AllowAttrs("class", "data-embed-provider", "data-embed-source").OnElements("div")
	policy.AllowAttrs("src").Matching(iframeSrcPattern).OnElements("iframe")
	policy.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("iframe")
	policy.AllowAttrs("title", "allow", "allowfullscreen", "frameborder", "loading", "referrerpolicy", "sandbox").OnElements("iframe")
	return policy
}

func youTubeURL(u *url.URL, host string) (string, bool) {
	path := strings.Trim(u.Path, "/")
	var id string
	if host == "youtu.be" {
		id = path
	} else {
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "live/"):
			id = path[strings.IndexByte(path, '/')+1:]
		}
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return "", false
	}

	values := url.Values{}
	values.Set("rel", "0")
	values.Set("playsinline", "1")
	start := u.Query().Get("start")
	if start == "" {
		start = u.Query().Get("t")
	}
	if seconds := parseTimestamp(start); seconds > 0 {
		values.Set("start", strconv.Itoa(seconds))
	}
	return "https://www.youtube-nocookie.com/embed/" + id + "?" + values.Encode(), true
}

func vimeoURL(u *url.URL) (string, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// vimeo.com/123456 与 player.vimeo.com/video/123456 两种形式
	id := segments[len(segments)-1]
	if !vimeoIDPattern.MatchString(id) {
		return "", false
	}
	return "https://player.vimeo.com/video/" + id, true
}

func bilibiliURL(u *url.URL) (string, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "video" || segments[1] == "" {
		return "", false
	}

	values := url.Values{}
	rawID := segments[1]
	lowerID := strings.ToLower(rawID)
	switch {
	case strings.HasPrefix(lowerID, "bv"):
		values.Set("bvid", rawID)
	case strings.HasPrefix(lowerID, "av") && onlyDigits(lowerID[2:]):
		values.Set("aid", lowerID[2:])
	default:
		return "", false
	}

	page := 1
	if p, err := strconv.Atoi(u.Query().Get("p")); err == nil && p > 0 {
		page = p
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("autoplay", "0")
	values.Set("danmaku", "0")
	return "https://player.bilibili.com/player.html?" + values.Encode(), true
}

// parseTimestamp accepts "90" or "1h2m3s" forms.
func parseTimestamp(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if onlyDigits(value) {
		seconds, _ := strconv.Atoi(value)
		return seconds
	}

	total := 0
	for _, m := range timestampPattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

func normalizeURL(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	for _, prefix := range []string{"youtube.com/", "www.youtube.com/", "youtu.be/", "vimeo.com/", "bilibili.com/", "www.bilibili.com/"} {
		if strings.HasPrefix(lower, prefix) {
			return "https://" + raw
		}
	}
	return raw
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	}
	return ""
}

func isIndentedCode(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}

func skipLine(line string) bool {
	if line == "" || strings.HasPrefix(line, ">") {
		return true
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}
	return orderedListPattern.MatchString(line)
}

func playerTitle(provider string) string {
	switch provider {
	case ProviderYouTube:
		return "YouTube video player"
	case ProviderVimeo:
		return "Vimeo video player"
	case ProviderBilibili:
		return "Bilibili video player"
	}
	return "Video player"
}

func onlyDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

func isHostOrSubdomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
