package service

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// 连续的非单词字符（字母、组合符号、数字、下划线以外）折叠为一个连字符
var nonWordRun = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_]+`)

// Slugify derives the URL slug for a title: NFC-normalized, lower-cased,
// runs of non-word characters replaced by "-", leading/trailing "-" trimmed.
// The result may be empty for titles without any letters or digits.
func Slugify(title string) string {
	// cases.Caser 有内部状态，不能跨 goroutine 共享
	lowered := cases.Lower(language.Und).String(norm.NFC.String(title))
	return strings.Trim(nonWordRun.ReplaceAllString(lowered, "-"), "-")
}

// 这些 slug 与站点的固定路由冲突，条目详情页将无法访问
var reservedSlugs = map[string]struct{}{
	"create":  {},
	"drafts":  {},
	"login":   {},
	"logout":  {},
	"metrics": {},
	"healthz": {},
}

// IsReservedSlug reports whether slug is taken by one of the site's own pages.
func IsReservedSlug(slug string) bool {
	_, ok := reservedSlugs[slug]
	return ok
}
