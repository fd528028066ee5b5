package web

import "embed"

// Templates holds the HTML page templates.
//
//go:embed templates/*.html
var Templates embed.FS
