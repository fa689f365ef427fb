// Package htmlsanitize strips markup from user-supplied text that ends up in
// stored messages.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// PlainText removes every tag (and the content of script/style elements)
// and returns unescaped plain text. Renderers are expected to escape it again.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	out := policy().Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(out))
}
