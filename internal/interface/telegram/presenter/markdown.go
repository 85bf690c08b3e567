// Package presenter formats data for Telegram display.
// Presenters turn query results and command outcomes into MarkdownV2 text
// and inline keyboards. They never talk to storage or to the Bot API.
package presenter

import (
	"strconv"
	"strings"
)

// ParseMode is the Telegram parse mode used by every presenter.
const ParseMode = "MarkdownV2"

// markdownSpecial lists characters that must be escaped in MarkdownV2 text.
const markdownSpecial = "_*[]()~`>#+-=|{}.!\\"

// Escape escapes s for MarkdownV2 outside of code spans.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeCode escapes s for use inside `code` and ```pre``` blocks.
func EscapeCode(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "`", "\\`")
	return r.Replace(s)
}

// Bold wraps escaped text in bold markers.
func Bold(s string) string {
	return "*" + Escape(s) + "*"
}

// Code wraps text in a monospace span.
func Code(s string) string {
	return "`" + EscapeCode(s) + "`"
}

// Pre wraps text in a monospace block.
func Pre(s string) string {
	return "```\n" + EscapeCode(s) + "\n```"
}

// FormatAvg renders an average with three decimals.
func FormatAvg(avg float64) string {
	return strconv.FormatFloat(avg, 'f', 3, 64)
}
