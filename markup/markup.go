// Package markup renders journal post bodies as HTML. Bodies are plain text
// with blank-line separated paragraphs and a small inline syntax: **bold**,
// *italic* and [text](url) links.
package markup

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"
)

var (
	reBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic = regexp.MustCompile(`\*([^*]+)\*`)
	reLink   = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	reBlank  = regexp.MustCompile(`\n[ \t]*\n`)
)

// Body returns a component rendering body as HTML.
func Body(body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, HTML(body))
		return err
	})
}

// HTML converts body to escaped HTML paragraphs.
func HTML(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var buf bytes.Buffer
	for _, para := range reBlank.Split(body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		buf.WriteString("<p>")
		for i, line := range strings.Split(para, "\n") {
			if i > 0 {
				buf.WriteString("<br>")
			}
			buf.WriteString(Inline(strings.TrimSpace(line)))
		}
		buf.WriteString("</p>")
	}
	return buf.String()
}

// Inline escapes s and applies inline formatting.
func Inline(s string) string {
	escaped := html.EscapeString(s)
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `" rel="noopener">` + match[1] + `</a>`
	})
	return applyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		return reItalic.ReplaceAllString(seg, "<em>$1</em>")
	})
}

// applyOutsideTags applies fn to the text between HTML tags only, so that
// emphasis markers inside href values are left alone.
func applyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// SafeURL returns raw escaped for an attribute, or "" when its scheme is not
// allowed. Relative paths and fragments are allowed.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	u, err := url.Parse(val)
	if err != nil || u.Scheme == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return html.EscapeString(val)
	}
	return ""
}

// Plain strips inline markup, leaving the text a reader would see.
func Plain(body string) string {
	s := reLink.ReplaceAllString(body, "$1")
	s = reBold.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt returns at most n runes of the plain text of body, cut at a word
// boundary and suffixed with an ellipsis when shortened.
func Excerpt(body string, n int) string {
	s := Plain(body)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
