// Package format implements the canonical not_really_markdown renderer
// (SPEC_FULL.md §C.2, resolving spec.md's Open Question #1) and AP tag
// extraction (§C.3), both grounded on original_source/format.c and
// activitypub.c's process_tags.
package format

import (
	"fmt"
	"regexp"
	"strings"
)

// inlineMarkup matches the three inline spans format.c's not_really_markdown
// recognizes, in the same order: backtick code spans (within one line, so
// ``` fence lines reach the line-based pass intact), bold/italic
// asterisk spans, and bare URLs.
var inlineMarkup = regexp.MustCompile("(`[^`\\n]+`|\\*\\*?[^*]+\\*?\\*|https?://[^\\s]+)")

// smileys is the exact table from format.c, applied last as plain string
// replacement.
var smileys = []struct{ key, value string }{
	{":-)", "&#128578;"},
	{":-D", "&#128512;"},
	{"X-D", "&#128518;"},
	{";-)", "&#128521;"},
	{"B-)", "&#128526;"},
	{":-(", "&#128542;"},
	{":-*", "&#128536;"},
	{":-/", "&#128533;"},
	{"8-o", "&#128563;"},
	{"%-)", "&#129322;"},
	{":_(", "&#128546;"},
	{":-|", "&#128528;"},
	{":facepalm:", "&#129318;"},
	{":shrug:", "&#129335;"},
}

// NotReallyMarkdown renders content per format.c: split out inline
// markup, wrap it, then do a second line-based pass for code fences
// (```), blockquotes (> prefix), and line breaks, and finally replace
// smiley tokens.
func NotReallyMarkdown(content string) string {
	var wrk strings.Builder

	segments, markup := splitInline(content)
	for i, seg := range segments {
		if markup[i] {
			wrk.WriteString(renderInline(seg))
		} else {
			wrk.WriteString(seg)
		}
	}

	lines := strings.Split(wrk.String(), "\n")

	var out strings.Builder
	inPre, inBlq := false, false

	for _, line := range lines {
		ss := strings.TrimSpace(line)

		if strings.HasPrefix(ss, "```") {
			if !inPre {
				out.WriteString("<pre>")
			} else {
				out.WriteString("</pre>")
			}
			inPre = !inPre
			continue
		}

		if strings.HasPrefix(ss, ">") {
			ss = strings.TrimSpace(strings.TrimPrefix(ss, ">"))
			if !inBlq {
				out.WriteString("<blockquote>")
				inBlq = true
			}
			out.WriteString(ss)
			out.WriteString("<br>")
			continue
		}

		if inBlq {
			out.WriteString("</blockquote>")
			inBlq = false
		}

		out.WriteString(ss)
		out.WriteString("<br>")
	}

	if inBlq {
		out.WriteString("</blockquote>")
	}
	if inPre {
		out.WriteString("</pre>")
	}

	s := strings.ReplaceAll(out.String(), "</blockquote><br>", "</blockquote>")

	for _, sm := range smileys {
		s = strings.ReplaceAll(s, sm.key, sm.value)
	}

	return s
}

// splitInline splits content on inlineMarkup, returning alternating
// non-matching/matching segments and a parallel "is this segment markup"
// slice — the Go equivalent of format.c's xs_regex_split + odd/even index
// walk.
func splitInline(content string) (segments []string, markup []bool) {
	idx := inlineMarkup.FindAllStringIndex(content, -1)
	if idx == nil {
		return []string{content}, []bool{false}
	}

	pos := 0
	for _, m := range idx {
		if m[0] > pos {
			segments = append(segments, content[pos:m[0]])
			markup = append(markup, false)
		}
		segments = append(segments, content[m[0]:m[1]])
		markup = append(markup, true)
		pos = m[1]
	}
	if pos < len(content) {
		segments = append(segments, content[pos:])
		markup = append(markup, false)
	}
	return segments, markup
}

func renderInline(v string) string {
	switch {
	case strings.HasPrefix(v, "`"):
		return fmt.Sprintf("<code>%s</code>", strings.Trim(v, "`"))
	case strings.HasPrefix(v, "**"):
		return fmt.Sprintf("<b>%s</b>", strings.Trim(v, "*"))
	case strings.HasPrefix(v, "*"):
		return fmt.Sprintf("<i>%s</i>", strings.Trim(v, "*"))
	case strings.HasPrefix(v, "http"):
		return fmt.Sprintf(`<a href="%s">%s</a>`, v, v)
	default:
		return v
	}
}
