package format

import "regexp"

// mentionRe matches "@user@host" tokens, grounded on activitypub.c's
// process_tags mention regex.
var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_.-]+)@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

// hashtagRe matches "#tag" tokens. Hashtags are preserved verbatim in the
// rendered text (spec.md §4.8); only the list of names is extracted here.
var hashtagRe = regexp.MustCompile(`#([A-Za-z0-9_]+)`)

// Mention is an extracted @user@host reference awaiting WebFinger
// resolution.
type Mention struct {
	Handle string // "user@host"
	User   string
	Host   string
}

// Mentions extracts every distinct @user@host token from raw content
// (before markdown rendering, since rendering may turn bare URLs into
// anchors that would otherwise be mistaken for mentions).
func Mentions(content string) []Mention {
	var out []Mention
	seen := map[string]bool{}
	for _, m := range mentionRe.FindAllStringSubmatch(content, -1) {
		handle := m[1] + "@" + m[2]
		if seen[handle] {
			continue
		}
		seen[handle] = true
		out = append(out, Mention{Handle: handle, User: m[1], Host: m[2]})
	}
	return out
}

// Hashtags extracts every distinct #tag token's bare name.
func Hashtags(content string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range hashtagRe.FindAllStringSubmatch(content, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}
