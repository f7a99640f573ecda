package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotReallyMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain line",
			content: "hello world",
			want:    "hello world<br>",
		},
		{
			name:    "bold and italic spans",
			content: "**bold** and *italic*",
			want:    "<b>bold</b> and <i>italic</i><br>",
		},
		{
			name:    "code span untouched by emphasis rules",
			content: "run `go test ./...` now",
			want:    "run <code>go test ./...</code> now<br>",
		},
		{
			name:    "bare url autolinked",
			content: "see https://example.com/path for more",
			want:    `see <a href="https://example.com/path">https://example.com/path</a> for more<br>`,
		},
		{
			name:    "blockquote wraps line",
			content: "> quoted line",
			want:    "<blockquote>quoted line<br></blockquote>",
		},
		{
			name:    "blockquote closes before following line",
			content: "> quoted\nplain",
			want:    "<blockquote>quoted<br></blockquote>plain<br>",
		},
		{
			name:    "code fence toggles pre",
			content: "```\ncode\n```",
			want:    "<pre>code<br></pre>",
		},
		{
			name:    "smiley replaced",
			content: "hi :-)",
			want:    "hi &#128578;<br>",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NotReallyMarkdown(tc.content))
		})
	}
}

func TestMentions(t *testing.T) {
	got := Mentions("hey @alice@example.com and @alice@example.com again, also @bob@other.org")
	require.Len(t, got, 2)
	require.Equal(t, Mention{Handle: "alice@example.com", User: "alice", Host: "example.com"}, got[0])
	require.Equal(t, "bob@other.org", got[1].Handle)
}

func TestMentionsNone(t *testing.T) {
	require.Empty(t, Mentions("no mentions here"))
}

func TestHashtags(t *testing.T) {
	got := Hashtags("loving #golang and #golang again, plus #activitypub")
	require.Equal(t, []string{"golang", "activitypub"}, got)
}
