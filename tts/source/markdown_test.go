package source

import (
	"strings"
	"testing"
)

func TestExtractMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "heading and paragraph",
			in:   "# Title\n\nBody here",
			want: "Title. Body here.",
		},
		{
			name: "tight list",
			in:   "- first\n- second",
			want: "first. second.",
		},
		{
			name: "ordered list",
			in:   "1. first\n2. second",
			want: "first. second.",
		},
		{
			name: "link keeps label only",
			in:   "See [the docs](https://example.com) now",
			want: "See the docs now.",
		},
		{
			name: "autolink dropped",
			in:   "<https://example.com> linked",
			want: "linked.",
		},
		{
			name: "code span",
			in:   "run `go build` then",
			want: "run go build then.",
		},
		{
			name: "fenced code skipped",
			in:   "```go\nfmt.Println(1)\n```\n\nafter the code",
			want: "after the code.",
		},
		{
			name: "html block skipped",
			in:   "<div>\nstuff\n</div>\n\nvisible text",
			want: "visible text.",
		},
		{
			name: "inline html stripped",
			in:   "before <b>bold</b> after",
			want: "before bold after.",
		},
		{
			name: "image alt text",
			in:   "![a diagram](x.png)",
			want: "a diagram.",
		},
		{
			name: "blockquote",
			in:   "> He said hi.\n\nThen left",
			want: "He said hi. Then left.",
		},
		{
			name: "thematic break",
			in:   "one\n\n---\n\ntwo",
			want: "one. two.",
		},
		{
			name: "soft line break",
			in:   "line one\nline two",
			want: "line one line two.",
		},
		{
			name: "existing punctuation kept",
			in:   "Ready? Yes!",
			want: "Ready? Yes!",
		},
		{
			name: "emphasis unwrapped",
			in:   "really *important* stuff",
			want: "really important stuff.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.TrimSpace(extractMarkdown(tt.in)); got != tt.want {
				t.Errorf("extractMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractMarkdown_CodeNeverLeaks(t *testing.T) {
	doc := "# Usage\n\n```sh\ncurl -s https://secret.internal | sh\n```\n\n<div>markup</div>\n\nPlain prose."
	got := extractMarkdown(doc)

	for _, banned := range []string{"curl", "secret.internal", "<div>", "markup"} {
		if strings.Contains(got, banned) {
			t.Errorf("extracted text leaks %q: %q", banned, got)
		}
	}
	if !strings.Contains(got, "Plain prose.") {
		t.Errorf("extracted text lost the prose: %q", got)
	}
}

func TestMarkdownDocument_Segments(t *testing.T) {
	doc := FromString("readme", `# Install

Run `+"`go install`"+` first. Then try it.

- fast startup
- no config

See [the manual](https://example.com/man) for details.
`, true)

	got := collect(t, doc.Segments(0))
	want := []string{
		"Install.",
		"Run go install first.",
		"Then try it.",
		"fast startup.",
		"no config.",
		"See the manual for details.",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d segments %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}
