package source

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractMarkdown reduces a markdown document to the prose worth
// speaking. Code blocks and raw HTML are dropped, headings, list items
// and paragraphs are terminated so they segment as sentences, and
// links keep their label but lose the destination.
func extractMarkdown(doc string) string {
	src := []byte(doc)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	b := &speechBuf{buf: make([]byte, 0, len(doc))}
	speakNode(b, root, src)
	return b.String()
}

func speakNode(b *speechBuf, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		// not speakable
		return

	case *ast.Text:
		b.write(n.Segment.Value(src))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.writeString(" ")
		}

	case *ast.String:
		b.write(n.Value)

	case *ast.AutoLink:
		// a bare URL reads as noise
		return

	case *ast.Link:
		// label only, never the destination
		speakChildren(b, n, src)

	case *ast.Image:
		// alt text stands in for the image
		speakChildren(b, n, src)
		b.endSentence()

	case *ast.CodeSpan:
		speakChildren(b, n, src)

	case *ast.Heading:
		speakChildren(b, n, src)
		b.endSentence()

	case *ast.Paragraph:
		speakChildren(b, n, src)
		b.endSentence()

	case *ast.ListItem:
		speakChildren(b, n, src)
		b.endSentence()

	case *ast.ThematicBreak:
		b.endSentence()

	default:
		speakChildren(b, node, src)
	}
}

func speakChildren(b *speechBuf, node ast.Node, src []byte) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		speakNode(b, c, src)
	}
}

// speechBuf accumulates extracted text. endSentence closes the current
// block with a period so block boundaries survive as pauses, without
// ever doubling up punctuation.
type speechBuf struct {
	buf []byte
}

func (s *speechBuf) write(p []byte) {
	s.buf = append(s.buf, p...)
}

func (s *speechBuf) writeString(p string) {
	s.buf = append(s.buf, p...)
}

func (s *speechBuf) endSentence() {
	for len(s.buf) > 0 {
		last := s.buf[len(s.buf)-1]
		if last != ' ' && last != '\t' && last != '\n' {
			break
		}
		s.buf = s.buf[:len(s.buf)-1]
	}
	if len(s.buf) == 0 {
		return
	}
	switch s.buf[len(s.buf)-1] {
	case '.', '!', '?', ':', ';':
	default:
		s.buf = append(s.buf, '.')
	}
	s.buf = append(s.buf, ' ')
}

func (s *speechBuf) String() string {
	return string(s.buf)
}
