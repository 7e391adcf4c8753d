// Package source turns files, directories and stdin into lazy streams
// of speakable text segments. Documents are read eagerly but segmented
// on demand, so the producer only ever pays for the sentences it
// actually synthesizes.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/muesli/gitcha"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// Segment sizing. Fragments shorter than minSegmentRunes are noise and
// are skipped. Segments longer than maxSegmentRunes are cut at the last
// word boundary so one run-on block cannot stall synthesis.
const (
	minSegmentRunes = 3
	maxSegmentRunes = 500
)

var (
	// readmeNames are tried in order when resolving a directory.
	readmeNames = []string{"README.md", "README", "Readme.md", "Readme", "readme.md", "readme"}

	markdownGlobs = []string{"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown"}

	markdownExts = map[string]bool{
		".md": true, ".mdown": true, ".mkdn": true, ".mkd": true, ".markdown": true,
	}

	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n\s*`)

	urlSchemes = []string{"https", "http", "ftp", "file"}
)

// ErrNoDocument reports a directory with nothing readable in it.
var ErrNoDocument = errors.New("no markdown or README found")

// Document is a fully read text input. Name identifies it in logs and
// the status line, Path is set when it came from a file, and Markdown
// selects goldmark extraction before segmentation.
type Document struct {
	Name     string
	Path     string
	Markdown bool

	raw string
}

// Resolve turns a command line argument into a Document. "-" reads
// stdin, a directory is searched for its README or first markdown
// file, anything else is opened as a file.
func Resolve(arg string) (*Document, error) {
	if arg == "-" {
		return FromReader("stdin", os.Stdin, false)
	}

	st, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to read source: %w", err)
	}
	if st.IsDir() {
		return fromDir(arg)
	}
	return fromFile(arg)
}

// FromReader reads all of r into a Document.
func FromReader(name string, r io.Reader, markdown bool) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", name, err)
	}
	return &Document{Name: name, Markdown: markdown, raw: string(data)}, nil
}

// FromString wraps an in-memory string as a Document.
func FromString(name, text string, markdown bool) *Document {
	return &Document{Name: name, Markdown: markdown, raw: text}
}

func fromFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc, err := FromReader(abs, f, markdownExts[strings.ToLower(filepath.Ext(path))])
	if err != nil {
		return nil, err
	}
	doc.Path = abs
	return doc, nil
}

// fromDir picks the document to read out of a directory tree. A README
// at any depth wins, otherwise the first markdown file the walk finds.
func fromDir(dir string) (*Document, error) {
	patterns := append([]string{}, markdownGlobs...)
	patterns = append(patterns, "README", "Readme", "readme")

	ch, err := gitcha.FindAllFilesExcept(dir, patterns, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", dir, err)
	}

	var readme, first string
	for res := range ch {
		if first == "" {
			first = res.Path
		}
		if readme == "" && isReadme(filepath.Base(res.Path)) {
			readme = res.Path
		}
	}

	pick := readme
	if pick == "" {
		pick = first
	}
	if pick == "" {
		return nil, fmt.Errorf("%w in %s", ErrNoDocument, dir)
	}
	return fromFile(pick)
}

func isReadme(base string) bool {
	for _, name := range readmeNames {
		if strings.EqualFold(base, name) {
			return true
		}
	}
	return false
}

// Raw returns the document text as read, before any extraction.
func (d *Document) Raw() string {
	return d.raw
}

// Lines splits the raw document for numbered previews. The numbering
// shown to the user is one based, so line N is Lines()[N-1].
func (d *Document) Lines() []string {
	return strings.Split(strings.ReplaceAll(d.raw, "\r\n", "\n"), "\n")
}

// Segments returns a lazy SegmentSource over the document. startLine
// is one based and matches the numbers shown by the preview:
// segmentation begins at that line of the raw document. Values below 2
// read the whole document.
func (d *Document) Segments(startLine int) tts.SegmentSource {
	raw := d.raw
	if startLine > 1 {
		lines := d.Lines()
		if startLine > len(lines) {
			raw = ""
		} else {
			raw = strings.Join(lines[startLine-1:], "\n")
		}
	}

	text := raw
	if d.Markdown {
		text = extractMarkdown(raw)
	}
	return newSegmenter(cleanText(text))
}

// cleanText flattens text to a single line. Paragraph breaks keep
// their weight by becoming sentence terminators, so the segmenter
// still pauses between paragraphs.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paras []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		paras = append(paras, terminate(para))
	}
	return strings.Join(paras, " ")
}

func terminate(para string) string {
	switch para[len(para)-1] {
	case '.', '!', '?', ':', ';':
		return para
	}
	return para + "."
}

// segmenter cuts cleaned text at sentence boundaries. It implements
// tts.SegmentSource; scanning state only advances on Next, so the tail
// of an unread document costs nothing.
type segmenter struct {
	mu    sync.Mutex
	runes []rune
	pos   int
	index int
}

func newSegmenter(text string) *segmenter {
	return &segmenter{runes: []rune(text)}
}

// Next returns the next sentence, or io.EOF once the text is spent.
func (s *segmenter) Next() (tts.TextSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		for s.pos < len(s.runes) && unicode.IsSpace(s.runes[s.pos]) {
			s.pos++
		}
		if s.pos >= len(s.runes) {
			return tts.TextSegment{}, io.EOF
		}

		start := s.pos
		end := s.scan(start)
		s.pos = end

		text := strings.TrimSpace(string(s.runes[start:end]))
		if len([]rune(text)) < minSegmentRunes {
			continue
		}

		seg := tts.TextSegment{Index: s.index, Text: text}
		s.index++
		return seg, nil
	}
}

// scan finds the exclusive end of the sentence starting at start. When
// no boundary shows up within maxSegmentRunes the cut falls back to
// the last whitespace, keeping words whole.
func (s *segmenter) scan(start int) int {
	lastSpace := -1
	for i := start; i < len(s.runes); i++ {
		if i-start >= maxSegmentRunes {
			if lastSpace > start {
				return lastSpace
			}
			// a single oversized token, cut it anyway
			return i
		}
		if unicode.IsSpace(s.runes[i]) {
			lastSpace = i
		}
		if s.boundary(i) {
			return i + 1
		}
	}
	return len(s.runes)
}

// boundary reports whether the rune at i ends a sentence. Every
// boundary requires whitespace or end of text right after the
// punctuation, which is what keeps splits off the middle of words,
// URLs and file names.
func (s *segmenter) boundary(i int) bool {
	switch s.runes[i] {
	case '!', '?':
		return s.spaceFollows(i)

	case ':':
		if s.schemeBefore(i) || s.digitsAround(i) {
			return false
		}
		return s.spaceFollows(i)

	case '.':
		if s.ellipsisAt(i) || s.digitsAround(i) {
			return false
		}
		word := strings.ToLower(s.wordBefore(i))
		if titleAbbreviations[word] {
			return false
		}
		if abbreviations[word] {
			// an abbreviation only ends the sentence when prose
			// visibly starts over
			return s.upperFollows(i)
		}
		return s.spaceFollows(i)
	}
	return false
}

func (s *segmenter) spaceFollows(i int) bool {
	return i+1 >= len(s.runes) || unicode.IsSpace(s.runes[i+1])
}

func (s *segmenter) upperFollows(i int) bool {
	j := i + 1
	for j < len(s.runes) && unicode.IsSpace(s.runes[j]) {
		j++
	}
	if j >= len(s.runes) {
		return true
	}
	return j > i+1 && unicode.IsUpper(s.runes[j])
}

func (s *segmenter) ellipsisAt(i int) bool {
	if i > 0 && s.runes[i-1] == '.' {
		return true
	}
	return i+1 < len(s.runes) && s.runes[i+1] == '.'
}

func (s *segmenter) digitsAround(i int) bool {
	return i > 0 && i+1 < len(s.runes) &&
		unicode.IsDigit(s.runes[i-1]) && unicode.IsDigit(s.runes[i+1])
}

func (s *segmenter) schemeBefore(i int) bool {
	for _, scheme := range urlSchemes {
		n := len(scheme)
		if i >= n && strings.EqualFold(string(s.runes[i-n:i]), scheme) {
			return true
		}
	}
	return false
}

// wordBefore returns the run of non-space runes ending at i.
func (s *segmenter) wordBefore(i int) string {
	start := i
	for start > 0 && !unicode.IsSpace(s.runes[start-1]) {
		start--
	}
	if start == i {
		return ""
	}
	return string(s.runes[start:i])
}

// abbreviations are words whose trailing period usually does not end
// the sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
	"etc": true, "vs": true, "cf": true, "e.g": true, "i.e": true,
	"inc": true, "ltd": true, "co": true, "corp": true,
	"approx": true, "dept": true, "est": true, "fig": true, "no": true,
	"u.s": true, "u.k": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
}

// titleAbbreviations never end a sentence: they are honorifics that
// precede a capitalized name.
var titleAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"st": true,
}
