package segment

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"voxarch/internal/service"
)

// preambleSection labels content appearing before the first detected heading.
const preambleSection = "Introduction"

// TextOptions configures the text segmenter.
type TextOptions struct {
	// ChunkSize is the word-window size per chunk.
	ChunkSize int
	// Overlap is the number of trailing words carried into the next chunk.
	Overlap int
	// MinSectionWords is the threshold below which a section merges into its
	// following section rather than being emitted alone.
	MinSectionWords int
	// MinChunkWords drops windows shorter than this many words.
	MinChunkWords int
	// HeadingPattern matches section headings in plain text, case-insensitive.
	HeadingPattern string
	// Extensions lists supported file extensions (lowercase, with dot).
	Extensions []string
	// Deduplicate drops chunks whose normalized text already appeared in the
	// same source.
	Deduplicate bool
}

// TextSegmenter splits book sources into ordered, overlapping word-window
// chunks with section provenance. Plain text is sectioned by a heading
// pattern; markdown is sectioned by its heading structure.
type TextSegmenter struct {
	opts      TextOptions
	headingRe *regexp.Regexp
	exts      map[string]struct{}
}

// NewTextSegmenter creates a text segmenter, compiling the heading pattern.
func NewTextSegmenter(opts TextOptions) (*TextSegmenter, error) {
	re, err := regexp.Compile("(?i)" + opts.HeadingPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid section heading pattern: %w", err)
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[e] = struct{}{}
	}
	return &TextSegmenter{opts: opts, headingRe: re, exts: exts}, nil
}

// section is an intermediate unit between source parsing and chunking.
type section struct {
	Title string
	Text  string
}

// Segment splits one source file into an ordered chunk sequence.
// Identical input and options always produce the identical sequence.
func (s *TextSegmenter) Segment(path string) ([]Chunk, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := s.exts[ext]; !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrUnsupportedFormat, ext)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrSourceRead, err)
	}

	var sections []section
	switch ext {
	case ".md":
		sections = sectionsFromMarkdown(content)
	default:
		sections = s.sectionsFromPlainText(string(content))
	}
	sections = mergeShortSections(sections, s.opts.MinSectionWords)

	filename := filepath.Base(path)
	var chunks []Chunk
	seen := make(map[string]struct{})
	index := 0
	for _, sec := range sections {
		for _, window := range wordWindows(sec.Text, s.opts.ChunkSize, s.opts.Overlap, s.opts.MinChunkWords) {
			text := normalizeWhitespace(window)
			if text == "" {
				continue
			}
			if s.opts.Deduplicate {
				key := strings.ToLower(text)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			chunks = append(chunks, NewTextChunk(filename, index, sec.Title, text))
			index++
		}
	}
	return chunks, nil
}

// sectionsFromPlainText splits text on lines matching the heading pattern.
// Content before the first heading lands in a preamble section.
func (s *TextSegmenter) sectionsFromPlainText(text string) []section {
	var sections []section
	var buffer []string
	current := preambleSection

	flush := func() {
		body := strings.TrimSpace(strings.Join(buffer, "\n"))
		if body != "" {
			sections = append(sections, section{Title: current, Text: body})
		}
		buffer = buffer[:0]
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && s.headingRe.MatchString(trimmed) {
			flush()
			current = trimmed
			continue
		}
		buffer = append(buffer, line)
	}
	flush()
	return sections
}

// mergeShortSections folds sections shorter than minWords into the following
// section. A short trailing section merges backwards instead.
func mergeShortSections(sections []section, minWords int) []section {
	if minWords <= 0 || len(sections) < 2 {
		return sections
	}
	var merged []section
	var carry string
	for i, sec := range sections {
		text := sec.Text
		if carry != "" {
			text = carry + "\n" + text
			carry = ""
		}
		if len(strings.Fields(text)) < minWords && i < len(sections)-1 {
			carry = text
			continue
		}
		merged = append(merged, section{Title: sec.Title, Text: text})
	}
	if carry != "" {
		if len(merged) > 0 {
			merged[len(merged)-1].Text += "\n" + carry
		} else {
			merged = append(merged, section{Title: sections[len(sections)-1].Title, Text: carry})
		}
	}
	return merged
}

// wordWindows cuts text into overlapping windows of size words, advancing by
// size-overlap each step. Windows below minWords are dropped.
func wordWindows(text string, size, overlap, minWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}
	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		if end-i >= minWords {
			windows = append(windows, strings.Join(words[i:end], " "))
		}
		if end == len(words) {
			break
		}
	}
	return windows
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeWhitespace collapses runs of whitespace to single spaces.
func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
