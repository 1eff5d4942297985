package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxarch/internal/service"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func newTestSegmenter(t *testing.T, opts TextOptions) *TextSegmenter {
	t.Helper()
	if opts.HeadingPattern == "" {
		opts.HeadingPattern = `^(Chapter|Section|Part)\b`
	}
	if opts.Extensions == nil {
		opts.Extensions = []string{".txt", ".md"}
	}
	seg, err := NewTextSegmenter(opts)
	if err != nil {
		t.Fatalf("NewTextSegmenter() error = %v", err)
	}
	return seg
}

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestNewTextSegmenter_InvalidPattern(t *testing.T) {
	_, err := NewTextSegmenter(TextOptions{HeadingPattern: "([unclosed"})
	if err == nil {
		t.Fatal("NewTextSegmenter() expected error for invalid pattern, got nil")
	}
}

func TestTextSegmenter_UnsupportedExtension(t *testing.T) {
	seg := newTestSegmenter(t, TextOptions{ChunkSize: 10, MinChunkWords: 1})
	_, err := seg.Segment("lecture.mp4")
	if !errors.Is(err, service.ErrUnsupportedFormat) {
		t.Fatalf("Segment() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextSegmenter_MissingFile(t *testing.T) {
	seg := newTestSegmenter(t, TextOptions{ChunkSize: 10, MinChunkWords: 1})
	_, err := seg.Segment(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, service.ErrSourceRead) {
		t.Fatalf("Segment() error = %v, want ErrSourceRead", err)
	}
}

func TestTextSegmenter_PlainTextSections(t *testing.T) {
	content := "Chapter 1 The Beginning\n" + words(60, "alpha") + "\n" +
		"Chapter 2 The Middle\n" + words(60, "beta") + "\n" +
		"Chapter 3 The End\n" + words(60, "gamma") + "\n"
	path := writeTestFile(t, "book.txt", content)

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 100, Overlap: 10, MinChunkWords: 10})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("Segment() returned %d chunks, want 3", len(chunks))
	}
	wantSections := []string{"Chapter 1 The Beginning", "Chapter 2 The Middle", "Chapter 3 The End"}
	for i, chunk := range chunks {
		if chunk.Section != wantSections[i] {
			t.Errorf("chunk[%d].Section = %q, want %q", i, chunk.Section, wantSections[i])
		}
		if chunk.ChunkIndex != i {
			t.Errorf("chunk[%d].ChunkIndex = %d, want %d", i, chunk.ChunkIndex, i)
		}
		if chunk.Modality != ModalityText {
			t.Errorf("chunk[%d].Modality = %q, want %q", i, chunk.Modality, ModalityText)
		}
		if chunk.SourceFile != "book.txt" {
			t.Errorf("chunk[%d].SourceFile = %q, want book.txt", i, chunk.SourceFile)
		}
	}
}

func TestTextSegmenter_PreambleSection(t *testing.T) {
	content := words(30, "intro") + "\nChapter 1\n" + words(30, "body") + "\n"
	path := writeTestFile(t, "book.txt", content)

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 100, MinChunkWords: 1})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Segment() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Section != "Introduction" {
		t.Errorf("preamble section = %q, want Introduction", chunks[0].Section)
	}
	if chunks[1].Section != "Chapter 1" {
		t.Errorf("second section = %q, want Chapter 1", chunks[1].Section)
	}
}

func TestTextSegmenter_OverlapInvariant(t *testing.T) {
	path := writeTestFile(t, "book.txt", "Chapter 1\n"+words(25, "w"))

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 10, Overlap: 5, MinChunkWords: 1})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Segment() returned %d chunks, want at least 2", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		if len(cur) < 5 {
			continue
		}
		tail := strings.Join(cur[len(cur)-5:], " ")
		head := strings.Join(next[:min(5, len(next))], " ")
		if !strings.HasPrefix(tail, head) && tail != head {
			t.Errorf("chunk[%d] tail %q does not overlap chunk[%d] head %q", i, tail, i+1, head)
		}
	}
}

func TestTextSegmenter_MinChunkWordsDropsShortWindows(t *testing.T) {
	path := writeTestFile(t, "book.txt", "Chapter 1\n"+words(8, "w"))

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 10, MinChunkWords: 10})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("Segment() returned %d chunks, want 0 for under-length content", len(chunks))
	}
}

func TestTextSegmenter_Deduplicate(t *testing.T) {
	body := words(20, "dup")
	content := "Chapter 1\n" + body + "\nChapter 2\n" + body + "\n"
	path := writeTestFile(t, "book.txt", content)

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 100, MinChunkWords: 1, Deduplicate: true})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Segment() returned %d chunks, want 1 after dedup", len(chunks))
	}
	// First occurrence wins.
	if chunks[0].Section != "Chapter 1" {
		t.Errorf("surviving chunk section = %q, want Chapter 1", chunks[0].Section)
	}
}

func TestTextSegmenter_Deterministic(t *testing.T) {
	content := "Chapter 1\n" + words(120, "w") + "\n"
	path := writeTestFile(t, "book.txt", content)

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 50, Overlap: 10, MinChunkWords: 5})
	first, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	second, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk[%d] ID differs across runs: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestTextSegmenter_Markdown(t *testing.T) {
	content := "# Overview\n\n" + words(30, "over") + "\n\n## Details\n\n" + words(30, "det") + "\n"
	path := writeTestFile(t, "doc.md", content)

	seg := newTestSegmenter(t, TextOptions{ChunkSize: 100, MinChunkWords: 1})
	chunks, err := seg.Segment(path)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Segment() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Section != "Overview" {
		t.Errorf("chunk[0].Section = %q, want Overview", chunks[0].Section)
	}
	if chunks[1].Section != "Details" {
		t.Errorf("chunk[1].Section = %q, want Details", chunks[1].Section)
	}
}

func TestMergeShortSections(t *testing.T) {
	tests := []struct {
		name     string
		sections []section
		minWords int
		want     int
	}{
		{
			name: "short section merges into following",
			sections: []section{
				{Title: "A", Text: words(10, "a")},
				{Title: "B", Text: words(100, "b")},
			},
			minWords: 50,
			want:     1,
		},
		{
			name: "short trailing section merges backwards",
			sections: []section{
				{Title: "A", Text: words(100, "a")},
				{Title: "B", Text: words(10, "b")},
			},
			minWords: 50,
			want:     2,
		},
		{
			name: "no merging when all long enough",
			sections: []section{
				{Title: "A", Text: words(60, "a")},
				{Title: "B", Text: words(60, "b")},
			},
			minWords: 50,
			want:     2,
		},
		{
			name: "disabled when minWords is zero",
			sections: []section{
				{Title: "A", Text: words(1, "a")},
				{Title: "B", Text: words(1, "b")},
			},
			minWords: 0,
			want:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeShortSections(tt.sections, tt.minWords)
			if len(got) != tt.want {
				t.Errorf("mergeShortSections() returned %d sections, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWordWindows(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		size     int
		overlap  int
		minWords int
		want     int
	}{
		{name: "empty text", text: "", size: 10, want: 0},
		{name: "single window", text: words(8, "w"), size: 10, minWords: 1, want: 1},
		{name: "exact fit", text: words(10, "w"), size: 10, minWords: 1, want: 1},
		{name: "overlap windows", text: words(25, "w"), size: 10, overlap: 5, minWords: 1, want: 4},
		{name: "short tail dropped", text: words(27, "w"), size: 10, overlap: 5, minWords: 8, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wordWindows(tt.text, tt.size, tt.overlap, tt.minWords)
			if len(got) != tt.want {
				t.Errorf("wordWindows() returned %d windows, want %d", len(got), tt.want)
			}
		})
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("book.txt", 3, "some text")
	b := ChunkID("book.txt", 3, "some text")
	if a != b {
		t.Errorf("ChunkID() not deterministic: %q vs %q", a, b)
	}
	c := ChunkID("book.txt", 4, "some text")
	if a == c {
		t.Error("ChunkID() should differ for different indices")
	}
	if len(a) != 32 {
		t.Errorf("ChunkID() length = %d, want 32 hex chars", len(a))
	}
}
