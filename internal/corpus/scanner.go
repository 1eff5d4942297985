package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxarch/internal/contextutil"
)

// ScannedFile represents a corpus file found during scanning.
type ScannedFile struct {
	Filename string // Base filename (e.g., "lecture01.wav")
	AbsPath  string // Absolute file path
	Modality string // "text" or "audio"
}

// Scanner discovers corpus files in the configured text and audio directories.
// Scanning is shallow: subdirectories and hidden files are ignored. Every
// other regular file is returned; the segmenters decide whether a file's
// format is supported, so unsupported files surface in the build report
// instead of vanishing at scan time.
type Scanner struct {
	textDir  string
	audioDir string
}

// NewScanner creates a Scanner over the corpus directories.
func NewScanner(textDir, audioDir string) *Scanner {
	return &Scanner{
		textDir:  textDir,
		audioDir: audioDir,
	}
}

// ScanAll scans both corpus directories and returns text files followed by
// audio files, each group sorted by filename. A missing directory is not an
// error; it contributes no files.
func (s *Scanner) ScanAll(ctx context.Context) ([]ScannedFile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	textFiles, err := s.scanDir(ctx, s.textDir, "text")
	if err != nil {
		return nil, err
	}
	audioFiles, err := s.scanDir(ctx, s.audioDir, "audio")
	if err != nil {
		return nil, err
	}

	files := append(textFiles, audioFiles...)
	logger.DebugContext(ctx, "corpus scan completed",
		"text_files", len(textFiles), "audio_files", len(audioFiles))
	return files, nil
}

func (s *Scanner) scanDir(ctx context.Context, dir, modality string) ([]ScannedFile, error) {
	if dir == "" {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	var files []ScannedFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		absPath, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path for %s: %w", entry.Name(), err)
		}
		files = append(files, ScannedFile{
			Filename: entry.Name(),
			AbsPath:  absPath,
			Modality: modality,
		})
	}
	return files, nil
}
