package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractedDocument is pre-extracted text read from disk, the same shape the
// HTTP ingest endpoint receives from the extraction service.
type ExtractedDocument struct {
	Filename       string
	Text           string
	PageBoundaries []int
	TotalPages     int
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads a .txt file of extracted text. Form feeds mark page breaks
// (the convention of pdftotext-style extractors); they are converted into
// word-offset page boundaries for the chunker.
func (p *Parser) ParseFile(path string) (*ExtractedDocument, error) {
	path = strings.TrimSpace(path)

	ext := filepath.Ext(path)
	if ext != ".txt" {
		return nil, fmt.Errorf("unsupported file type %s (expected .txt)", ext)
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if len(bytes) == 0 {
		return nil, fmt.Errorf("file %s is empty", path)
	}

	pages := strings.Split(string(bytes), "\f")

	var boundaries []int
	wordCount := 0
	for i, page := range pages {
		wordCount += len(strings.Fields(page))
		if i < len(pages)-1 {
			boundaries = append(boundaries, wordCount)
		}
	}

	return &ExtractedDocument{
		Filename:       filepath.Base(path),
		Text:           strings.ReplaceAll(string(bytes), "\f", "\n"),
		PageBoundaries: boundaries,
		TotalPages:     len(pages),
	}, nil
}
