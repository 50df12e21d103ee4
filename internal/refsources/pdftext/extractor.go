package pdftext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
)

const (
	// DefaultMaxPages caps how many pages are read from a PDF.
	DefaultMaxPages = 100

	// DefaultMinConfidence is the default confidence floor for parsed
	// records.
	DefaultMinConfidence = 0.5

	// sourceName is the human-readable name for this source.
	sourceName = "PDF text"
)

// Config holds configuration for the PDF text extractor.
type Config struct {
	// MaxPages caps how many pages are read from the PDF.
	// Defaults to DefaultMaxPages.
	MaxPages int

	// MinConfidence drops parsed records below this confidence.
	// Defaults to DefaultMinConfidence.
	MinConfidence float64

	// MaxResults is the maximum references returned per extraction.
	// Zero means no cap.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = DefaultMinConfidence
	}
}

// Extractor implements the refsources.ReferenceSource interface over a
// locally stored PDF. It is the only source that needs no network access.
type Extractor struct {
	config Config
	parser *Parser

	// extractText is swappable for tests.
	extractText func(path string, maxPages int) (string, error)
}

// Ensure Extractor implements ReferenceSource interface.
var _ refsources.ReferenceSource = (*Extractor)(nil)

// New creates a new PDF text extractor with the given configuration.
func New(cfg Config) *Extractor {
	cfg.applyDefaults()

	return &Extractor{
		config:      cfg,
		parser:      NewParser(cfg.MinConfidence),
		extractText: extractText,
	}
}

// Fetch parses the reference list out of the PDF named by the query.
func (e *Extractor) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	startTime := time.Now()

	if query.PDFPath == "" {
		return nil, fmt.Errorf("pdf text: %w", domain.ErrNoIdentifier)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := e.extractText(query.PDFPath, e.config.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", query.PDFPath, err)
	}

	references := e.parser.Parse(text)

	maxResults := query.MaxResults
	if maxResults == 0 {
		maxResults = e.config.MaxResults
	}
	if maxResults > 0 && len(references) > maxResults {
		references = references[:maxResults]
	}

	return &refsources.FetchResult{
		References:    references,
		Source:        domain.SourceTypePDFText,
		FetchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (e *Extractor) SourceType() domain.SourceType {
	return domain.SourceTypePDFText
}

// Name returns the human-readable name for this source.
func (e *Extractor) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (e *Extractor) IsEnabled() bool {
	return e.config.Enabled
}

// extractText extracts plain text from the first maxPages pages of a PDF.
// Pages that fail to render are skipped rather than failing the whole
// extraction; scanned PDFs commonly have a few unreadable pages.
func extractText(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
