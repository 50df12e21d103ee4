// Package refsources provides interfaces and types for cited-reference source clients.
//
// This package defines the foundational abstractions that all reference source
// implementations must follow. Each bibliographic database (Crossref, OpenAlex,
// Semantic Scholar, PubMed, arXiv) and the local PDF text extractor implements
// the ReferenceSource interface, allowing the service to fetch the reference
// list of a paper from multiple sources concurrently with a unified API.
//
// Example usage:
//
//	source := crossref.New(cfg, httpClient)
//	query := refsources.Query{
//		DOI: "10.1038/s41586-021-03819-2",
//	}
//	result, err := source.Fetch(ctx, query)
package refsources

import (
	"context"
	"time"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Query identifies the paper whose reference list should be fetched.
// Sources use whichever identifier they index; a source that cannot serve
// the query from the given fields returns domain.ErrNoIdentifier.
type Query struct {
	// DOI is the paper's DOI, if known. Preferred by Crossref and OpenAlex.
	DOI string

	// Title is the paper's title, used as a fallback lookup key when no
	// identifier is available.
	Title string

	// Authors are the paper's authors, used to disambiguate title lookups.
	Authors []domain.Author

	// Year is the publication year, used to disambiguate title lookups.
	// Zero means unknown.
	Year int

	// ArXivID is the paper's arXiv identifier, if known.
	ArXivID string

	// PubMedID is the paper's PubMed identifier, if known.
	PubMedID string

	// PDFPath is the path to a local PDF of the paper. Only the pdf_text
	// source uses it.
	PDFPath string

	// MaxResults limits the number of references returned.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// HasIdentifier returns true if the query carries at least one external
// identifier.
func (q Query) HasIdentifier() bool {
	return q.DOI != "" || q.ArXivID != "" || q.PubMedID != ""
}

// FetchResult contains the references returned by one source.
type FetchResult struct {
	// References contains the raw cited-work records.
	// May be empty if the source knows the paper but has no reference data.
	References []domain.RawReference

	// Source identifies which reference source provided these records.
	Source domain.SourceType

	// FetchDuration is the time taken to execute the fetch,
	// including network latency and response parsing.
	FetchDuration time.Duration
}

// ReferenceSource defines the interface that all reference source clients
// must implement.
type ReferenceSource interface {
	// Fetch retrieves the reference list of the paper described by the query.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform source-specific responses to domain.RawReference
	//   - Include appropriate error wrapping with source context
	//
	// Returns domain.ErrNotFound if the paper is unknown to the source and
	// domain.ErrNoIdentifier if the query carries nothing the source can use.
	Fetch(ctx context.Context, query Query) (*FetchResult, error)

	// SourceType returns the type identifier for this reference source.
	// Used for attribution, merging, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this reference source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this reference source is currently enabled.
	// A source may be disabled due to configuration or missing API keys.
	IsEnabled() bool
}
