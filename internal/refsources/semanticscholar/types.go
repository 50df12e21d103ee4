// Package semanticscholar provides a reference source backed by the
// Semantic Scholar Graph API.
//
// The Graph API exposes a paper's reference list directly at
// /paper/{id}/references, with each entry carrying the cited paper's
// metadata and external identifiers.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// ReferencesResponse represents the response from the paper references endpoint.
type ReferencesResponse struct {
	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	// A value of 0 indicates no more results.
	Next int `json:"next"`

	// Data contains the reference entries.
	Data []ReferenceEntry `json:"data"`
}

// ReferenceEntry wraps a single cited paper in a references response.
type ReferenceEntry struct {
	// CitedPaper is the metadata of the cited work.
	CitedPaper PaperResult `json:"citedPaper"`
}

// PaperResult represents a paper in the Semantic Scholar API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	// May be empty for references Semantic Scholar could not match.
	PaperID string `json:"paperId"`

	// Title is the title of the paper.
	Title string `json:"title"`

	// Year is the publication year.
	Year int `json:"year"`

	// Venue is the publication venue (conference, journal name, etc.).
	Venue string `json:"venue"`

	// Journal contains journal-specific information if published in a journal.
	Journal *Journal `json:"journal,omitempty"`

	// Authors is the list of paper authors.
	Authors []Author `json:"authors"`

	// ExternalIDs contains external identifiers for the paper (DOI, ArXiv, etc.).
	ExternalIDs *ExternalIDs `json:"externalIds,omitempty"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	// DOI is the Digital Object Identifier.
	DOI string `json:"DOI,omitempty"`

	// ArXiv is the ArXiv identifier.
	ArXiv string `json:"ArXiv,omitempty"`

	// PubMed is the PubMed identifier.
	PubMed string `json:"PubMed,omitempty"`

	// PubMedCentral is the PubMed Central identifier.
	PubMedCentral string `json:"PubMedCentral,omitempty"`
}

// Journal contains journal-specific information.
type Journal struct {
	// Name is the name of the journal.
	Name string `json:"name,omitempty"`

	// Volume is the journal volume.
	Volume string `json:"volume,omitempty"`

	// Pages is the page range (e.g., "1-15").
	Pages string `json:"pages,omitempty"`
}

// Author represents a paper author in the Semantic Scholar API.
type Author struct {
	// AuthorID is the Semantic Scholar unique identifier for the author.
	AuthorID string `json:"authorId,omitempty"`

	// Name is the author's name.
	Name string `json:"name"`
}

// ErrorResponse represents an error response from the Semantic Scholar API.
type ErrorResponse struct {
	// Error is the error message from the API.
	Error string `json:"error,omitempty"`

	// Message is an alternative error message field.
	Message string `json:"message,omitempty"`
}
