package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaperIdentifiers holds the external identifiers a catalog paper may carry.
type PaperIdentifiers struct {
	DOI      string
	ArXivID  string
	PubMedID string
}

// Author represents a paper author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// FirstAuthorSurname returns the surname of the first author in the list,
// assuming "Given Family" ordering. Returns empty string for an empty list.
func FirstAuthorSurname(authors []Author) string {
	if len(authors) == 0 {
		return ""
	}
	fields := strings.Fields(authors[0].Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Paper represents an academic paper in the user's local catalog.
type Paper struct {
	ID              uuid.UUID
	Title           string
	Abstract        string
	Authors         []Author
	PublicationYear int
	Journal         string
	DOI             string
	ArXivID         string
	PubMedID        string
	PDFPath         string
	Summary         string
	SummaryModel    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Identifiers returns the paper's external identifiers.
func (p *Paper) Identifiers() PaperIdentifiers {
	return PaperIdentifiers{
		DOI:      p.DOI,
		ArXivID:  p.ArXivID,
		PubMedID: p.PubMedID,
	}
}

// HasIdentifier returns true if the paper carries at least one external
// identifier usable for source lookups.
func (p *Paper) HasIdentifier() bool {
	return p.DOI != "" || p.ArXivID != "" || p.PubMedID != ""
}

// HasPDF returns true if a local PDF file is associated with the paper.
func (p *Paper) HasPDF() bool {
	return p.PDFPath != ""
}
