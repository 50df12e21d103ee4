package domain

import (
	"time"

	"github.com/google/uuid"
)

// Citation is a directed edge from a catalog paper to a cited work. The
// cited work may or may not exist in the catalog; the Cited* snapshot fields
// always describe it, and CitedPaperID is set only when Status is resolved.
type Citation struct {
	ID            uuid.UUID
	CitingPaperID uuid.UUID
	CitedPaperID  *uuid.UUID
	IdentityKey   string
	Status        CitationStatus
	CitedTitle    string
	CitedAuthors  []Author
	CitedYear     int
	CitedJournal  string
	CitedDOI      string
	Sources       []SourceType
	Confidence    float64
	RawText       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsResolved returns true if the citation points at a catalog paper.
func (c *Citation) IsResolved() bool {
	return c.Status == CitationStatusResolved && c.CitedPaperID != nil
}

// ExtractionResult summarizes one extraction run over a paper.
type ExtractionResult struct {
	PaperID         uuid.UUID
	Direction       ExtractionDirection
	CitationsFound  int
	CitationsNew    int
	CitationsLinked int
	SourcesQueried  []SourceType
	SourcesFailed   []SourceType
}
