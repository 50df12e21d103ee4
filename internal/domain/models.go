// Package domain provides domain models and business logic for the citation graph service.
package domain

// SourceType represents the external source that provided reference data.
// These values appear in the citations.sources JSONB array.
type SourceType string

const (
	SourceTypeCrossref        SourceType = "crossref"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypePDFText         SourceType = "pdf_text"
)

// CitationStatus represents the resolution state of a citation edge.
// These values must match the database enum citation_status.
type CitationStatus string

const (
	// CitationStatusResolved means the cited work matches a paper in the
	// local catalog and CitedPaperID is set.
	CitationStatusResolved CitationStatus = "resolved"

	// CitationStatusUnresolved means no catalog match was found; only the
	// snapshot fields describe the cited work.
	CitationStatusUnresolved CitationStatus = "unresolved"

	// CitationStatusSuggested means one or more near-miss catalog
	// candidates exist but none was confident enough to resolve.
	CitationStatusSuggested CitationStatus = "suggested"
)

// JobType identifies the long-running operation a job performs.
// These values must match the database enum job_type.
type JobType string

const (
	JobTypeSummary            JobType = "summary"
	JobTypeCitationExtraction JobType = "citation_extraction"
)

// Valid returns true for known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeSummary, JobTypeCitationExtraction:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle states of a background job.
// These values must match the database enum job_status.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ExtractionDirection selects which citation edges an extraction request covers.
type ExtractionDirection string

const (
	DirectionOutgoing ExtractionDirection = "outgoing"
	DirectionIncoming ExtractionDirection = "incoming"
	DirectionBoth     ExtractionDirection = "both"
)

// Valid returns true for known directions.
func (d ExtractionDirection) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	default:
		return false
	}
}
