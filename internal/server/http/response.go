package httpserver

import (
	"time"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Citation and job response types for JSON serialization.

type citationResponse struct {
	ID            string           `json:"id"`
	CitingPaperID string           `json:"citing_paper_id"`
	CitedPaperID  string           `json:"cited_paper_id,omitempty"`
	IdentityKey   string           `json:"identity_key"`
	Status        string           `json:"status"`
	CitedTitle    string           `json:"cited_title,omitempty"`
	CitedAuthors  []authorResponse `json:"cited_authors,omitempty"`
	CitedYear     int              `json:"cited_year,omitempty"`
	CitedJournal  string           `json:"cited_journal,omitempty"`
	CitedDOI      string           `json:"cited_doi,omitempty"`
	Sources       []string         `json:"sources"`
	Confidence    float64          `json:"confidence"`
	RawText       string           `json:"raw_text,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type authorResponse struct {
	Name string `json:"name"`
}

type extractCitationsResponse struct {
	PaperID         string             `json:"paper_id"`
	Direction       string             `json:"direction"`
	CitationsFound  int                `json:"citations_found"`
	CitationsNew    int                `json:"citations_new"`
	CitationsLinked int                `json:"citations_linked"`
	SourcesQueried  []string           `json:"sources_queried"`
	SourcesFailed   []string           `json:"sources_failed,omitempty"`
	Citations       []citationResponse `json:"citations"`
}

type listCitationsResponse struct {
	Citations  []citationResponse `json:"citations"`
	TotalCount int                `json:"total_count"`
}

type jobAcceptedResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type jobResponse struct {
	ID              string                 `json:"id"`
	PaperID         string                 `json:"paper_id"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	Progress        int                    `json:"progress"`
	ProgressMessage string                 `json:"progress_message,omitempty"`
	Result          map[string]interface{} `json:"result,omitempty"`
	Error           string                 `json:"error,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	Duration        string                 `json:"duration,omitempty"`
}

type listJobsResponse struct {
	Jobs       []jobResponse `json:"jobs"`
	TotalCount int           `json:"total_count"`
}

// Converter functions

func domainCitationToResponse(c domain.Citation) citationResponse {
	authors := make([]authorResponse, len(c.CitedAuthors))
	for i, a := range c.CitedAuthors {
		authors[i] = authorResponse{Name: a.Name}
	}
	resp := citationResponse{
		ID:            c.ID.String(),
		CitingPaperID: c.CitingPaperID.String(),
		IdentityKey:   c.IdentityKey,
		Status:        string(c.Status),
		CitedTitle:    c.CitedTitle,
		CitedAuthors:  authors,
		CitedYear:     c.CitedYear,
		CitedJournal:  c.CitedJournal,
		CitedDOI:      c.CitedDOI,
		Sources:       sourceStrings(c.Sources),
		Confidence:    c.Confidence,
		RawText:       c.RawText,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.CitedPaperID != nil {
		resp.CitedPaperID = c.CitedPaperID.String()
	}
	return resp
}

func domainCitationsToResponse(citations []domain.Citation) []citationResponse {
	out := make([]citationResponse, len(citations))
	for i, c := range citations {
		out[i] = domainCitationToResponse(c)
	}
	return out
}

func domainJobToResponse(j *domain.Job) jobResponse {
	resp := jobResponse{
		ID:              j.ID.String(),
		PaperID:         j.PaperID.String(),
		Type:            string(j.Type),
		Status:          string(j.Status),
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		Result:          j.Result,
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
	if d := j.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func sourceStrings(sources []domain.SourceType) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
