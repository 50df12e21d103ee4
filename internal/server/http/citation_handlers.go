package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/graph"
	"github.com/theke/citation-graph-service/internal/jobs"
	"github.com/theke/citation-graph-service/internal/repository"
	"github.com/theke/citation-graph-service/internal/resolver"
)

const maxRequestBodySize = 1 << 20

// networkPaperLimit bounds how many catalog papers the network
// endpoint loads.
const networkPaperLimit = 1000

// extractCitationsRequest is the JSON body for the extract endpoint.
// All fields are optional; the zero value runs a synchronous outgoing
// extraction across all enabled sources.
type extractCitationsRequest struct {
	Direction string   `json:"direction,omitempty" validate:"omitempty,oneof=outgoing incoming both"`
	Method    string   `json:"method,omitempty" validate:"omitempty,oneof=comprehensive"`
	Sources   []string `json:"sources,omitempty" validate:"omitempty,dive,oneof=crossref openalex semantic_scholar pubmed arxiv pdf_text"`
	Async     bool     `json:"async,omitempty"`
}

// resolveCitationRequest is the JSON body for manual resolution.
type resolveCitationRequest struct {
	CitedPaperID string `json:"cited_paper_id" validate:"required,uuid"`
}

// decodeBody reads and unmarshals a request body into v, then runs
// struct tag validation. An empty body leaves v at its zero value.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("invalid JSON request body")
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %v", err)
	}
	return nil
}

// extractCitations handles POST /api/v1/papers/{paperID}/citations/extract.
// With async true it submits an extraction job and returns 202; otherwise
// it runs the pipeline inline and returns the citation list.
func (s *Server) extractCitations(w http.ResponseWriter, r *http.Request) {
	paperID, err := paperIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req extractCitationsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	direction := domain.ExtractionDirection(req.Direction)
	sources := make([]domain.SourceType, len(req.Sources))
	for i, src := range req.Sources {
		sources[i] = domain.SourceType(src)
	}

	if req.Async {
		job, err := s.jobService.Submit(r.Context(), paperID, domain.JobTypeCitationExtraction, jobs.SubmitOptions{
			Direction: direction,
			Sources:   sources,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
			JobID:   job.ID.String(),
			Status:  string(job.Status),
			Message: "citation extraction started, poll the job for progress",
		})
		return
	}

	citations, result, err := s.extractor.ExtractCitations(r.Context(), paperID, resolver.ExtractOptions{
		Direction: direction,
		Sources:   sources,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extractCitationsResponse{
		PaperID:         paperID.String(),
		Direction:       string(result.Direction),
		CitationsFound:  result.CitationsFound,
		CitationsNew:    result.CitationsNew,
		CitationsLinked: result.CitationsLinked,
		SourcesQueried:  sourceStrings(result.SourcesQueried),
		SourcesFailed:   sourceStrings(result.SourcesFailed),
		Citations:       domainCitationsToResponse(citations),
	})
}

// listCitations handles GET /api/v1/papers/{paperID}/citations.
func (s *Server) listCitations(w http.ResponseWriter, r *http.Request) {
	paperID, err := paperIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	citations, err := s.citations.ListByCitingPaper(r.Context(), paperID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listCitationsResponse{
		Citations:  domainCitationsToResponse(citations),
		TotalCount: len(citations),
	})
}

// citationNetwork handles GET /api/v1/citations/network, returning the
// whole library as a node and edge list.
func (s *Server) citationNetwork(w http.ResponseWriter, r *http.Request) {
	papers, _, err := s.papers.List(r.Context(), repository.PaperFilter{Limit: networkPaperLimit})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	citations, err := s.citations.ListAll(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, graph.Build(papers, citations))
}

// resolveCitation handles POST /api/v1/citations/{citationID}/resolve,
// manually linking a citation to a catalog paper. Manual links survive
// later re-extractions.
func (s *Server) resolveCitation(w http.ResponseWriter, r *http.Request) {
	citationID, err := uuid.Parse(chi.URLParam(r, "citationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid citation id")
		return
	}

	var req resolveCitationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	citedPaperID, err := uuid.Parse(req.CitedPaperID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cited_paper_id")
		return
	}

	// The target must exist in the catalog before linking.
	if _, err := s.papers.GetByID(r.Context(), citedPaperID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	citation, err := s.citations.Resolve(r.Context(), citationID, citedPaperID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainCitationToResponse(*citation))
}
