package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/jobs"
)

// summaryRequest is the JSON body for the summary trigger endpoint.
type summaryRequest struct {
	CustomPrompt string `json:"custom_prompt,omitempty" validate:"omitempty,max=4000"`
}

// triggerSummary handles POST /api/v1/papers/{paperID}/summary,
// submitting an LLM summarization job.
func (s *Server) triggerSummary(w http.ResponseWriter, r *http.Request) {
	paperID, err := paperIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req summaryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.jobService.Submit(r.Context(), paperID, domain.JobTypeSummary, jobs.SubmitOptions{
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		JobID:   job.ID.String(),
		Status:  string(job.Status),
		Message: "summarization started, poll the job for progress",
	})
}

// getJob handles GET /api/v1/jobs/{jobID}. Terminal jobs return the
// same snapshot on every poll.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.jobService.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainJobToResponse(job))
}

// listJobs handles GET /api/v1/papers/{paperID}/jobs, newest first.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	paperID, err := paperIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobList, err := s.jobService.ListJobs(r.Context(), paperID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := listJobsResponse{
		Jobs:       make([]jobResponse, 0, len(jobList)),
		TotalCount: len(jobList),
	}
	for _, j := range jobList {
		resp.Jobs = append(resp.Jobs, domainJobToResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}
