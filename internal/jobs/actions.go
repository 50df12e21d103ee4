package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/events"
	"github.com/theke/citation-graph-service/internal/llm"
	"github.com/theke/citation-graph-service/internal/observability"
	"github.com/theke/citation-graph-service/internal/repository"
	"github.com/theke/citation-graph-service/internal/resolver"
)

// CitationExtractor is the slice of resolver.Extractor the extraction
// action needs.
type CitationExtractor interface {
	ExtractCitations(ctx context.Context, paperID uuid.UUID, opts resolver.ExtractOptions) ([]domain.Citation, *domain.ExtractionResult, error)
}

// ExtractionAction runs the citation extraction pipeline for one paper.
type ExtractionAction struct {
	extractor CitationExtractor
	emitter   *events.Emitter
}

// NewExtractionAction creates the action behind citation_extraction
// jobs. The emitter may be nil.
func NewExtractionAction(extractor CitationExtractor, emitter *events.Emitter) *ExtractionAction {
	return &ExtractionAction{extractor: extractor, emitter: emitter}
}

func (a *ExtractionAction) Type() domain.JobType {
	return domain.JobTypeCitationExtraction
}

func (a *ExtractionAction) Run(ctx context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error) {
	progress(10, "querying reference sources")

	citations, result, err := a.extractor.ExtractCitations(ctx, task.Job.PaperID, resolver.ExtractOptions{
		Direction: task.Options.Direction,
		Sources:   task.Options.Sources,
	})
	if err != nil {
		return nil, err
	}

	progress(90, "citations persisted")

	if a.emitter != nil {
		a.emitter.EmitCitationExtracted(ctx, result)
	}

	return map[string]interface{}{
		"citations_found":  result.CitationsFound,
		"citations_new":    result.CitationsNew,
		"citations_linked": result.CitationsLinked,
		"citations_total":  len(citations),
		"sources_queried":  sourceNames(result.SourcesQueried),
		"sources_failed":   sourceNames(result.SourcesFailed),
	}, nil
}

func sourceNames(sources []domain.SourceType) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return names
}

// SummaryAction produces an LLM summary of a paper and stores it on
// the paper row.
type SummaryAction struct {
	papers     repository.PaperRepository
	summarizer llm.Summarizer
	metrics    *observability.Metrics
}

// NewSummaryAction creates the action behind summary jobs.
func NewSummaryAction(papers repository.PaperRepository, summarizer llm.Summarizer, metrics *observability.Metrics) *SummaryAction {
	return &SummaryAction{papers: papers, summarizer: summarizer, metrics: metrics}
}

func (a *SummaryAction) Type() domain.JobType {
	return domain.JobTypeSummary
}

func (a *SummaryAction) Run(ctx context.Context, task Task, progress ProgressFunc) (map[string]interface{}, error) {
	progress(10, "loading paper")

	paper, err := a.papers.GetByID(ctx, task.Job.PaperID)
	if err != nil {
		return nil, err
	}
	if paper.Title == "" && paper.Abstract == "" {
		return nil, domain.NewValidationError("paper", "paper has neither title nor abstract to summarize")
	}

	progress(25, "requesting summary")

	start := time.Now()
	summary, err := a.summarizer.Summarize(ctx, llm.SummaryRequest{
		Title:        paper.Title,
		Abstract:     paper.Abstract,
		Authors:      authorLine(paper.Authors),
		CustomPrompt: task.Options.CustomPrompt,
	})
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordLLMRequestFailed("summarize", a.summarizer.Model(), categorize(err))
		}
		return nil, fmt.Errorf("summarization failed: %w", err)
	}
	if a.metrics != nil {
		a.metrics.RecordLLMRequest("summarize", summary.Model,
			time.Since(start).Seconds(), summary.InputTokens, summary.OutputTokens)
	}

	progress(75, "storing summary")

	if err := a.papers.UpdateSummary(ctx, paper.ID, summary.Summary, summary.Model); err != nil {
		return nil, fmt.Errorf("failed to store summary: %w", err)
	}

	return map[string]interface{}{
		"summary":       summary.Summary,
		"model":         summary.Model,
		"input_tokens":  summary.InputTokens,
		"output_tokens": summary.OutputTokens,
	}, nil
}

// authorLine renders the author list as a display string for the
// prompt.
func authorLine(authors []domain.Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
