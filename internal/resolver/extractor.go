package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/observability"
	"github.com/theke/citation-graph-service/internal/refsources"
	"github.com/theke/citation-graph-service/internal/repository"
)

// DefaultExtractTimeout bounds one extraction run across all sources.
const DefaultExtractTimeout = 2 * time.Minute

// ExtractOptions selects what an extraction run covers.
type ExtractOptions struct {
	// Direction selects outgoing extraction, incoming lookup, or both.
	// Empty defaults to outgoing.
	Direction domain.ExtractionDirection

	// Sources restricts the run to specific source types. Empty means
	// all enabled sources.
	Sources []domain.SourceType
}

// Extractor runs the full citation pipeline for one paper: fan out to the
// reference sources, merge, resolve against the catalog, persist.
type Extractor struct {
	registry  *refsources.Registry
	resolver  *Resolver
	papers    repository.PaperRepository
	citations repository.CitationRepository
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewExtractor creates an extraction pipeline. A zero timeout falls back
// to DefaultExtractTimeout.
func NewExtractor(
	registry *refsources.Registry,
	resolver *Resolver,
	papers repository.PaperRepository,
	citations repository.CitationRepository,
	timeout time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Extractor {
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &Extractor{
		registry:  registry,
		resolver:  resolver,
		papers:    papers,
		citations: citations,
		timeout:   timeout,
		logger:    logger.With().Str("component", "extractor").Logger(),
		metrics:   metrics,
	}
}

// ExtractCitations runs extraction for the paper and returns the touched
// citation rows plus a run summary.
//
// The outgoing direction queries the sources, merges and resolves;
// incoming is served purely from persisted resolved edges pointing at the
// paper; both is the union. domain.ErrNoReferencesFound is returned only
// when every source came back empty AND the paper has no persisted
// citations, so a flaky network never erases a previously extracted list.
func (e *Extractor) ExtractCitations(ctx context.Context, paperID uuid.UUID, opts ExtractOptions) ([]domain.Citation, *domain.ExtractionResult, error) {
	direction := opts.Direction
	if direction == "" {
		direction = domain.DirectionOutgoing
	}
	if !direction.Valid() {
		return nil, nil, domain.NewValidationError("direction", fmt.Sprintf("unknown direction %q", direction))
	}

	paper, err := e.papers.GetByID(ctx, paperID)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.ExtractionResult{
		PaperID:   paperID,
		Direction: direction,
	}

	var citations []domain.Citation
	if direction == domain.DirectionOutgoing || direction == domain.DirectionBoth {
		outgoing, err := e.extractOutgoing(ctx, paper, opts.Sources, result)
		if err != nil {
			return nil, nil, err
		}
		citations = outgoing
	}

	if direction == domain.DirectionIncoming || direction == domain.DirectionBoth {
		incoming, err := e.citations.ListByCitedPaper(ctx, paperID)
		if err != nil {
			return nil, nil, err
		}
		citations = append(citations, incoming...)
	}

	return citations, result, nil
}

// extractOutgoing fetches, merges, resolves and persists the paper's
// reference list.
func (e *Extractor) extractOutgoing(ctx context.Context, paper *domain.Paper, sources []domain.SourceType, result *domain.ExtractionResult) ([]domain.Citation, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordExtractionStarted()
	}

	query := queryForPaper(paper)

	// One deadline covers the whole fan-out. A source that cannot finish
	// in time surfaces as a failed source, not a failed run.
	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	outcome := Merge(e.registry.FetchSources(fetchCtx, query, sources), e.resolver.matcher)
	result.SourcesQueried = outcome.SourcesQueried
	result.SourcesFailed = outcome.SourcesFailed

	for _, failed := range outcome.SourcesFailed {
		e.logger.Warn().
			Str("paper_id", paper.ID.String()).
			Str("source", string(failed)).
			Msg("reference source failed during extraction")
	}

	if len(outcome.References) == 0 {
		persisted, err := e.citations.CountByCitingPaper(ctx, paper.ID)
		if err != nil {
			return nil, err
		}
		if persisted == 0 {
			if e.metrics != nil {
				e.metrics.RecordExtractionFailed(time.Since(start).Seconds())
			}
			return nil, domain.ErrNoReferencesFound
		}

		// Nothing new, but the stored list still answers the request.
		stored, err := e.citations.ListByCitingPaper(ctx, paper.ID)
		if err != nil {
			return nil, err
		}
		if e.metrics != nil {
			e.metrics.RecordExtractionCompleted(0, time.Since(start).Seconds())
		}
		return stored, nil
	}

	resolved, err := e.resolver.Resolve(ctx, paper.ID, outcome.References)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordExtractionFailed(time.Since(start).Seconds())
		}
		return nil, err
	}

	before, err := e.citations.CountByCitingPaper(ctx, paper.ID)
	if err != nil {
		return nil, err
	}

	upserted, err := e.citations.UpsertBatch(ctx, resolved)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordExtractionFailed(time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("failed to persist citations: %w", err)
	}

	after, err := e.citations.CountByCitingPaper(ctx, paper.ID)
	if err != nil {
		return nil, err
	}

	result.CitationsFound = len(upserted)
	result.CitationsNew = int(after - before)
	for _, c := range upserted {
		if c.IsResolved() {
			result.CitationsLinked++
		}
		if e.metrics != nil {
			e.metrics.RecordCitationUpserted(string(c.Status))
		}
	}

	if e.metrics != nil {
		e.metrics.RecordExtractionCompleted(len(outcome.References), time.Since(start).Seconds())
	}

	e.logger.Info().
		Str("paper_id", paper.ID.String()).
		Int("references", len(outcome.References)).
		Int("citations_new", result.CitationsNew).
		Int("citations_linked", result.CitationsLinked).
		Int("sources_failed", len(result.SourcesFailed)).
		Dur("duration", time.Since(start)).
		Msg("citation extraction completed")

	return upserted, nil
}

// queryForPaper builds the source query from the paper's identifiers.
func queryForPaper(paper *domain.Paper) refsources.Query {
	return refsources.Query{
		DOI:      strings.ToLower(strings.TrimSpace(paper.DOI)),
		Title:    paper.Title,
		Authors:  paper.Authors,
		Year:     paper.PublicationYear,
		ArXivID:  paper.ArXivID,
		PubMedID: paper.PubMedID,
		PDFPath:  paper.PDFPath,
	}
}
