package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/normalize"
	"github.com/theke/citation-graph-service/internal/observability"
)

// Catalog is the slice of the paper store the resolver needs: exact DOI
// lookup and year-bounded candidate listing for fuzzy matching.
type Catalog interface {
	// GetByDOI returns the catalog paper with the given normalized DOI,
	// or domain.ErrNotFound.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)

	// ListByYearRange returns catalog papers whose publication year falls
	// in [yearFrom, yearTo]. Papers with unknown year are included.
	ListByYearRange(ctx context.Context, yearFrom, yearTo int) ([]*domain.Paper, error)
}

// Config holds the resolution thresholds.
type Config struct {
	// TitleSimilarity is the minimum token-set similarity to resolve a
	// reference by title.
	TitleSimilarity float64

	// YearTolerance allows publication years to differ by this much.
	YearTolerance int

	// SuggestionFloor is the minimum similarity for a near-miss candidate
	// to be surfaced as a suggestion rather than left unresolved.
	SuggestionFloor float64
}

// Resolver links merged references to catalog papers.
type Resolver struct {
	catalog Catalog
	matcher *normalize.Matcher
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a resolver with the given catalog and thresholds.
func New(catalog Catalog, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		catalog: catalog,
		matcher: normalize.NewMatcher(cfg.TitleSimilarity, cfg.YearTolerance),
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve turns merged references into citations from the citing paper,
// linking each to a catalog paper where one matches.
//
// Match precedence per reference:
//  1. exact DOI lookup: resolved
//  2. fuzzy title match at or above TitleSimilarity: resolved
//  3. best near-miss at or above SuggestionFloor: suggested
//  4. otherwise: unresolved
func (r *Resolver) Resolve(ctx context.Context, citingPaperID uuid.UUID, refs []domain.NormalizedReference) ([]domain.Citation, error) {
	citations := make([]domain.Citation, 0, len(refs))

	for i := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		citation, err := r.resolveOne(ctx, citingPaperID, refs[i])
		if err != nil {
			return nil, err
		}
		citations = append(citations, citation)
	}

	return citations, nil
}

// resolveOne resolves a single reference against the catalog.
func (r *Resolver) resolveOne(ctx context.Context, citingPaperID uuid.UUID, ref domain.NormalizedReference) (domain.Citation, error) {
	now := time.Now().UTC()
	citation := domain.Citation{
		ID:            uuid.New(),
		CitingPaperID: citingPaperID,
		IdentityKey:   ref.IdentityKey,
		Status:        domain.CitationStatusUnresolved,
		CitedTitle:    ref.Title,
		CitedAuthors:  ref.Authors,
		CitedYear:     ref.Year,
		CitedJournal:  ref.Journal,
		CitedDOI:      ref.DOI,
		Sources:       ref.Sources,
		Confidence:    ref.Confidence,
		RawText:       ref.RawText,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if ref.DOI != "" {
		paper, err := r.catalog.GetByDOI(ctx, ref.DOI)
		switch {
		case err == nil:
			citation.CitedPaperID = &paper.ID
			citation.Status = domain.CitationStatusResolved
			if r.metrics != nil {
				r.metrics.RecordCitationResolved("doi")
			}
			return citation, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Citation{}, err
		}
	}

	if ref.Title == "" {
		return citation, nil
	}

	paper, similarity, matched, err := r.bestCandidate(ctx, ref)
	if err != nil {
		return domain.Citation{}, err
	}
	if paper == nil {
		return citation, nil
	}

	switch {
	case matched && similarity >= r.config.TitleSimilarity:
		citation.CitedPaperID = &paper.ID
		citation.Status = domain.CitationStatusResolved
		if r.metrics != nil {
			r.metrics.RecordCitationResolved("fuzzy")
		}
	case similarity >= r.config.SuggestionFloor:
		citation.CitedPaperID = &paper.ID
		citation.Status = domain.CitationStatusSuggested
		r.logger.Debug().
			Str("identity_key", ref.IdentityKey).
			Str("candidate_id", paper.ID.String()).
			Float64("similarity", similarity).
			Msg("near-miss candidate surfaced as suggestion")
	}

	return citation, nil
}

// bestCandidate scans year-compatible catalog papers for the closest
// title. Returns nil when no candidate clears the suggestion floor; the
// matched flag reports whether the best candidate passed the full match
// (not just raw similarity).
func (r *Resolver) bestCandidate(ctx context.Context, ref domain.NormalizedReference) (*domain.Paper, float64, bool, error) {
	yearFrom, yearTo := 0, 0
	if ref.Year > 0 {
		yearFrom = ref.Year - r.config.YearTolerance
		yearTo = ref.Year + r.config.YearTolerance
	}

	candidates, err := r.catalog.ListByYearRange(ctx, yearFrom, yearTo)
	if err != nil {
		return nil, 0, false, err
	}

	var best *domain.Paper
	bestSim := 0.0
	bestMatched := false
	for _, candidate := range candidates {
		ok, sim := r.matcher.Match(ref, candidate.Title, candidate.Authors, candidate.PublicationYear, candidate.DOI)
		if sim < r.config.SuggestionFloor {
			continue
		}
		// A full match outranks a higher-similarity near-miss.
		if (ok && !bestMatched) || (ok == bestMatched && sim > bestSim) {
			best = candidate
			bestSim = sim
			bestMatched = ok
		}
	}

	if best == nil {
		return nil, 0, false, nil
	}
	return best, bestSim, bestMatched, nil
}
