package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
	"github.com/theke/citation-graph-service/internal/repository"
)

// stubSource is a canned reference source for pipeline tests.
type stubSource struct {
	sourceType domain.SourceType
	references []domain.RawReference
	err        error
}

func (s *stubSource) Fetch(_ context.Context, _ refsources.Query) (*refsources.FetchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &refsources.FetchResult{References: s.references, Source: s.sourceType}, nil
}

func (s *stubSource) SourceType() domain.SourceType { return s.sourceType }
func (s *stubSource) Name() string                  { return string(s.sourceType) }
func (s *stubSource) IsEnabled() bool               { return true }

// fakePaperRepo serves a single paper.
type fakePaperRepo struct {
	paper *domain.Paper
}

func (f *fakePaperRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
	if f.paper != nil && f.paper.ID == id {
		return f.paper, nil
	}
	return nil, domain.NewNotFoundError("paper", id.String())
}

func (f *fakePaperRepo) GetByDOI(_ context.Context, doi string) (*domain.Paper, error) {
	if f.paper != nil && f.paper.DOI == doi {
		return f.paper, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakePaperRepo) ListByYearRange(_ context.Context, _, _ int) ([]*domain.Paper, error) {
	return nil, nil
}

func (f *fakePaperRepo) List(_ context.Context, _ repository.PaperFilter) ([]*domain.Paper, int64, error) {
	return nil, 0, nil
}

func (f *fakePaperRepo) UpdateSummary(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}

// fakeCitationRepo keeps citation rows in memory keyed by
// (citing paper, identity key).
type fakeCitationRepo struct {
	rows map[string]domain.Citation
}

func newFakeCitationRepo() *fakeCitationRepo {
	return &fakeCitationRepo{rows: make(map[string]domain.Citation)}
}

func (f *fakeCitationRepo) key(c domain.Citation) string {
	return c.CitingPaperID.String() + "|" + c.IdentityKey
}

func (f *fakeCitationRepo) UpsertBatch(_ context.Context, citations []domain.Citation) ([]domain.Citation, error) {
	out := make([]domain.Citation, 0, len(citations))
	for _, c := range citations {
		if existing, ok := f.rows[f.key(c)]; ok {
			c.ID = existing.ID
		}
		f.rows[f.key(c)] = c
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCitationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Citation, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, domain.NewNotFoundError("citation", id.String())
}

func (f *fakeCitationRepo) ListByCitingPaper(_ context.Context, citingPaperID uuid.UUID) ([]domain.Citation, error) {
	var out []domain.Citation
	for _, c := range f.rows {
		if c.CitingPaperID == citingPaperID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCitationRepo) ListByCitedPaper(_ context.Context, citedPaperID uuid.UUID) ([]domain.Citation, error) {
	var out []domain.Citation
	for _, c := range f.rows {
		if c.CitedPaperID != nil && *c.CitedPaperID == citedPaperID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCitationRepo) ListAll(_ context.Context) ([]domain.Citation, error) {
	var out []domain.Citation
	for _, c := range f.rows {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCitationRepo) CountByCitingPaper(_ context.Context, citingPaperID uuid.UUID) (int64, error) {
	rows, _ := f.ListByCitingPaper(context.Background(), citingPaperID)
	return int64(len(rows)), nil
}

func (f *fakeCitationRepo) DeleteByCitingPaper(_ context.Context, citingPaperID uuid.UUID) (int64, error) {
	var deleted int64
	for k, c := range f.rows {
		if c.CitingPaperID == citingPaperID {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeCitationRepo) Resolve(_ context.Context, citationID, citedPaperID uuid.UUID) (*domain.Citation, error) {
	for k, c := range f.rows {
		if c.ID == citationID {
			c.CitedPaperID = &citedPaperID
			c.Status = domain.CitationStatusResolved
			f.rows[k] = c
			return &c, nil
		}
	}
	return nil, domain.NewNotFoundError("citation", citationID.String())
}

func newTestExtractor(t *testing.T, paper *domain.Paper, catalog Catalog, sources ...*stubSource) (*Extractor, *fakeCitationRepo) {
	t.Helper()

	registry := refsources.NewRegistry()
	for _, s := range sources {
		registry.Register(s)
	}

	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	res := New(catalog, Config{
		TitleSimilarity: 0.85,
		YearTolerance:   1,
		SuggestionFloor: 0.70,
	}, zerolog.Nop(), nil)

	citations := newFakeCitationRepo()
	extractor := NewExtractor(registry, res,
		&fakePaperRepo{paper: paper}, citations, 0, zerolog.Nop(), nil)
	return extractor, citations
}

func TestExtractCitations_Outgoing(t *testing.T) {
	catalogPaper := &domain.Paper{
		ID:              uuid.New(),
		Title:           "Deep learning",
		DOI:             "10.1038/nature14539",
		PublicationYear: 2015,
	}
	paper := &domain.Paper{ID: uuid.New(), Title: "Survey", DOI: "10.1/survey"}

	crossref := &stubSource{
		sourceType: domain.SourceTypeCrossref,
		references: []domain.RawReference{
			{Source: domain.SourceTypeCrossref, DOI: "10.1038/nature14539", Title: "Deep learning", Year: 2015, Confidence: 0.95},
			{Source: domain.SourceTypeCrossref, Title: "An unindexed workshop paper", Year: 2019, Confidence: 0.85},
		},
	}
	openalex := &stubSource{
		sourceType: domain.SourceTypeOpenAlex,
		references: []domain.RawReference{
			// Overlaps crossref's first reference by DOI.
			{Source: domain.SourceTypeOpenAlex, DOI: "10.1038/NATURE14539", Title: "Deep learning", Year: 2015, Confidence: 0.9},
		},
	}
	failing := &stubSource{
		sourceType: domain.SourceTypeSemanticScholar,
		err:        errors.New("upstream timeout"),
	}

	extractor, repo := newTestExtractor(t, paper,
		&fakeCatalog{papers: []*domain.Paper{catalogPaper}},
		crossref, openalex, failing)

	citations, result, err := extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{
		Direction: domain.DirectionOutgoing,
	})
	require.NoError(t, err)

	assert.Len(t, citations, 2)
	assert.Equal(t, 2, result.CitationsFound)
	assert.Equal(t, 2, result.CitationsNew)
	assert.Equal(t, 1, result.CitationsLinked)
	assert.Contains(t, result.SourcesFailed, domain.SourceTypeSemanticScholar)
	assert.Len(t, repo.rows, 2)

	// Re-running upserts into the same rows instead of duplicating.
	citations, result, err = extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{})
	require.NoError(t, err)
	assert.Len(t, citations, 2)
	assert.Equal(t, 0, result.CitationsNew)
	assert.Len(t, repo.rows, 2)
}

func TestExtractCitations_NoReferencesAnywhere(t *testing.T) {
	paper := &domain.Paper{ID: uuid.New(), Title: "Obscure technical report"}
	empty := &stubSource{sourceType: domain.SourceTypeCrossref}

	extractor, _ := newTestExtractor(t, paper, nil, empty)

	_, _, err := extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrNoReferencesFound)
}

func TestExtractCitations_EmptyRunKeepsStoredList(t *testing.T) {
	paper := &domain.Paper{ID: uuid.New(), Title: "Survey"}
	empty := &stubSource{sourceType: domain.SourceTypeCrossref}

	extractor, repo := newTestExtractor(t, paper, nil, empty)
	_, err := repo.UpsertBatch(context.Background(), []domain.Citation{{
		ID:            uuid.New(),
		CitingPaperID: paper.ID,
		IdentityKey:   "doi:10.1/earlier",
		Status:        domain.CitationStatusUnresolved,
	}})
	require.NoError(t, err)

	citations, result, err := extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{})
	require.NoError(t, err)
	assert.Len(t, citations, 1)
	assert.Equal(t, 0, result.CitationsFound)
}

func TestExtractCitations_Incoming(t *testing.T) {
	paper := &domain.Paper{ID: uuid.New(), Title: "Foundational work"}
	extractor, repo := newTestExtractor(t, paper, nil)

	citingID := uuid.New()
	_, err := repo.UpsertBatch(context.Background(), []domain.Citation{{
		ID:            uuid.New(),
		CitingPaperID: citingID,
		CitedPaperID:  &paper.ID,
		IdentityKey:   "doi:10.1/foundational",
		Status:        domain.CitationStatusResolved,
	}})
	require.NoError(t, err)

	citations, result, err := extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{
		Direction: domain.DirectionIncoming,
	})
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, citingID, citations[0].CitingPaperID)
	assert.Equal(t, domain.DirectionIncoming, result.Direction)
	assert.Empty(t, result.SourcesQueried)
}

func TestExtractCitations_InvalidDirection(t *testing.T) {
	paper := &domain.Paper{ID: uuid.New()}
	extractor, _ := newTestExtractor(t, paper, nil)

	_, _, err := extractor.ExtractCitations(context.Background(), paper.ID, ExtractOptions{
		Direction: domain.ExtractionDirection("sideways"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtractCitations_PaperNotFound(t *testing.T) {
	extractor, _ := newTestExtractor(t, nil, nil)

	_, _, err := extractor.ExtractCitations(context.Background(), uuid.New(), ExtractOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
