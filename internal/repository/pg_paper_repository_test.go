package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
)

// Helper to create a valid catalog paper for testing.
func newTestPaper() *domain.Paper {
	now := time.Now().UTC()
	return &domain.Paper{
		ID:       uuid.New(),
		Title:    "Deep residual learning for image recognition",
		Abstract: "Deeper neural networks are more difficult to train.",
		Authors: []domain.Author{
			{Name: "Kaiming He", Affiliation: "Microsoft Research"},
		},
		PublicationYear: 2016,
		Journal:         "CVPR",
		DOI:             "10.1109/cvpr.2016.90",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// paperRows builds a result set with the full paper column list.
func paperRows(papers ...*domain.Paper) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "title", "abstract", "authors", "publication_year", "journal",
		"doi", "arxiv_id", "pubmed_id", "pdf_path", "summary", "summary_model",
		"created_at", "updated_at",
	})
	for _, p := range papers {
		rows.AddRow(
			p.ID, p.Title, p.Abstract, []byte(`[{"name":"Kaiming He"}]`),
			p.PublicationYear, p.Journal,
			p.DOI, p.ArXivID, p.PubMedID, p.PDFPath, p.Summary, p.SummaryModel,
			p.CreatedAt, p.UpdatedAt,
		)
	}
	return rows
}

func TestPgPaperRepository_GetByDOI(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matching paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT (.+) FROM papers WHERE LOWER").
			WithArgs(paper.DOI).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByDOI(ctx, paper.DOI)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.Equal(t, paper.Title, result.Title)
		require.Len(t, result.Authors, 1)
		assert.Equal(t, "Kaiming He", result.Authors[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing DOI", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM papers WHERE LOWER").
			WithArgs("10.0000/missing").
			WillReturnRows(paperRows())

		result, err := repo.GetByDOI(ctx, "10.0000/missing")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns validation error for empty DOI", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		result, err := repo.GetByDOI(ctx, "")
		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestPgPaperRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns matching paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT (.+) FROM papers WHERE id").
			WithArgs(paper.ID).
			WillReturnRows(paperRows(paper))

		result, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, result.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT (.+) FROM papers WHERE id").
			WithArgs(id).
			WillReturnRows(paperRows())

		_, err = repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgPaperRepository_ListByYearRange(t *testing.T) {
	ctx := context.Background()

	t.Run("bounded window filters by year", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT (.+) FROM papers WHERE publication_year").
			WithArgs(2015, 2017).
			WillReturnRows(paperRows(paper))

		papers, err := repo.ListByYearRange(ctx, 2015, 2017)
		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, paper.ID, papers[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero window returns the whole catalog", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM papers").
			WillReturnRows(paperRows(newTestPaper(), newTestPaper()))

		papers, err := repo.ListByYearRange(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, papers, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_List(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPaperRepository(mock)
	paper := newTestPaper()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT (.+) FROM papers").
		WithArgs(100, 0).
		WillReturnRows(paperRows(paper))

	papers, total, err := repo.List(ctx, PaperFilter{})
	require.NoError(t, err)
	assert.Len(t, papers, 1)
	assert.Equal(t, int64(42), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPaperRepository_UpdateSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("updates summary", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE papers SET summary").
			WithArgs(id, "A concise summary.", "gpt-4o-mini").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateSummary(ctx, id, "A concise summary.", "gpt-4o-mini")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE papers SET summary").
			WithArgs(id, "s", "m").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateSummary(ctx, id, "s", "m")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPaperScanDest(t *testing.T) {
	t.Run("destinations match the column list", func(t *testing.T) {
		var dest paperScanDest
		assert.Len(t, dest.destinations(), 14)
	})

	t.Run("finalize returns error for invalid authors JSON", func(t *testing.T) {
		dest := paperScanDest{authorsJSON: []byte(`{not json`)}
		_, err := dest.finalize()
		assert.Error(t, err)
	})
}
