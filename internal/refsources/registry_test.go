package refsources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
)

// mockSource is a mock implementation of ReferenceSource for testing.
type mockSource struct {
	sourceType domain.SourceType
	name       string
	enabled    bool

	// fetchFunc allows customizing fetch behavior in tests
	fetchFunc func(ctx context.Context, query Query) (*FetchResult, error)

	// Track calls for verification
	fetchCalls atomic.Int32
}

func newMockSource(sourceType domain.SourceType, name string, enabled bool) *mockSource {
	return &mockSource{
		sourceType: sourceType,
		name:       name,
		enabled:    enabled,
	}
}

func (m *mockSource) Fetch(ctx context.Context, query Query) (*FetchResult, error) {
	m.fetchCalls.Add(1)
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, query)
	}
	return &FetchResult{
		References: []domain.RawReference{},
		Source:     m.sourceType,
	}, nil
}

func (m *mockSource) SourceType() domain.SourceType {
	return m.sourceType
}

func (m *mockSource) Name() string {
	return m.name
}

func (m *mockSource) IsEnabled() bool {
	return m.enabled
}

func (m *mockSource) FetchCallCount() int {
	return int(m.fetchCalls.Load())
}

func TestNewRegistry(t *testing.T) {
	t.Run("creates empty registry", func(t *testing.T) {
		registry := NewRegistry()

		require.NotNil(t, registry)
		require.NotNil(t, registry.sources)
		assert.Empty(t, registry.sources)
	})

	t.Run("registry is ready to use", func(t *testing.T) {
		registry := NewRegistry()

		source := registry.Get(domain.SourceTypeCrossref)
		assert.Nil(t, source)

		sources := registry.AllSources()
		assert.Empty(t, sources)
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Run("registers a source", func(t *testing.T) {
		registry := NewRegistry()
		source := newMockSource(domain.SourceTypeCrossref, "Crossref", true)

		registry.Register(source)

		got := registry.Get(domain.SourceTypeCrossref)
		require.NotNil(t, got)
		assert.Equal(t, "Crossref", got.Name())
	})

	t.Run("replaces existing source of same type", func(t *testing.T) {
		registry := NewRegistry()
		first := newMockSource(domain.SourceTypeOpenAlex, "OpenAlex v1", true)
		second := newMockSource(domain.SourceTypeOpenAlex, "OpenAlex v2", true)

		registry.Register(first)
		registry.Register(second)

		got := registry.Get(domain.SourceTypeOpenAlex)
		require.NotNil(t, got)
		assert.Equal(t, "OpenAlex v2", got.Name())
		assert.Len(t, registry.AllSources(), 1)
	})
}

func TestRegistry_EnabledSources(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockSource(domain.SourceTypeCrossref, "Crossref", true))
	registry.Register(newMockSource(domain.SourceTypeOpenAlex, "OpenAlex", false))
	registry.Register(newMockSource(domain.SourceTypePubMed, "PubMed", true))

	enabled := registry.EnabledSources()
	assert.Len(t, enabled, 2)
	for _, s := range enabled {
		assert.True(t, s.IsEnabled())
	}

	all := registry.AllSources()
	assert.Len(t, all, 3)
}

func TestRegistry_FetchAll(t *testing.T) {
	t.Run("fetches from all enabled sources concurrently", func(t *testing.T) {
		registry := NewRegistry()

		crossref := newMockSource(domain.SourceTypeCrossref, "Crossref", true)
		crossref.fetchFunc = func(ctx context.Context, query Query) (*FetchResult, error) {
			return &FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeCrossref, DOI: "10.1000/a"},
					{Source: domain.SourceTypeCrossref, DOI: "10.1000/b"},
				},
				Source: domain.SourceTypeCrossref,
			}, nil
		}

		openalex := newMockSource(domain.SourceTypeOpenAlex, "OpenAlex", true)
		disabled := newMockSource(domain.SourceTypePubMed, "PubMed", false)

		registry.Register(crossref)
		registry.Register(openalex)
		registry.Register(disabled)

		results := registry.FetchAll(context.Background(), Query{DOI: "10.1000/x"})

		assert.Len(t, results, 2)
		assert.Equal(t, 1, crossref.FetchCallCount())
		assert.Equal(t, 1, openalex.FetchCallCount())
		assert.Equal(t, 0, disabled.FetchCallCount())

		byType := make(map[domain.SourceType]SourceResult)
		for _, r := range results {
			byType[r.Source] = r
		}
		require.Contains(t, byType, domain.SourceTypeCrossref)
		assert.Len(t, byType[domain.SourceTypeCrossref].Result.References, 2)
	})

	t.Run("collects per-source errors without failing the fan-out", func(t *testing.T) {
		registry := NewRegistry()

		good := newMockSource(domain.SourceTypeCrossref, "Crossref", true)
		bad := newMockSource(domain.SourceTypeOpenAlex, "OpenAlex", true)
		bad.fetchFunc = func(ctx context.Context, query Query) (*FetchResult, error) {
			return nil, errors.New("upstream exploded")
		}

		registry.Register(good)
		registry.Register(bad)

		results := registry.FetchAll(context.Background(), Query{Title: "some paper"})
		require.Len(t, results, 2)

		var errCount, okCount int
		for _, r := range results {
			if r.Error != nil {
				errCount++
				assert.Nil(t, r.Result)
			} else {
				okCount++
				assert.NotNil(t, r.Result)
			}
		}
		assert.Equal(t, 1, errCount)
		assert.Equal(t, 1, okCount)
	})

	t.Run("returns nil with no enabled sources", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockSource(domain.SourceTypeCrossref, "Crossref", false))

		results := registry.FetchAll(context.Background(), Query{})
		assert.Nil(t, results)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		registry := NewRegistry()

		slow := newMockSource(domain.SourceTypeSemanticScholar, "Semantic Scholar", true)
		slow.fetchFunc = func(ctx context.Context, query Query) (*FetchResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &FetchResult{Source: domain.SourceTypeSemanticScholar}, nil
			}
		}
		registry.Register(slow)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		results := registry.FetchAll(ctx, Query{DOI: "10.1000/slow"})
		require.Len(t, results, 1)
		assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
	})
}

func TestRegistry_FetchSources(t *testing.T) {
	registry := NewRegistry()

	crossref := newMockSource(domain.SourceTypeCrossref, "Crossref", true)
	openalex := newMockSource(domain.SourceTypeOpenAlex, "OpenAlex", true)
	registry.Register(crossref)
	registry.Register(openalex)

	t.Run("fetches only requested sources", func(t *testing.T) {
		results := registry.FetchSources(context.Background(), Query{DOI: "10.1/x"},
			[]domain.SourceType{domain.SourceTypeCrossref})

		require.Len(t, results, 1)
		assert.Equal(t, domain.SourceTypeCrossref, results[0].Source)
	})

	t.Run("skips unknown source types", func(t *testing.T) {
		results := registry.FetchSources(context.Background(), Query{DOI: "10.1/x"},
			[]domain.SourceType{domain.SourceTypeArXiv})

		assert.Nil(t, results)
	})
}
