package refsources

import (
	"context"
	"sync"

	"github.com/theke/citation-graph-service/internal/domain"
)

// SourceResult holds the outcome of a fetch from one source.
type SourceResult struct {
	// Source identifies which reference source produced the result.
	Source domain.SourceType

	// Result contains the fetched references if the fetch succeeded.
	// Will be nil if Error is non-nil.
	Result *FetchResult

	// Error contains the error if the fetch failed.
	// Will be nil if Result is non-nil.
	Error error
}

// Registry holds the configured reference sources and fans fetches out
// across them. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]ReferenceSource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]ReferenceSource),
	}
}

// Register adds a source, replacing any earlier one of the same type.
func (r *Registry) Register(source ReferenceSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns the source of the given type, or nil.
func (r *Registry) Get(sourceType domain.SourceType) ReferenceSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns a snapshot of every registered source.
func (r *Registry) AllSources() []ReferenceSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]ReferenceSource, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	return sources
}

// EnabledSources returns a snapshot of the sources currently enabled.
func (r *Registry) EnabledSources() []ReferenceSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]ReferenceSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// FetchAll queries every enabled source concurrently. Each source gets
// its own SourceResult; per-source errors ride in the result rather than
// aborting the fan-out. Cancelling ctx interrupts in-flight fetches.
func (r *Registry) FetchAll(ctx context.Context, query Query) []SourceResult {
	return r.FetchSources(ctx, query, nil)
}

// FetchSources queries the named sources concurrently, or every enabled
// source when sourceTypes is empty. Unknown source types are skipped.
func (r *Registry) FetchSources(ctx context.Context, query Query, sourceTypes []domain.SourceType) []SourceResult {
	var sources []ReferenceSource

	if len(sourceTypes) == 0 {
		sources = r.EnabledSources()
	} else {
		r.mu.RLock()
		sources = make([]ReferenceSource, 0, len(sourceTypes))
		for _, st := range sourceTypes {
			if source, ok := r.sources[st]; ok {
				sources = append(sources, source)
			}
		}
		r.mu.RUnlock()
	}

	if len(sources) == 0 {
		return nil
	}

	resultChan := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(s ReferenceSource) {
			defer wg.Done()

			result, err := s.Fetch(ctx, query)
			resultChan <- SourceResult{
				Source: s.SourceType(),
				Result: result,
				Error:  err,
			}
		}(source)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, len(sources))
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}
