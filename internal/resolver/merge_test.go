package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/normalize"
	"github.com/theke/citation-graph-service/internal/refsources"
)

func testMatcher() *normalize.Matcher {
	return normalize.NewMatcher(0.85, 1)
}

func TestMerge_OverlappingSources(t *testing.T) {
	// Two sources return partially overlapping references, a third times
	// out, and a fourth returns nothing. The overlap shares a DOI and must
	// collapse to a single record.
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypeCrossref,
			Result: &refsources.FetchResult{
				Source: domain.SourceTypeCrossref,
				References: []domain.RawReference{
					{Source: domain.SourceTypeCrossref, DOI: "10.1038/nature14539", Title: "Deep learning", Year: 2015, Confidence: 0.95},
					{Source: domain.SourceTypeCrossref, DOI: "10.1145/3065386", Confidence: 0.95},
				},
			},
		},
		{
			Source: domain.SourceTypeOpenAlex,
			Result: &refsources.FetchResult{
				Source: domain.SourceTypeOpenAlex,
				References: []domain.RawReference{
					// Same work as Crossref's first, richer metadata.
					{Source: domain.SourceTypeOpenAlex, DOI: "10.1038/NATURE14539", Title: "Deep learning", Journal: "Nature", Authors: []domain.Author{{Name: "Yann LeCun"}}, Year: 2015, Confidence: 0.9},
					{Source: domain.SourceTypeOpenAlex, Title: "Long short-term memory", Authors: []domain.Author{{Name: "Sepp Hochreiter"}}, Year: 1997, Confidence: 0.85},
					{Source: domain.SourceTypeOpenAlex, DOI: "10.5555/3295222", Title: "Attention is all you need", Year: 2017, Confidence: 0.9},
				},
			},
		},
		{
			Source: domain.SourceTypeSemanticScholar,
			Error:  errors.New("context deadline exceeded"),
		},
		{
			Source: domain.SourceTypePubMed,
			Result: &refsources.FetchResult{Source: domain.SourceTypePubMed},
		},
	}

	outcome := Merge(results, testMatcher())

	assert.Len(t, outcome.References, 4)
	assert.Equal(t, []domain.SourceType{
		domain.SourceTypeCrossref,
		domain.SourceTypeOpenAlex,
		domain.SourceTypeSemanticScholar,
		domain.SourceTypePubMed,
	}, outcome.SourcesQueried)
	assert.Equal(t, []domain.SourceType{domain.SourceTypeSemanticScholar}, outcome.SourcesFailed)

	merged := outcome.References[0]
	assert.Equal(t, "doi:10.1038/nature14539", merged.IdentityKey)
	// First-seen record wins, later sources fill gaps.
	assert.Equal(t, "Deep learning", merged.Title)
	assert.Equal(t, "Nature", merged.Journal)
	require.Len(t, merged.Authors, 1)
	assert.Equal(t, []domain.SourceType{domain.SourceTypeCrossref, domain.SourceTypeOpenAlex}, merged.Sources)
	assert.Equal(t, 0.95, merged.Confidence)
}

func TestMerge_FirstSeenWins(t *testing.T) {
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypeCrossref,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeCrossref, DOI: "10.1/x", Title: "Original Title", Year: 2015},
				},
			},
		},
		{
			Source: domain.SourceTypeOpenAlex,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeOpenAlex, DOI: "10.1/x", Title: "Conflicting Title", Year: 2016},
				},
			},
		},
	}

	outcome := Merge(results, testMatcher())

	require.Len(t, outcome.References, 1)
	// Conflicting values never overwrite the first-seen record.
	assert.Equal(t, "Original Title", outcome.References[0].Title)
	assert.Equal(t, 2015, outcome.References[0].Year)
}

func TestMerge_DropsEmptyRecords(t *testing.T) {
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypePDFText,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypePDFText},
					{Source: domain.SourceTypePDFText, RawText: "Anonymous. Untraceable report. 1999.", Confidence: 0.6},
				},
			},
		},
	}

	outcome := Merge(results, testMatcher())
	require.Len(t, outcome.References, 1)
	assert.Contains(t, outcome.References[0].RawText, "Untraceable")
}

func TestMerge_FoldsDOIOntoTitleOnlyRecord(t *testing.T) {
	// PDF text extraction knows the work only by title; Crossref reports
	// the same work with its DOI. The two must fold into one record keyed
	// by the DOI.
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypePDFText,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypePDFText, Title: "Attention is all you need", Authors: []domain.Author{{Name: "Ashish Vaswani"}}, Year: 2017, Confidence: 0.6},
				},
			},
		},
		{
			Source: domain.SourceTypeCrossref,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeCrossref, DOI: "10.5555/3295222", Title: "Attention Is All You Need", Authors: []domain.Author{{Name: "Ashish Vaswani"}}, Year: 2017, Confidence: 0.95},
				},
			},
		},
	}

	outcome := Merge(results, testMatcher())

	require.Len(t, outcome.References, 1)
	merged := outcome.References[0]
	assert.Equal(t, "doi:10.5555/3295222", merged.IdentityKey)
	assert.Equal(t, "10.5555/3295222", merged.DOI)
	assert.Equal(t, []domain.SourceType{domain.SourceTypePDFText, domain.SourceTypeCrossref}, merged.Sources)
}

func TestMerge_FoldsYearDrift(t *testing.T) {
	// Preprint year versus published year, no DOI on either side. Within
	// tolerance the records describe the same work.
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypeOpenAlex,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeOpenAlex, Title: "Deep residual learning for image recognition", Authors: []domain.Author{{Name: "Kaiming He"}}, Year: 2015, Confidence: 0.9},
				},
			},
		},
		{
			Source: domain.SourceTypeSemanticScholar,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeSemanticScholar, Title: "Deep residual learning for image recognition", Authors: []domain.Author{{Name: "Kaiming He"}}, Year: 2016, Confidence: 0.85},
				},
			},
		},
	}

	outcome := Merge(results, testMatcher())

	require.Len(t, outcome.References, 1)
	// First-seen year wins; the later record only adds its source.
	assert.Equal(t, 2015, outcome.References[0].Year)
	assert.Len(t, outcome.References[0].Sources, 2)
}

func TestMerge_DistinctDOIsStaySeparate(t *testing.T) {
	// Same title, different DOIs (e.g. a paper and its correction) are
	// different works regardless of title similarity.
	results := []refsources.SourceResult{
		{
			Source: domain.SourceTypeCrossref,
			Result: &refsources.FetchResult{
				References: []domain.RawReference{
					{Source: domain.SourceTypeCrossref, DOI: "10.1/a", Title: "On mice and men", Year: 2020},
					{Source: domain.SourceTypeCrossref, DOI: "10.1/b", Title: "On mice and men", Year: 2020},
				},
			},
		},
	}

	outcome := Merge(results, testMatcher())
	assert.Len(t, outcome.References, 2)
}

func TestMerge_AllSourcesFailed(t *testing.T) {
	results := []refsources.SourceResult{
		{Source: domain.SourceTypeCrossref, Error: errors.New("boom")},
		{Source: domain.SourceTypeOpenAlex, Error: errors.New("boom")},
	}

	outcome := Merge(results, testMatcher())
	assert.Empty(t, outcome.References)
	assert.Len(t, outcome.SourcesFailed, 2)
}
