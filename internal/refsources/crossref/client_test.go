package crossref

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
)

// newTestClient creates a client pointed at a test server.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{
		BaseURL:   server.URL,
		RateLimit: 1000,
		BurstSize: 1000,
		Enabled:   true,
	})
	return client, server
}

// sampleWorkResponse builds a work response with a reference list.
func sampleWorkResponse(doi string, refs []Reference) WorkResponse {
	return WorkResponse{
		Status: "ok",
		Message: Work{
			DOI:            doi,
			Title:          []string{"Deep Residual Learning"},
			ReferenceCount: len(refs),
			Reference:      refs,
		},
	}
}

func TestClient_Fetch_ByDOI(t *testing.T) {
	refs := []Reference{
		{
			Key:          "ref1",
			DOI:          "10.1038/NATURE14539",
			ArticleTitle: "Deep learning",
			Author:       "LeCun",
			Year:         "2015",
			JournalTitle: "Nature",
		},
		{
			Key:          "ref2",
			Unstructured: "Smith, J. Some unparsed reference. 2001.",
		},
		{
			// No identity and no raw text: must be dropped.
			Key: "ref3",
		},
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/10.1109/cvpr.2016.90", r.URL.Path)
		json.NewEncoder(w).Encode(sampleWorkResponse("10.1109/cvpr.2016.90", refs))
	}))

	result, err := client.Fetch(context.Background(), refsources.Query{DOI: "10.1109/cvpr.2016.90"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, domain.SourceTypeCrossref, result.Source)
	require.Len(t, result.References, 2)

	first := result.References[0]
	assert.Equal(t, "10.1038/nature14539", first.DOI) // lowercased
	assert.Equal(t, "Deep learning", first.Title)
	assert.Equal(t, 2015, first.Year)
	assert.Equal(t, "Nature", first.Journal)
	require.Len(t, first.Authors, 1)
	assert.Equal(t, "LeCun", first.Authors[0].Name)
	assert.Equal(t, 0.95, first.Confidence)

	second := result.References[1]
	assert.Empty(t, second.DOI)
	assert.Contains(t, second.RawText, "unparsed")
}

func TestClient_Fetch_ResolvesDOIFromTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/works", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query.bibliographic"), "Attention Is All You Need")
		assert.Contains(t, r.URL.Query().Get("query.bibliographic"), "Vaswani")
		resp := SearchResponse{Status: "ok"}
		resp.Message.TotalResults = 1
		resp.Message.Items = []Work{{DOI: "10.5555/3295222"}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/works/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/10.5555/3295222", r.URL.Path)
		json.NewEncoder(w).Encode(sampleWorkResponse("10.5555/3295222", []Reference{
			{DOI: "10.1162/neco.1997.9.8.1735", ArticleTitle: "Long short-term memory", Year: "1997"},
		}))
	})

	client, _ := newTestClient(t, mux)

	result, err := client.Fetch(context.Background(), refsources.Query{
		Title:   "Attention Is All You Need",
		Authors: []domain.Author{{Name: "Ashish Vaswani"}},
		Year:    2017,
	})
	require.NoError(t, err)
	require.Len(t, result.References, 1)
	assert.Equal(t, "10.1162/neco.1997.9.8.1735", result.References[0].DOI)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Fetch(context.Background(), refsources.Query{DOI: "10.1/missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Fetch_NoIdentifier(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.Fetch(context.Background(), refsources.Query{})
	assert.ErrorIs(t, err, domain.ErrNoIdentifier)
}

func TestClient_Fetch_MaxResults(t *testing.T) {
	refs := make([]Reference, 10)
	for i := range refs {
		refs[i] = Reference{DOI: "10.1000/ref", ArticleTitle: "ref"}
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleWorkResponse("10.1/x", refs))
	}))

	result, err := client.Fetch(context.Background(), refsources.Query{DOI: "10.1/x", MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, result.References, 3)
}

func TestClient_Metadata(t *testing.T) {
	client := New(Config{Enabled: true})

	assert.Equal(t, domain.SourceTypeCrossref, client.SourceType())
	assert.Equal(t, "Crossref", client.Name())
	assert.True(t, client.IsEnabled())

	disabled := New(Config{})
	assert.False(t, disabled.IsEnabled())
}

func TestDateParts_Year(t *testing.T) {
	assert.Equal(t, 2016, DateParts{DateParts: [][]int{{2016, 6, 27}}}.Year())
	assert.Equal(t, 0, DateParts{}.Year())
}
