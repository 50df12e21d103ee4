package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		BaseURL:   server.URL,
		RateLimit: 1000,
		BurstSize: 1000,
		Enabled:   true,
	})
}

const citingArticleXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>31452104</PMID>
      <Article>
        <Journal><Title>Nature</Title></Journal>
        <ArticleTitle>The citing paper</ArticleTitle>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">31452104</ArticleId>
      </ArticleIdList>
      <ReferenceList>
        <Reference>
          <Citation>Hinton G. Deep belief nets. Neural Comput. 2006.</Citation>
          <ArticleIdList>
            <ArticleId IdType="pubmed">16764513</ArticleId>
            <ArticleId IdType="doi">10.1162/NECO.2006.18.7.1527</ArticleId>
          </ArticleIdList>
        </Reference>
        <Reference>
          <Citation>Anonymous. An unindexed technical report. 1999.</Citation>
        </Reference>
      </ReferenceList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

const citedArticleXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>16764513</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2006</Year><Month>Jul</Month></PubDate></JournalIssue>
          <Title>Neural Computation</Title>
        </Journal>
        <ArticleTitle>A fast learning algorithm for deep belief nets</ArticleTitle>
        <AuthorList>
          <Author><LastName>Hinton</LastName><ForeName>Geoffrey E</ForeName></Author>
          <Author ValidYN="N"><LastName>Bogus</LastName><ForeName>Entry</ForeName></Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList><ArticleId IdType="pubmed">16764513</ArticleId></ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func TestClient_Fetch_ByPMID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/efetch.fcgi", r.URL.Path)
		ids := r.URL.Query().Get("id")
		switch ids {
		case "31452104":
			fmt.Fprint(w, citingArticleXML)
		case "16764513":
			fmt.Fprint(w, citedArticleXML)
		default:
			t.Fatalf("unexpected efetch ids: %s", ids)
		}
	}))

	result, err := client.Fetch(context.Background(), refsources.Query{PubMedID: "31452104"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, domain.SourceTypePubMed, result.Source)
	require.Len(t, result.References, 2)

	first := result.References[0]
	assert.Equal(t, "16764513", first.PubMedID)
	assert.Equal(t, "10.1162/neco.2006.18.7.1527", first.DOI)
	assert.Equal(t, "A fast learning algorithm for deep belief nets", first.Title)
	assert.Equal(t, 2006, first.Year)
	assert.Equal(t, "Neural Computation", first.Journal)
	require.Len(t, first.Authors, 1)
	assert.Equal(t, "Geoffrey E Hinton", first.Authors[0].Name)
	assert.Equal(t, 0.95, first.Confidence)
	assert.Contains(t, first.RawText, "Deep belief nets")

	second := result.References[1]
	assert.Empty(t, second.PubMedID)
	assert.Empty(t, second.Title)
	assert.Equal(t, 0.6, second.Confidence)
	assert.Contains(t, second.RawText, "unindexed technical report")
}

func TestClient_Fetch_ResolvesPMIDFromDOI(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "10.1038/nature14539[DOI]", r.URL.Query().Get("term"))
			fmt.Fprint(w, `<?xml version="1.0"?>
<eSearchResult><Count>1</Count><IdList><Id>31452104</Id></IdList></eSearchResult>`)
		case "/efetch.fcgi":
			if r.URL.Query().Get("id") == "31452104" {
				fmt.Fprint(w, citingArticleXML)
			} else {
				fmt.Fprint(w, citedArticleXML)
			}
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))

	result, err := client.Fetch(context.Background(), refsources.Query{DOI: "10.1038/nature14539"})
	require.NoError(t, err)
	assert.Len(t, result.References, 2)
}

func TestClient_Fetch_SearchMiss(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<eSearchResult><Count>0</Count><IdList></IdList></eSearchResult>`)
	}))

	_, err := client.Fetch(context.Background(), refsources.Query{DOI: "10.1/missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Fetch_NoIdentifier(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.Fetch(context.Background(), refsources.Query{})
	assert.ErrorIs(t, err, domain.ErrNoIdentifier)
}

func TestClient_Fetch_NoReferenceList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345</PMID>
      <Article><Journal/><ArticleTitle>No references here</ArticleTitle></Article>
    </MedlineCitation>
    <PubmedData><ArticleIdList/></PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`)
	}))

	result, err := client.Fetch(context.Background(), refsources.Query{PubMedID: "12345"})
	require.NoError(t, err)
	assert.Empty(t, result.References)
}

func TestClient_Fetch_APIKeyParam(t *testing.T) {
	var sawKey bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") == "secret" {
			sawKey = true
		}
		fmt.Fprint(w, citingArticleXML)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:   server.URL,
		APIKey:    "secret",
		RateLimit: 1000,
		BurstSize: 1000,
		Enabled:   true,
	})

	_, err := client.Fetch(context.Background(), refsources.Query{PubMedID: "31452104"})
	require.NoError(t, err)
	assert.True(t, sawKey)
}

func TestExtractYear(t *testing.T) {
	tests := []struct {
		name     string
		article  Article
		expected int
	}{
		{
			name: "article date",
			article: Article{
				ArticleDate: []ArticleDate{{DateType: "Electronic", Year: "2021"}},
			},
			expected: 2021,
		},
		{
			name: "pub date year",
			article: Article{
				Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{Year: "2006", Month: "Jul"}}},
			},
			expected: 2006,
		},
		{
			name: "medline date range",
			article: Article{
				Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{MedlineDate: "2020 Jan-Feb"}}},
			},
			expected: 2020,
		},
		{
			name:     "no date",
			article:  Article{},
			expected: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractYear(tt.article))
		})
	}
}

func TestClient_Metadata(t *testing.T) {
	client := New(Config{Enabled: true})

	assert.Equal(t, domain.SourceTypePubMed, client.SourceType())
	assert.Equal(t, "PubMed", client.Name())
	assert.True(t, client.IsEnabled())
}
