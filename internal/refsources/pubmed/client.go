package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum references per fetch.
	DefaultMaxResults = 300

	// hydrateBatchSize is the number of referenced PMIDs hydrated per
	// efetch call. NCBI recommends batches of at most 200 IDs.
	hydrateBatchSize = 200

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	// With an API key, you can increase this to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum references returned per fetch.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the refsources.ReferenceSource interface for PubMed.
type Client struct {
	config     Config
	httpClient *refsources.HTTPClient
}

// Compile-time check that Client implements ReferenceSource.
var _ refsources.ReferenceSource = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := refsources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "Theke-CitationGraph/1.0",
	}

	return &Client{
		config:     cfg,
		httpClient: refsources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *refsources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the reference list of the paper described by the query.
//
// The flow is:
//  1. esearch.fcgi resolves a PMID when the query carries only a DOI or title
//  2. efetch.fcgi on the citing article returns its ReferenceList
//  3. referenced PMIDs are hydrated with a batched efetch for full metadata
func (c *Client) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	startTime := time.Now()

	pmid, err := c.resolvePMID(ctx, query)
	if err != nil {
		return nil, err
	}

	articles, err := c.efetch(ctx, []string{pmid})
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}
	if len(articles.Articles) == 0 {
		return nil, domain.NewNotFoundError("article", pmid)
	}

	refList := articles.Articles[0].PubmedData.ReferenceList
	if refList == nil || len(refList.References) == 0 {
		return &refsources.FetchResult{
			References:    []domain.RawReference{},
			Source:        domain.SourceTypePubMed,
			FetchDuration: time.Since(startTime),
		}, nil
	}

	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}
	refs := refList.References
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}

	references := make([]domain.RawReference, 0, len(refs))
	var citedPMIDs []string
	for _, ref := range refs {
		raw := referenceToRaw(ref)
		if raw.PubMedID != "" {
			citedPMIDs = append(citedPMIDs, raw.PubMedID)
		}
		references = append(references, raw)
	}

	// Hydrate PMID-bearing references so downstream matching has titles
	// and authors, not just identifiers.
	if err := c.hydrate(ctx, references, citedPMIDs); err != nil {
		return nil, err
	}

	return &refsources.FetchResult{
		References:    references,
		Source:        domain.SourceTypePubMed,
		FetchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// resolvePMID determines the PMID of the citing paper.
func (c *Client) resolvePMID(ctx context.Context, query refsources.Query) (string, error) {
	if query.PubMedID != "" {
		return strings.TrimSpace(query.PubMedID), nil
	}

	var term string
	switch {
	case query.DOI != "":
		term = query.DOI + "[DOI]"
	case query.Title != "":
		term = query.Title + "[Title]"
		if query.Year > 0 {
			term += " AND " + strconv.Itoa(query.Year) + "[PDAT]"
		}
	default:
		return "", fmt.Errorf("pubmed: %w", domain.ErrNoIdentifier)
	}

	result, err := c.esearch(ctx, term)
	if err != nil {
		return "", fmt.Errorf("esearch failed: %w", err)
	}
	if len(result.IDList.IDs) == 0 {
		return "", domain.NewNotFoundError("article", term)
	}

	return result.IDList.IDs[0], nil
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, term string) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("retmax", "1")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getXML executes a GET request and unmarshals the XML response.
func (c *Client) getXML(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}

	return nil
}

// hydrate fills in title, author, and year metadata for references that
// carry a PMID, using batched efetch calls.
func (c *Client) hydrate(ctx context.Context, references []domain.RawReference, pmids []string) error {
	if len(pmids) == 0 {
		return nil
	}

	byPMID := make(map[string]PubmedArticle, len(pmids))
	for start := 0; start < len(pmids); start += hydrateBatchSize {
		end := start + hydrateBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}

		articles, err := c.efetch(ctx, pmids[start:end])
		if err != nil {
			return fmt.Errorf("hydrating references: %w", err)
		}
		for _, article := range articles.Articles {
			byPMID[article.MedlineCitation.PMID.Value] = article
		}
	}

	for i := range references {
		article, ok := byPMID[references[i].PubMedID]
		if !ok {
			continue
		}
		applyArticle(&references[i], article)
	}

	return nil
}

// referenceToRaw converts an efetch Reference to a raw cited-work record.
// Identifier-bearing references are thinly populated here and filled in by
// hydration; citation-string-only references keep the raw text.
func referenceToRaw(ref Reference) domain.RawReference {
	raw := domain.RawReference{
		Source:  domain.SourceTypePubMed,
		RawText: strings.TrimSpace(ref.Citation),
	}

	if ref.ArticleIdList != nil {
		for _, aid := range ref.ArticleIdList.ArticleIds {
			switch aid.IdType {
			case "pubmed":
				raw.PubMedID = strings.TrimSpace(aid.Value)
			case "doi":
				raw.DOI = strings.ToLower(strings.TrimSpace(aid.Value))
			}
		}
	}

	switch {
	case raw.DOI != "":
		raw.Confidence = 0.95
	case raw.PubMedID != "":
		raw.Confidence = 0.9
	default:
		raw.Confidence = 0.6
	}

	return raw
}

// applyArticle copies metadata from a hydrated PubMed article onto a
// reference record, filling only what is missing.
func applyArticle(raw *domain.RawReference, article PubmedArticle) {
	citation := article.MedlineCitation

	if raw.Title == "" {
		raw.Title = citation.Article.ArticleTitle
	}
	if raw.DOI == "" {
		raw.DOI = strings.ToLower(extractDOI(citation.Article, article.PubmedData))
	}
	if raw.Year == 0 {
		raw.Year = extractYear(citation.Article)
	}
	if raw.Journal == "" {
		raw.Journal = citation.Article.Journal.Title
		if raw.Journal == "" {
			raw.Journal = citation.Article.Journal.ISOAbbreviation
		}
	}
	if len(raw.Authors) == 0 {
		raw.Authors = extractAuthors(citation.Article.AuthorList)
	}
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractYear extracts the publication year from the article.
// Uses ArticleDate if available, otherwise the journal issue PubDate.
func extractYear(article Article) int {
	for _, ad := range article.ArticleDate {
		if year, err := strconv.Atoi(ad.Year); err == nil && year > 0 {
			return year
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.Year != "" {
		if year, err := strconv.Atoi(pubDate.Year); err == nil {
			return year
		}
	}

	// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
	if pubDate.MedlineDate != "" {
		parts := strings.Fields(pubDate.MedlineDate)
		if len(parts) > 0 {
			yearStr := strings.Split(parts[0], "-")[0]
			if year, err := strconv.Atoi(yearStr); err == nil {
				return year
			}
		}
	}

	return 0
}

// extractAuthors converts PubMed authors to domain authors.
func extractAuthors(authorList *AuthorList) []domain.Author {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]domain.Author, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			nameParts := make([]string, 0, 2)
			if a.ForeName != "" {
				nameParts = append(nameParts, a.ForeName)
			}
			if a.LastName != "" {
				nameParts = append(nameParts, a.LastName)
			}
			name = strings.Join(nameParts, " ")
		}
		if name == "" {
			continue
		}

		var orcid string
		for _, id := range a.Identifiers {
			if strings.ToUpper(id.Source) == "ORCID" {
				orcid = id.Value
				break
			}
		}

		authors = append(authors, domain.Author{
			Name:  name,
			ORCID: orcid,
		})
	}

	return authors
}
