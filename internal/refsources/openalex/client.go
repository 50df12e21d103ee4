package openalex

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum references per fetch.
	DefaultMaxResults = 200

	// batchSize is the number of OpenAlex IDs resolved per list request.
	// OpenAlex rejects filter values with more than 50 piped IDs.
	batchSize = 50

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// MailTo is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	MailTo string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec (polite pool with email gets higher).
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// MaxResults is the maximum references returned per fetch.
	// Defaults to 200.
	MaxResults int

	// Enabled indicates whether this source is enabled for fetches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
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

// Client implements the refsources.ReferenceSource interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *refsources.HTTPClient
}

// Ensure Client implements ReferenceSource interface.
var _ refsources.ReferenceSource = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := refsources.NewHTTPClient(refsources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "Theke-CitationGraph/1.0 (mailto:" + cfg.MailTo + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
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
// OpenAlex stores references as a referenced_works list of OpenAlex IDs on
// the citing work, so the fetch is two-phase: resolve the citing work, then
// hydrate its referenced IDs in batched list requests.
func (c *Client) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	startTime := time.Now()

	work, err := c.resolveWork(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := work.ReferencedWorks
	maxResults := query.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}

	references := make([]domain.RawReference, 0, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		works, err := c.listWorksByID(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for i := range works {
			references = append(references, c.workToRaw(&works[i]))
		}
	}

	return &refsources.FetchResult{
		References:    references,
		Source:        domain.SourceTypeOpenAlex,
		FetchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "OpenAlex"
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// resolveWork locates the citing work by identifier, falling back to a
// title search when the query carries no identifier OpenAlex indexes.
func (c *Client) resolveWork(ctx context.Context, query refsources.Query) (*Work, error) {
	switch {
	case query.DOI != "":
		return c.getWork(ctx, doiPrefix+strings.ToLower(strings.TrimSpace(query.DOI)))
	case query.PubMedID != "":
		return c.getWork(ctx, "pmid:"+query.PubMedID)
	case query.Title != "":
		return c.searchWork(ctx, query)
	default:
		return nil, fmt.Errorf("openalex: %w", domain.ErrNoIdentifier)
	}
}

// getWork fetches a single work by ID from /works/{id}.
func (c *Client) getWork(ctx context.Context, id string) (*Work, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	// OpenAlex expects the DOI as-is in the path and handles URL decoding
	// on their side.
	baseURL.Path = "/works/" + id
	if c.config.MailTo != "" {
		q := url.Values{}
		q.Set("mailto", c.config.MailTo)
		baseURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("work", id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("OpenAlex", resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var work Work
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &work, nil
}

// searchWork resolves the citing work by title search, taking the top hit.
func (c *Client) searchWork(ctx context.Context, query refsources.Query) (*Work, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"
	q := url.Values{}
	q.Set("filter", "title.search:"+query.Title)
	q.Set("per-page", "1")
	if c.config.MailTo != "" {
		q.Set("mailto", c.config.MailTo)
	}
	baseURL.RawQuery = q.Encode()

	listResp, err := c.list(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}
	if len(listResp.Results) == 0 {
		return nil, domain.NewNotFoundError("work", query.Title)
	}

	return &listResp.Results[0], nil
}

// listWorksByID hydrates a batch of OpenAlex IDs via the works list endpoint.
func (c *Client) listWorksByID(ctx context.Context, ids []string) ([]Work, error) {
	shortIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		shortIDs = append(shortIDs, strings.TrimPrefix(id, openAlexIDPrefix))
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"
	q := url.Values{}
	q.Set("filter", "openalex_id:"+strings.Join(shortIDs, "|"))
	q.Set("per-page", strconv.Itoa(batchSize))
	if c.config.MailTo != "" {
		q.Set("mailto", c.config.MailTo)
	}
	baseURL.RawQuery = q.Encode()

	listResp, err := c.list(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}

	return listResp.Results, nil
}

// list executes a works list request and decodes the response.
func (c *Client) list(ctx context.Context, listURL string) (*ListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("OpenAlex", resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var listResp ListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &listResp, nil
}

// workToRaw converts an OpenAlex Work to a raw cited-work record.
func (c *Client) workToRaw(work *Work) domain.RawReference {
	doi := normalizeDOI(work.DOI)
	if doi == "" && work.IDs.DOI != "" {
		doi = normalizeDOI(work.IDs.DOI)
	}

	// Prefer display_name as it is usually cleaner.
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		authors = append(authors, domain.Author{
			Name:  authorship.Author.DisplayName,
			ORCID: normalizeORCID(authorship.Author.Orcid),
		})
	}

	var journal string
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		journal = work.PrimaryLocation.Source.DisplayName
	}

	// OpenAlex records are hydrated catalog entries, not parsed strings,
	// so confidence only distinguishes DOI-bearing records.
	confidence := 0.85
	if doi != "" {
		confidence = 0.95
	}

	return domain.RawReference{
		Source:     domain.SourceTypeOpenAlex,
		DOI:        doi,
		Title:      title,
		Authors:    authors,
		Year:       work.PublicationYear,
		Journal:    journal,
		PubMedID:   normalizePMID(work.IDs.PMID),
		Confidence: confidence,
	}
}

// normalizeDOI strips the https://doi.org/ prefix from DOIs and returns lowercase.
func normalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// normalizePMID strips any URL prefixes from PubMed IDs.
func normalizePMID(pmid string) string {
	if pmid == "" {
		return ""
	}
	pmid = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	return strings.TrimSpace(strings.TrimSuffix(pmid, "/"))
}

// normalizeORCID strips any URL prefixes from ORCID identifiers.
func normalizeORCID(orcid string) string {
	if orcid == "" {
		return ""
	}
	orcid = strings.TrimPrefix(orcid, "https://orcid.org/")
	return strings.TrimSpace(orcid)
}
