package crossref

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
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// The Crossref polite pool (with mailto) tolerates higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum references per request.
	DefaultMaxResults = 200
)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	// Defaults to https://api.crossref.org
	BaseURL string

	// MailTo is the contact email for the polite pool.
	// See: https://api.crossref.org/swagger-ui/index.html#/Works
	MailTo string

	// Timeout is the request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to 10.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed. Defaults to 10.
	BurstSize int

	// MaxResults caps the number of references returned.
	MaxResults int

	// Enabled indicates whether this source is enabled.
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

// Client implements the refsources.ReferenceSource interface for Crossref.
type Client struct {
	config     Config
	httpClient *refsources.HTTPClient
}

// Ensure Client implements ReferenceSource interface.
var _ refsources.ReferenceSource = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
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

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *refsources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves the deposited reference list for the queried work.
// When the query has no DOI, the work is first resolved through a
// bibliographic search on title and first author.
func (c *Client) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	startTime := time.Now()

	doi := query.DOI
	if doi == "" {
		if query.Title == "" {
			return nil, fmt.Errorf("crossref: %w", domain.ErrNoIdentifier)
		}
		resolved, err := c.resolveDOI(ctx, query)
		if err != nil {
			return nil, err
		}
		doi = resolved
	}

	work, err := c.getWork(ctx, doi)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.RawReference, 0, len(work.Reference))
	for _, ref := range work.Reference {
		raw := referenceToRaw(ref)
		if !raw.HasIdentity() && raw.RawText == "" {
			continue
		}
		refs = append(refs, raw)
		if len(refs) >= c.maxResults(query) {
			break
		}
	}

	return &refsources.FetchResult{
		References:    refs,
		Source:        domain.SourceTypeCrossref,
		FetchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "Crossref"
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

func (c *Client) maxResults(query refsources.Query) int {
	if query.MaxResults > 0 && query.MaxResults < c.config.MaxResults {
		return query.MaxResults
	}
	return c.config.MaxResults
}

// getWork fetches a single work by DOI.
func (c *Client) getWork(ctx context.Context, doi string) (*Work, error) {
	workURL, err := c.buildWorkURL(doi)
	if err != nil {
		return nil, fmt.Errorf("building work URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, workURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("work", doi)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("Crossref", resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var workResp WorkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&workResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &workResp.Message, nil
}

// resolveDOI resolves a work's DOI through a bibliographic search.
func (c *Client) resolveDOI(ctx context.Context, query refsources.Query) (string, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return "", fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", domain.NewExternalAPIError("Crossref", resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(searchResp.Message.Items) == 0 || searchResp.Message.Items[0].DOI == "" {
		return "", domain.NewNotFoundError("work", query.Title)
	}

	return searchResp.Message.Items[0].DOI, nil
}

// buildWorkURL constructs the URL for fetching a work by DOI.
func (c *Client) buildWorkURL(doi string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	// Crossref expects the DOI as-is in the path and handles decoding
	// on their side.
	baseURL.Path = "/works/" + doi

	if c.config.MailTo != "" {
		q := url.Values{}
		q.Set("mailto", c.config.MailTo)
		baseURL.RawQuery = q.Encode()
	}

	return baseURL.String(), nil
}

// buildSearchURL constructs the bibliographic search URL.
func (c *Client) buildSearchURL(query refsources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"

	q := url.Values{}
	bib := query.Title
	if surname := domain.FirstAuthorSurname(query.Authors); surname != "" {
		bib += " " + surname
	}
	if query.Year > 0 {
		bib += " " + strconv.Itoa(query.Year)
	}
	q.Set("query.bibliographic", bib)
	q.Set("rows", "1")
	if c.config.MailTo != "" {
		q.Set("mailto", c.config.MailTo)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// referenceToRaw converts a Crossref reference entry to a domain RawReference.
func referenceToRaw(ref Reference) domain.RawReference {
	title := ref.ArticleTitle
	if title == "" {
		title = ref.VolumeTitle
	}

	year := 0
	if ref.Year != "" {
		if y, err := strconv.Atoi(strings.TrimSpace(ref.Year)); err == nil {
			year = y
		}
	}

	var authors []domain.Author
	if ref.Author != "" {
		authors = []domain.Author{{Name: ref.Author}}
	}

	confidence := 0.7
	if ref.DOI != "" {
		confidence = 0.95
	} else if title != "" {
		confidence = 0.8
	}

	return domain.RawReference{
		Source:     domain.SourceTypeCrossref,
		DOI:        strings.ToLower(strings.TrimSpace(ref.DOI)),
		Title:      title,
		Authors:    authors,
		Year:       year,
		Journal:    ref.JournalTitle,
		Confidence: confidence,
		RawText:    ref.Unstructured,
	}
}
