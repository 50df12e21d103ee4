package semanticscholar

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
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests (100 req/5 min).
	// With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of references per fetch.
	DefaultMaxResults = 500

	// pageLimit is the number of references requested per page.
	// The Graph API caps the references endpoint at 1000 per page.
	pageLimit = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// referenceFields is the list of cited-paper fields to request.
	referenceFields = "paperId,externalIds,title,year,venue,journal,authors"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResults is the maximum number of references to return per fetch.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements the refsources.ReferenceSource interface for Semantic Scholar.
type Client struct {
	httpClient *refsources.HTTPClient
	config     Config
}

// Compile-time check that Client implements refsources.ReferenceSource.
var _ refsources.ReferenceSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *refsources.HTTPClient) *Client {
	// Apply defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	// Create HTTP client if not provided
	if httpClient == nil {
		httpClient = refsources.NewHTTPClient(refsources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Fetch retrieves the reference list of the paper described by the query.
// The Graph API accepts DOI, arXiv, and PubMed identifiers directly in the
// paper path, so no separate resolution step is needed.
func (c *Client) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	start := time.Now()

	paperID, err := paperIDFromQuery(query)
	if err != nil {
		return nil, err
	}

	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	references := make([]domain.RawReference, 0, pageLimit)
	offset := 0
	for {
		page, err := c.getReferencesPage(ctx, paperID, offset)
		if err != nil {
			return nil, err
		}

		for _, entry := range page.Data {
			raw, ok := entryToRaw(entry)
			if !ok {
				continue
			}
			references = append(references, raw)
			if len(references) >= maxResults {
				break
			}
		}

		if len(references) >= maxResults || page.Next == 0 {
			break
		}
		offset = page.Next
	}

	return &refsources.FetchResult{
		References:    references,
		Source:        domain.SourceTypeSemanticScholar,
		FetchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// getReferencesPage fetches one page of the paper's reference list.
func (c *Client) getReferencesPage(ctx context.Context, paperID string, offset int) (*ReferencesResponse, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	refsURL := baseURL.JoinPath("paper", paperID, "references")
	q := refsURL.Query()
	q.Set("fields", referenceFields)
	q.Set("limit", strconv.Itoa(pageLimit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	refsURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", paperID)
	}
	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var refsResp ReferencesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&refsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &refsResp, nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	// Try to parse as JSON error
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// paperIDFromQuery maps the query's identifiers to a Graph API paper ID.
func paperIDFromQuery(query refsources.Query) (string, error) {
	switch {
	case query.DOI != "":
		return "DOI:" + strings.ToLower(strings.TrimSpace(query.DOI)), nil
	case query.ArXivID != "":
		return "ARXIV:" + strings.TrimSpace(query.ArXivID), nil
	case query.PubMedID != "":
		return "PMID:" + strings.TrimSpace(query.PubMedID), nil
	default:
		return "", fmt.Errorf("semantic scholar: %w", domain.ErrNoIdentifier)
	}
}

// entryToRaw converts a reference entry to a raw cited-work record.
// Returns false for entries carrying neither an identity nor a title.
func entryToRaw(entry ReferenceEntry) (domain.RawReference, bool) {
	paper := entry.CitedPaper

	raw := domain.RawReference{
		Source: domain.SourceTypeSemanticScholar,
		Title:  paper.Title,
		Year:   paper.Year,
	}

	if paper.ExternalIDs != nil {
		raw.DOI = strings.ToLower(strings.TrimSpace(paper.ExternalIDs.DOI))
		raw.ArXivID = paper.ExternalIDs.ArXiv
		raw.PubMedID = paper.ExternalIDs.PubMed
	}

	if paper.Journal != nil && paper.Journal.Name != "" {
		raw.Journal = paper.Journal.Name
	} else {
		raw.Journal = paper.Venue
	}

	raw.Authors = make([]domain.Author, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		raw.Authors = append(raw.Authors, domain.Author{Name: a.Name})
	}

	// Unmatched references come back with a null paperId and often nothing
	// but a title fragment.
	switch {
	case raw.DOI != "":
		raw.Confidence = 0.95
	case paper.PaperID != "":
		raw.Confidence = 0.85
	default:
		raw.Confidence = 0.6
	}

	if raw.DOI == "" && raw.ArXivID == "" && raw.PubMedID == "" && raw.Title == "" {
		return domain.RawReference{}, false
	}

	return raw, true
}
