package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/theke/citation-graph-service/internal/domain"
	"github.com/theke/citation-graph-service/internal/refsources"
	"github.com/theke/citation-graph-service/internal/refsources/semanticscholar"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second),
	// per arXiv's terms of use.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the full entry URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// GraphBaseURL is the Semantic Scholar Graph API base URL used for
	// reference lookups. Defaults to the public Graph API.
	GraphBaseURL string

	// GraphAPIKey is the optional Semantic Scholar API key.
	GraphAPIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second against arXiv.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum references to return per fetch.
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
}

// Client implements the refsources.ReferenceSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *refsources.HTTPClient
	graph      refsources.ReferenceSource
}

// Ensure Client implements ReferenceSource interface.
var _ refsources.ReferenceSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := refsources.NewHTTPClient(refsources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "Theke-CitationGraph/1.0",
	})

	graph := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    cfg.GraphBaseURL,
		APIKey:     cfg.GraphAPIKey,
		Timeout:    cfg.Timeout,
		MaxResults: cfg.MaxResults,
		Enabled:    true,
	}, nil)

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		graph:      graph,
	}
}

// NewWithClients creates a new arXiv client with a custom HTTP client and
// reference backend. This is useful for testing with mock servers.
func NewWithClients(cfg Config, httpClient *refsources.HTTPClient, graph refsources.ReferenceSource) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		graph:      graph,
	}
}

// Fetch retrieves the reference list of the paper described by the query.
// The Atom API resolves the paper when the query lacks an arXiv ID, then
// the Graph API backend supplies the reference list.
func (c *Client) Fetch(ctx context.Context, query refsources.Query) (*refsources.FetchResult, error) {
	startTime := time.Now()

	arxivID := strings.TrimSpace(query.ArXivID)
	doi := strings.TrimSpace(query.DOI)
	if arxivID == "" && doi == "" {
		entry, err := c.resolveEntry(ctx, query)
		if err != nil {
			return nil, err
		}
		arxivID = extractArXivID(entry.ID)
		if doi == "" {
			doi = strings.TrimSpace(entry.DOI)
		}
	}
	if arxivID == "" && doi == "" {
		return nil, fmt.Errorf("arxiv: %w", domain.ErrNoIdentifier)
	}

	graphResult, err := c.graph.Fetch(ctx, refsources.Query{
		DOI:        doi,
		ArXivID:    arxivID,
		MaxResults: query.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("graph reference lookup: %w", err)
	}

	// Reattribute so callers see which configured source produced the data.
	references := make([]domain.RawReference, len(graphResult.References))
	copy(references, graphResult.References)
	for i := range references {
		references[i].Source = domain.SourceTypeArXiv
	}

	return &refsources.FetchResult{
		References:    references,
		Source:        domain.SourceTypeArXiv,
		FetchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// resolveEntry locates the paper's Atom entry by DOI-less query fields.
// arXiv has no DOI lookup, so resolution goes through a title search.
func (c *Client) resolveEntry(ctx context.Context, query refsources.Query) (*Entry, error) {
	if query.Title == "" {
		return nil, fmt.Errorf("arxiv: %w", domain.ErrNoIdentifier)
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"
	q := url.Values{}
	q.Set("search_query", `ti:"`+query.Title+`"`)
	q.Set("max_results", "1")
	baseURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
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
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(feed.Entries) == 0 {
		return nil, domain.NewNotFoundError("paper", query.Title)
	}

	return &feed.Entries[0], nil
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}
