// Package config provides configuration management for the citation graph service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the citation graph service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Resolver contains identity matching and resolution thresholds.
	Resolver ResolverConfig `mapstructure:"resolver"`
	// Jobs contains background job manager settings.
	Jobs JobsConfig `mapstructure:"jobs"`
	// LLM contains LLM client settings for paper summaries.
	LLM LLMConfig `mapstructure:"llm"`
	// Kafka contains event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Sources contains reference source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// ResolverConfig holds identity matching and catalog resolution thresholds.
type ResolverConfig struct {
	// TitleSimilarity is the minimum token-set similarity for two titles to
	// be considered the same work when no DOI is available (0.0-1.0).
	TitleSimilarity float64 `mapstructure:"title_similarity"`
	// YearTolerance is the maximum publication year difference allowed for a
	// fuzzy match.
	YearTolerance int `mapstructure:"year_tolerance"`
	// SuggestionFloor is the minimum similarity for a near-miss catalog
	// candidate to mark a citation as suggested.
	SuggestionFloor float64 `mapstructure:"suggestion_floor"`
}

// JobsConfig holds background job manager settings.
type JobsConfig struct {
	// Workers is the number of concurrent job workers.
	Workers int `mapstructure:"workers"`
	// QueueSize is the capacity of the pending job queue.
	QueueSize int `mapstructure:"queue_size"`
	// Retention is how long terminal jobs are kept before cleanup.
	Retention time.Duration `mapstructure:"retention"`
	// CleanupInterval is how often the terminal-job cleanup runs.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LLMConfig holds LLM client configuration for paper summaries.
type LLMConfig struct {
	// Provider is the LLM provider (openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens is the maximum number of tokens in a summary response.
	MaxTokens int `mapstructure:"max_tokens"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from CITEGRAPH_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from CITEGRAPH_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether event publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish citation events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// SourcesConfig holds configuration for all reference source APIs.
type SourcesConfig struct {
	// Crossref contains Crossref API settings.
	Crossref SourceConfig `mapstructure:"crossref"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex SourceConfig `mapstructure:"openalex"`
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
	// PubMed contains PubMed E-utilities settings.
	PubMed SourceConfig `mapstructure:"pubmed"`
	// ArXiv contains arXiv API settings.
	ArXiv SourceConfig `mapstructure:"arxiv"`
	// PDFText contains local PDF text extraction settings.
	PDFText PDFTextConfig `mapstructure:"pdf_text"`
	// FetchTimeout bounds one fan-out fetch across all sources.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// MailTo is the contact email sent to polite-pool APIs (Crossref, OpenAlex).
	MailTo string `mapstructure:"mail_to"`
}

// SourceConfig holds configuration for a single reference source API.
type SourceConfig struct {
	// Enabled controls whether this source is queried.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. CITEGRAPH_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum references per query.
	MaxResults int `mapstructure:"max_results"`
}

// PDFTextConfig holds local PDF text extraction settings.
type PDFTextConfig struct {
	// Enabled controls whether inline extraction from local PDFs is available.
	Enabled bool `mapstructure:"enabled"`
	// MaxPages caps how many pages are scanned per document.
	MaxPages int `mapstructure:"max_pages"`
	// MinConfidence drops extracted references below this confidence.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CITEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/citation-graph-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv("CITEGRAPH_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv("CITEGRAPH_LLM_ANTHROPIC_API_KEY")

	cfg.Sources.Crossref.APIKey = os.Getenv("CITEGRAPH_SOURCES_CROSSREF_API_KEY")
	cfg.Sources.OpenAlex.APIKey = os.Getenv("CITEGRAPH_SOURCES_OPENALEX_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("CITEGRAPH_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Sources.PubMed.APIKey = os.Getenv("CITEGRAPH_SOURCES_PUBMED_API_KEY")
	cfg.Sources.ArXiv.APIKey = os.Getenv("CITEGRAPH_SOURCES_ARXIV_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citegraph")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "citation_graph_service")
	// Default to "require" for production security. Use CITEGRAPH_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Resolver defaults
	v.SetDefault("resolver.title_similarity", 0.85)
	v.SetDefault("resolver.year_tolerance", 1)
	v.SetDefault("resolver.suggestion_floor", 0.70)

	// Jobs defaults
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.retention", "168h")
	v.SetDefault("jobs.cleanup_interval", "1h")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.model", "gpt-4-turbo")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.citation_graph_service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Sources defaults - Crossref
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("sources.crossref.enabled", true)
	v.SetDefault("sources.crossref.base_url", "https://api.crossref.org")
	v.SetDefault("sources.crossref.timeout", "30s")
	v.SetDefault("sources.crossref.rate_limit", 10.0)
	v.SetDefault("sources.crossref.max_results", 200)

	// Sources defaults - OpenAlex
	v.SetDefault("sources.openalex.enabled", true)
	v.SetDefault("sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("sources.openalex.timeout", "30s")
	v.SetDefault("sources.openalex.rate_limit", 10.0)
	v.SetDefault("sources.openalex.max_results", 200)

	// Sources defaults - Semantic Scholar
	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.rate_limit", 10.0)
	v.SetDefault("sources.semantic_scholar.max_results", 100)

	// Sources defaults - PubMed
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("sources.pubmed.max_results", 100)

	// Sources defaults - arXiv
	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("sources.arxiv.timeout", "30s")
	v.SetDefault("sources.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("sources.arxiv.max_results", 100)

	// Sources defaults - local PDF text extraction
	v.SetDefault("sources.pdf_text.enabled", true)
	v.SetDefault("sources.pdf_text.max_pages", 100)
	v.SetDefault("sources.pdf_text.min_confidence", 0.5)

	v.SetDefault("sources.fetch_timeout", "60s")
	v.SetDefault("sources.mail_to", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate resolver thresholds
	if c.Resolver.TitleSimilarity < 0 || c.Resolver.TitleSimilarity > 1 {
		return fmt.Errorf("resolver title_similarity must be between 0 and 1")
	}
	if c.Resolver.SuggestionFloor < 0 || c.Resolver.SuggestionFloor > c.Resolver.TitleSimilarity {
		return fmt.Errorf("resolver suggestion_floor must be between 0 and title_similarity")
	}
	if c.Resolver.YearTolerance < 0 {
		return fmt.Errorf("resolver year_tolerance must be non-negative")
	}

	// Validate jobs config
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs workers must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs queue_size must be positive")
	}

	// Validate that the configured LLM provider has its required API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires CITEGRAPH_LLM_OPENAI_API_KEY to be set", c.LLM.Provider)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires CITEGRAPH_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider)
		}
	case "none", "":
		// Summaries disabled; summary jobs will fail fast with a config error.
	default:
		return fmt.Errorf("unknown LLM provider: %s", c.LLM.Provider)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	return nil
}
