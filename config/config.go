package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the centrist pipeline.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Sources   []SourceConfig  `mapstructure:"sources"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// PipelineConfig contains the acquisition scheduling knobs.
type PipelineConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	InterBatchDelay time.Duration `mapstructure:"inter_batch_delay"`
	MaxArticleChars int           `mapstructure:"max_article_chars"`
}

// Normalize applies defaults for unset pipeline values.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.BatchSize <= 0 {
		p.BatchSize = 2
	}
	if p.TaskTimeout <= 0 {
		p.TaskTimeout = 300 * time.Second
	}
	if p.InterBatchDelay < 0 {
		p.InterBatchDelay = 0
	}
	if p.InterBatchDelay == 0 {
		p.InterBatchDelay = 5 * time.Second
	}
	if p.MaxArticleChars <= 0 {
		p.MaxArticleChars = 5000
	}
	return p
}

// SourceConfig names one outlet and the domain used to scope discovery.
type SourceConfig struct {
	Name   string `mapstructure:"name"`
	Domain string `mapstructure:"domain"`
}

// LLMConfig contains the synthesis provider configuration.
type LLMConfig struct {
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Timeout time.Duration       `mapstructure:"timeout"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Routing LLMRoutingConfig    `mapstructure:"routing"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for different tasks
type LLMRoutingConfig struct {
	Synthesis string `mapstructure:"synthesis"`
	Fallback  string `mapstructure:"fallback"`
}

// SynthesisModel resolves the model key used for the synthesis call.
func (r LLMRoutingConfig) SynthesisModel() string {
	if r.Synthesis != "" {
		return r.Synthesis
	}
	return r.Fallback
}

// SearchConfig contains web search settings used for article discovery.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper or brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	RecencyDays  int           `mapstructure:"recency_days"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Normalize applies defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	if s.Provider == "" {
		s.Provider = "serper"
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 3
	}
	if s.RecencyDays <= 0 {
		s.RecencyDays = 7
	}
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
	return s
}

// FetchConfig contains page rendering settings.
type FetchConfig struct {
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	MaxPageChars  int           `mapstructure:"max_page_chars"`
}

// Normalize applies defaults for unset fetch values.
func (f FetchConfig) Normalize() FetchConfig {
	if f.RenderTimeout <= 0 {
		f.RenderTimeout = 15 * time.Second
	}
	if f.MaxPageChars <= 0 {
		f.MaxPageChars = 20000
	}
	return f
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	File     FileConfig     `mapstructure:"file"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// FileConfig contains file sink settings
type FileConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Enabled reports whether a Postgres run store is configured at all.
func (p PostgresConfig) Enabled() bool {
	return p.URL != "" || p.Host != "" || p.DBName != ""
}

// DSN builds the connection string, filling conventional defaults.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" && strings.TrimSpace(p.DBName) == "" {
		return nil // postgres store disabled
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether the Redis summary cache is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// DefaultSources is the outlet list used when the config names none:
// outlets across the political spectrum plus international wires.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "Fox News", Domain: "foxnews.com"},
		{Name: "CNN", Domain: "cnn.com"},
		{Name: "Reuters", Domain: "reuters.com"},
		{Name: "BBC", Domain: "bbc.com"},
		{Name: "Al Jazeera", Domain: "aljazeera.com"},
		{Name: "Associated Press", Domain: "apnews.com"},
	}
}

// LoadConfig loads config from file. An empty path searches the usual
// locations; env vars with the CENTRIST_ prefix override file values.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.routing.fallback", "gpt-4o")
	viper.SetDefault("storage.file.output_dir", ".")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CENTRIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env cover a one-shot run.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Pipeline = cfg.Pipeline.Normalize()
	cfg.Search = cfg.Search.Normalize()
	cfg.Fetch = cfg.Fetch.Normalize()
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
