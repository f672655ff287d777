// Package config loads the server configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	BaseURL      string        `yaml:"base_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	SearchLimit  int           `yaml:"search_limit"`
	RecentLimit  int           `yaml:"recent_limit"`
	SimilarLimit int           `yaml:"similar_limit"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig controls vector index snapshots. An empty Dir keeps indexes
// in memory only.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

type EmbeddingConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Dimensions    int           `yaml:"dimensions"`
	BatchSize     int           `yaml:"batch_size"`
	FailurePolicy string        `yaml:"failure_policy"`
	MaxRetries    int           `yaml:"max_retries"`
	MinBackoff    time.Duration `yaml:"min_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Enabled reports whether an embedding service is configured.
func (e EmbeddingConfig) Enabled() bool { return e.APIKey != "" }

// TokenConfig maps one bearer token to the identity it authenticates.
type TokenConfig struct {
	Token   string `yaml:"token"`
	Subject string `yaml:"subject"`
	Name    string `yaml:"name"`
}

type AuthConfig struct {
	Tokens               []TokenConfig `yaml:"tokens"`
	AuthorizationServers []string      `yaml:"authorization_servers"`
	// StdioSubject is the identity used by the stdio MCP transport, which
	// has no request to carry a token.
	StdioSubject string `yaml:"stdio_subject"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			SearchLimit:  20,
			RecentLimit:  20,
			SimilarLimit: 20,
		},
		Database: DatabaseConfig{Path: "./data/canvas.db"},
		Index:    IndexConfig{Dir: "./data/index"},
		Embedding: EmbeddingConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-3-large",
			Dimensions:    3072,
			BatchSize:     100,
			FailurePolicy: "halt",
			MaxRetries:    5,
			MinBackoff:    time.Second,
			MaxBackoff:    5 * time.Minute,
			Timeout:       60 * time.Second,
		},
		Auth: AuthConfig{StdioSubject: "local"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("CANVAS_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("CANVAS_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := lookup("CANVAS_DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("CANVAS_INDEX_DIR"); ok {
		c.Index.Dir = v
	}
	if v, ok := lookup("OPENAI_API_KEY"); ok {
		c.Embedding.APIKey = v
	}
	if v, ok := lookup("CANVAS_EMBEDDING_POLICY"); ok {
		c.Embedding.FailurePolicy = v
	}
	if v, ok := lookup("CANVAS_EMBEDDING_BATCH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CANVAS_EMBEDDING_BATCH: %w", err)
		}
		c.Embedding.BatchSize = n
	}
	if v, ok := lookup("CANVAS_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	// Single-user setups can skip the token list entirely.
	if v, ok := lookup("MCP_BEARER_TOKEN"); ok && v != "" {
		c.Auth.Tokens = append(c.Auth.Tokens, TokenConfig{Token: v, Subject: c.Auth.StdioSubject})
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Dimensions <= 0 || c.Embedding.Dimensions%4 != 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be a positive multiple of 4, got %d", c.Embedding.Dimensions))
	}
	switch c.Embedding.FailurePolicy {
	case "", "halt", "backoff":
	default:
		errs = append(errs, fmt.Errorf("embedding.failure_policy must be halt or backoff, got %q", c.Embedding.FailurePolicy))
	}
	seen := make(map[string]bool)
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d]: token and subject are required", i))
			continue
		}
		if seen[t.Token] {
			errs = append(errs, fmt.Errorf("auth.tokens[%d]: duplicate token", i))
		}
		seen[t.Token] = true
	}
	for _, l := range []struct {
		name string
		v    int
	}{
		{"server.search_limit", c.Server.SearchLimit},
		{"server.recent_limit", c.Server.RecentLimit},
		{"server.similar_limit", c.Server.SimilarLimit},
	} {
		if l.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", l.name, l.v))
		}
	}
	return errors.Join(errs...)
}
