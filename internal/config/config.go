package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"

	"github.com/nidhogg/cardclusters/internal/similarity"
	"go.uber.org/zap"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Source     SourceConfig     `json:"source"`
	Similarity SimilarityConfig `json:"similarity"`
	Database   DatabaseConfig   `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// SourceConfig locates the card dump the batch driver reads.
type SourceConfig struct {
	Path string `json:"path"`
}

type SimilarityConfig struct {
	TopK        int                     `json:"top_k"`
	Parallelism int                     `json:"parallelism"`
	Workers     int                     `json:"workers"`
	Text        similarity.TfidfOptions `json:"text"`
	Type        similarity.TfidfOptions `json:"type"`
	Weights     *similarity.Weights     `json:"weights,omitempty"`
}

type DatabaseConfig struct {
	Redis    RedisConfig    `json:"redis"`
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
}

type RedisConfig struct {
	URL       string `json:"url"`
	BatchSize int    `json:"batch_size"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes config JSON, resolving ${VAR} references and applying defaults.
func Parse(data []byte) (*Config, error) {
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := similarity.DefaultOptions()
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Similarity.TopK == 0 {
		c.Similarity.TopK = 50
	}
	if c.Similarity.Parallelism == 0 {
		c.Similarity.Parallelism = def.Parallelism
	}
	c.Similarity.Text = tfidfDefaults(c.Similarity.Text, def.Text)
	c.Similarity.Type = tfidfDefaults(c.Similarity.Type, def.Type)
	if c.Similarity.Weights == nil {
		w := def.Weights
		c.Similarity.Weights = &w
	}
	if c.Database.Redis.BatchSize == 0 {
		c.Database.Redis.BatchSize = 500
	}
	if c.Database.Postgres.MigrationsDir == "" {
		c.Database.Postgres.MigrationsDir = "migrations"
	}
}

// tfidfDefaults fills unset pruning fields. A zero MaxDF is treated as
// unset since it would prune every term.
func tfidfDefaults(o, def similarity.TfidfOptions) similarity.TfidfOptions {
	if o.MaxDF == 0 {
		o.MaxDF = def.MaxDF
		if o.MinDF == 0 {
			o.MinDF = def.MinDF
		}
	}
	if o.NGramMin == 0 {
		o.NGramMin = def.NGramMin
	}
	if o.NGramMax == 0 {
		o.NGramMax = def.NGramMax
	}
	return o
}

// Validate reports configuration problems that do not stop a run.
func (c *Config) Validate() []string {
	var warnings []string
	if sum := c.Similarity.Weights.Sum(); math.Abs(sum-1) > 1e-9 {
		warnings = append(warnings, fmt.Sprintf("similarity weights sum to %g, scores will not lie in [0,1]", sum))
	}
	if c.Similarity.TopK < 0 {
		warnings = append(warnings, "similarity.top_k is negative")
	}
	for name, o := range map[string]similarity.TfidfOptions{"text": c.Similarity.Text, "type": c.Similarity.Type} {
		if o.MaxDF < o.MinDF {
			warnings = append(warnings, fmt.Sprintf("similarity.%s: max_df %g is below min_df %g", name, o.MaxDF, o.MinDF))
		}
	}
	if c.Database.Redis.URL == "" {
		warnings = append(warnings, "database.redis.url is empty")
	}
	return warnings
}

// EngineOptions converts the similarity section into engine options.
func (c *Config) EngineOptions() similarity.Options {
	return similarity.Options{
		Text:        c.Similarity.Text,
		Type:        c.Similarity.Type,
		Weights:     *c.Similarity.Weights,
		Parallelism: c.Similarity.Parallelism,
		Workers:     c.Similarity.Workers,
	}
}

// NewLogger builds a development logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	return cfg.Build()
}
