package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LLMConfig describes a chat or embedding model endpoint.
type LLMConfig struct {
	Provider          string        `yaml:"provider"` // openai, azure, ollama
	BaseURL           string        `yaml:"base_url"`
	Key               string        `yaml:"key"`
	Model             string        `yaml:"model"`
	APIVersion        string        `yaml:"api_version"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type RAGConfig struct {
	IndexDir            string        `yaml:"index_dir"`
	Collection          string        `yaml:"collection"`
	Compress            bool          `yaml:"compress"`
	EncryptionKey       string        `yaml:"encryption_key"`
	KPrimary            int           `yaml:"k_primary"`
	KPrimaryComparison  int           `yaml:"k_primary_comparison"`
	KSecondary          int           `yaml:"k_secondary"`
	MaxExpansionTerms   int           `yaml:"max_expansion_terms"`
	FanoutConcurrency   int           `yaml:"fanout_concurrency"`
	RetrievalTimeout    time.Duration `yaml:"retrieval_timeout"`
	StrictJurisdictions bool          `yaml:"strict_jurisdictions"`
	ChunkSize           int           `yaml:"chunk_size"`
	ChunkOverlap        int           `yaml:"chunk_overlap"`
}

type SessionConfig struct {
	Backend string `yaml:"backend"` // blob, postgres
}

type BlobConfig struct {
	Type         string `yaml:"type"` // local, s3
	LocalPath    string `yaml:"local_path"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Region     string `yaml:"s3_region"`
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"` // pgdriver, pq
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"` // empty allows every origin
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Session  SessionConfig  `yaml:"session"`
	Blob     BlobConfig     `yaml:"blob"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadConfig reads the yaml file at path. A .env file next to the working
// directory is loaded first so that ${VAR} references in the yaml resolve.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes yaml bytes, expands environment references and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero value with the production default.
func (c *Config) ApplyDefaults() {
	applyLLMDefaults(&c.LLM)
	applyLLMDefaults(&c.EmbedLLM)

	if c.RAG.IndexDir == "" {
		c.RAG.IndexDir = "./data/indexes"
	}
	if c.RAG.Collection == "" {
		c.RAG.Collection = "passages"
	}
	if c.RAG.KPrimary == 0 {
		c.RAG.KPrimary = 12
	}
	if c.RAG.KPrimaryComparison == 0 {
		c.RAG.KPrimaryComparison = 6
	}
	if c.RAG.KSecondary == 0 {
		c.RAG.KSecondary = 3
	}
	if c.RAG.MaxExpansionTerms == 0 {
		c.RAG.MaxExpansionTerms = 10
	}
	if c.RAG.FanoutConcurrency == 0 {
		c.RAG.FanoutConcurrency = 4
	}
	if c.RAG.RetrievalTimeout == 0 {
		c.RAG.RetrievalTimeout = 30 * time.Second
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}

	if c.Session.Backend == "" {
		c.Session.Backend = "blob"
	}
	if c.Blob.Type == "" {
		c.Blob.Type = "local"
	}
	if c.Blob.LocalPath == "" {
		c.Blob.LocalPath = "./data/blob"
	}
	if c.Blob.S3Region == "" {
		c.Blob.S3Region = "us-east-1"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 3 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func applyLLMDefaults(l *LLMConfig) {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.Timeout == 0 {
		l.Timeout = 60 * time.Second
	}
	if l.MaxRetries == 0 {
		l.MaxRetries = 3
	}
	if l.RetryDelay == 0 {
		l.RetryDelay = 500 * time.Millisecond
	}
	if l.MaxRetryDelay == 0 {
		l.MaxRetryDelay = 8 * time.Second
	}
}

// Validate rejects configurations that cannot produce a working pipeline.
func (c *Config) Validate() error {
	var errs []error
	for name, l := range map[string]LLMConfig{"llm": c.LLM, "embed_llm": c.EmbedLLM} {
		switch l.Provider {
		case "openai", "azure", "ollama":
		default:
			errs = append(errs, fmt.Errorf("%s.provider: unsupported provider %q", name, l.Provider))
		}
		if l.MaxRetries < 1 {
			errs = append(errs, fmt.Errorf("%s.max_retries must be at least 1", name))
		}
	}
	if c.RAG.KPrimary < 1 || c.RAG.KPrimaryComparison < 1 || c.RAG.KSecondary < 1 {
		errs = append(errs, errors.New("rag: retrieval depths must be positive"))
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, errors.New("rag.chunk_overlap must be smaller than rag.chunk_size"))
	}
	if c.RAG.EncryptionKey != "" && len(c.RAG.EncryptionKey) != 32 {
		errs = append(errs, errors.New("rag.encryption_key must be 32 bytes"))
	}
	switch c.Session.Backend {
	case "blob", "postgres":
	default:
		errs = append(errs, fmt.Errorf("session.backend: unsupported backend %q", c.Session.Backend))
	}
	switch c.Blob.Type {
	case "local":
	case "s3":
		if c.Blob.S3Bucket == "" {
			errs = append(errs, errors.New("blob.s3_bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.type: unsupported storage type %q", c.Blob.Type))
	}
	if c.Session.Backend == "postgres" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for the postgres session backend"))
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
