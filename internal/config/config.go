package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendAuto   = "auto"
	BackendFlat   = "flat"
	BackendValkey = "valkey"
)

// Embedding providers.
const (
	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"
)

// Reply generation modes.
const (
	LLMModeLocal    = "local"
	LLMModeExternal = "external"
)

// Config holds the catalogsearch service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Categories CategoriesConfig `yaml:"categories"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	URLs       URLsConfig       `yaml:"urls"`
	LLM        LLMConfig        `yaml:"llm"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Valkey/Redis connection settings.
// Empty Addrs means no store is opened.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a store is configured.
func (d DatabaseConfig) Enabled() bool {
	return len(d.Addrs) > 0
}

// PostgresConfig holds the catalog database settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// CategoriesConfig points to a JSON category dump used when Postgres is not configured.
type CategoriesConfig struct {
	File string `yaml:"file"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Provider         string      `yaml:"provider"` // openai, langchain
	BaseURL          string      `yaml:"base_url"`
	APIKey           string      `yaml:"api_key"`
	Model            string      `yaml:"model"`
	Dimensions       int         `yaml:"dimensions"`
	QueryInstruction string      `yaml:"query_instruction"`
	Cache            CacheConfig `yaml:"cache"`
}

// CacheConfig holds the query embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// IndexConfig holds index snapshot settings.
type IndexConfig struct {
	Dir         string `yaml:"dir"`
	Backend     string `yaml:"backend"` // auto, flat, valkey
	ScanWorkers int    `yaml:"scan_workers"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// SearchConfig holds retrieval sizes for the chat flow.
type SearchConfig struct {
	RetrievalTopK int `yaml:"retrieval_top_k"`
	MaxProducts   int `yaml:"max_products"`
}

// URLsConfig holds the bases used to build product and image links.
type URLsConfig struct {
	FrontendBaseURL string `yaml:"frontend_base_url"`
	BackendBaseURL  string `yaml:"backend_base_url"`
}

// LLMConfig holds reply generation settings.
type LLMConfig struct {
	Mode    string `yaml:"mode"` // local, external
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env placeholders in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Index.Dir == "" {
		c.Index.Dir = "index_data"
	}
	if c.Index.Backend == "" {
		c.Index.Backend = BackendAuto
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "catalogsearch:"
	}
	if c.Search.RetrievalTopK <= 0 {
		c.Search.RetrievalTopK = 100
	}
	if c.Search.MaxProducts == 0 {
		c.Search.MaxProducts = 70
	}
	if c.URLs.FrontendBaseURL == "" {
		c.URLs.FrontendBaseURL = "https://pospro-new-ui.onrender.com"
	}
	c.URLs.FrontendBaseURL = strings.TrimRight(c.URLs.FrontendBaseURL, "/")
	if c.URLs.BackendBaseURL == "" {
		c.URLs.BackendBaseURL = "https://pospro-backend.onrender.com"
	}
	c.LLM.Mode = strings.ToLower(c.LLM.Mode)
	if c.LLM.Mode == "" {
		c.LLM.Mode = LLMModeLocal
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"langchain\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Index.Backend {
	case BackendAuto, BackendFlat, BackendValkey:
	default:
		return fmt.Errorf("index.backend must be one of auto, flat, valkey, got %q", c.Index.Backend)
	}
	if c.Index.Backend == BackendValkey && !c.Database.Enabled() {
		return errors.New(`database.addrs is required for index.backend "valkey"`)
	}
	if c.Search.MaxProducts <= 0 {
		return fmt.Errorf("search.max_products must be positive, got %d", c.Search.MaxProducts)
	}
	switch c.LLM.Mode {
	case LLMModeLocal, LLMModeExternal:
	default:
		return fmt.Errorf("llm.mode must be \"local\" or \"external\", got %q", c.LLM.Mode)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
