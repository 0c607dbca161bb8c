package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob deepx reads from file, environment or flags.
type Config struct {
	// Deep sources queried by collect/all
	Sources []string `yaml:"sources"`

	// Output
	OutputDir string `yaml:"output_dir"`

	// Dictionary
	DictFile   string `yaml:"dict_file"`
	DictLevels int    `yaml:"dict_levels"`
	Wordlist   string `yaml:"wordlist,omitempty"`

	// DNS
	Resolvers      []string      `yaml:"resolvers,omitempty"`
	DNSTimeout     time.Duration `yaml:"dns_timeout"`
	DetectWildcard bool          `yaml:"detect_wildcard"`

	// Concurrency, one limit per stage
	SourceConcurrency int `yaml:"source_concurrency"`
	BruteConcurrency  int `yaml:"brute_concurrency"`
	ProbeConcurrency  int `yaml:"probe_concurrency"`

	// Timeouts
	SourceTimeout time.Duration `yaml:"source_timeout"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	ScanTimeout   time.Duration `yaml:"scan_timeout"` // 0 = no limit

	// HTTP behaviour shared by the collectors
	UserAgent  string        `yaml:"user_agent,omitempty"`
	RateLimit  float64       `yaml:"rate_limit"` // requests/sec per source host, 0 = unpaced
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	Cache CacheConfig `yaml:"cache"`
	OTX   OTXConfig   `yaml:"otx"`
	Fofa  FofaConfig  `yaml:"fofa"`

	// Endpoint overrides, empty means the public service.
	Endpoints Endpoints `yaml:"endpoints,omitempty"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`
	Debug    bool   `yaml:"debug"`
	NoColor  bool   `yaml:"no_color"`
}

type CacheConfig struct {
	Backend  string        `yaml:"backend"` // file, sqlite or memory
	Dir      string        `yaml:"dir"`
	TTL      time.Duration `yaml:"ttl"`
	Disabled bool          `yaml:"disabled"`
}

type OTXConfig struct {
	APIKey   string `yaml:"api_key,omitempty"`
	MaxPages int    `yaml:"max_pages"`
}

type FofaConfig struct {
	APIKey     string        `yaml:"api_key,omitempty"`
	Email      string        `yaml:"email,omitempty"`
	Query      string        `yaml:"query,omitempty"` // {domain} is substituted
	PageSize   int           `yaml:"page_size"`
	MaxPages   int           `yaml:"max_pages"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	PageDelay  time.Duration `yaml:"page_delay"`
}

type Endpoints struct {
	CrtSh   string `yaml:"crtsh,omitempty"`
	OTX     string `yaml:"otx,omitempty"`
	Archive string `yaml:"archive,omitempty"`
	Fofa    string `yaml:"fofa,omitempty"`
}

var (
	knownSources  = map[string]bool{"otx": true, "crtsh": true, "archive": true, "fofa": true}
	knownBackends = map[string]bool{"file": true, "sqlite": true, "memory": true}
	knownLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// HomeDir is ~/.deepx, falling back to ./.deepx when no home is known.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deepx"
	}
	return filepath.Join(home, ".deepx")
}

// DefaultPath is where Load looks when no --config is given.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Sources:           []string{"otx", "crtsh", "archive"},
		OutputDir:         "output",
		DictFile:          filepath.Join("data", "subdomain_dict.txt"),
		DictLevels:        2,
		DNSTimeout:        3 * time.Second,
		DetectWildcard:    true,
		SourceConcurrency: 4,
		BruteConcurrency:  100,
		ProbeConcurrency:  50,
		SourceTimeout:     60 * time.Second,
		ProbeTimeout:      10 * time.Second,
		RateLimit:         2,
		Retries:           2,
		RetryDelay:        2 * time.Second,
		Cache: CacheConfig{
			Backend: "file",
			Dir:     filepath.Join(HomeDir(), "cache"),
			TTL:     72 * time.Hour,
		},
		OTX: OTXConfig{
			MaxPages: 10,
		},
		Fofa: FofaConfig{
			PageSize:   100,
			MaxPages:   3,
			Retries:    3,
			RetryDelay: 5 * time.Second,
			PageDelay:  2 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and then applies the environment. A
// missing file is not an error; path "" means DefaultPath.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides credentials and cache settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FOFA_API_KEY"); v != "" {
		c.Fofa.APIKey = v
	}
	if v := os.Getenv("FOFA_EMAIL"); v != "" {
		c.Fofa.Email = v
	}
	if v := os.Getenv("OTX_API_KEY"); v != "" {
		c.OTX.APIKey = v
	}
	if v := os.Getenv("DEEPX_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("DISABLE_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Cache.Disabled = b
		}
	}
}

// Validate rejects settings no component could run with.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range c.Sources {
		if !knownSources[strings.ToLower(s)] {
			errs = append(errs, fmt.Errorf("unknown source %q", s))
		}
	}
	if c.SourceConcurrency < 1 {
		errs = append(errs, errors.New("source_concurrency must be positive"))
	}
	if c.BruteConcurrency < 1 {
		errs = append(errs, errors.New("brute_concurrency must be positive"))
	}
	if c.ProbeConcurrency < 1 {
		errs = append(errs, errors.New("probe_concurrency must be positive"))
	}
	if c.DictLevels < 1 {
		errs = append(errs, errors.New("dict_levels must be at least 1"))
	}
	if c.Cache.Backend != "" && !knownBackends[c.Cache.Backend] {
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}
	if c.LogLevel != "" && !knownLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.Fofa.PageSize < 1 || c.Fofa.MaxPages < 1 {
		errs = append(errs, errors.New("fofa page_size and max_pages must be positive"))
	}
	return errors.Join(errs...)
}

// Save writes c as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Masked returns a copy with credentials shortened for display.
func (c *Config) Masked() *Config {
	cp := *c
	cp.Sources = append([]string(nil), c.Sources...)
	cp.Resolvers = append([]string(nil), c.Resolvers...)
	cp.OTX.APIKey = maskKey(c.OTX.APIKey)
	cp.Fofa.APIKey = maskKey(c.Fofa.APIKey)
	return &cp
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// HasFofa reports whether FOFA credentials are configured.
func (c *Config) HasFofa() bool {
	return c.Fofa.APIKey != ""
}
