package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment and an
// optional config file.
type Config struct {
	GitHubToken string
	DebugMode   bool

	KeywordsFile string
	StoreDriver  string
	StorePath    string
	StatsFile    string
	CacheFile    string
	NoCache      bool
	CacheTTL     time.Duration

	Extension   string
	AccountTerm string
	MinKeywords int
	MaxKeywords int
	MaxPages    int
	PageDelay   time.Duration

	InitialBackoff    time.Duration
	MaxRetries        int
	RequestsPerSecond float64

	MetricsAddr string

	S3Bucket    string
	S3ObjectKey string
	AWSRegion   string
}

// LambdaStorePath is the default store_path when running inside Lambda.
const LambdaStorePath = "/tmp/repos"

// MaxRetriesLimit bounds max_retries; with the default backoff the last
// wait is already days long.
const MaxRetriesLimit = 20

var defaults = map[string]any{
	"keywords_file":       "keywords.txt",
	"store_driver":        "file",
	"store_path":          "repos",
	"stats_file":          "",
	"cache_file":          "/tmp/gh-rmdcrawl-cache.gob",
	"no_cache":            false,
	"cache_ttl":           30 * time.Minute,
	"extension":           "Rmd",
	"account_term":        "output",
	"min_keywords":        2,
	"max_keywords":        4,
	"max_pages":           1000,
	"page_delay":          time.Second,
	"initial_backoff":     61 * time.Second,
	"max_retries":         10,
	"requests_per_second": 0.0,
	"metrics_addr":        "",
}

// NewViper returns a viper instance reading upper-cased environment
// variables (GITHUB_TOKEN, STORE_PATH, ...) with defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Only /tmp is writable inside Lambda.
	if os.Getenv("LAMBDA_TASK_ROOT") != "" {
		v.SetDefault("store_path", LambdaStorePath)
	}
	return v
}

// Load reads a Config out of v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		GitHubToken:       v.GetString("github_token"),
		DebugMode:         truthy(v.GetString("debug")),
		KeywordsFile:      v.GetString("keywords_file"),
		StoreDriver:       strings.ToLower(v.GetString("store_driver")),
		StorePath:         v.GetString("store_path"),
		StatsFile:         v.GetString("stats_file"),
		CacheFile:         v.GetString("cache_file"),
		NoCache:           truthy(v.GetString("no_cache")),
		CacheTTL:          v.GetDuration("cache_ttl"),
		Extension:         v.GetString("extension"),
		AccountTerm:       v.GetString("account_term"),
		MinKeywords:       v.GetInt("min_keywords"),
		MaxKeywords:       v.GetInt("max_keywords"),
		MaxPages:          v.GetInt("max_pages"),
		PageDelay:         v.GetDuration("page_delay"),
		InitialBackoff:    v.GetDuration("initial_backoff"),
		MaxRetries:        v.GetInt("max_retries"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		MetricsAddr:       v.GetString("metrics_addr"),
		S3Bucket:          v.GetString("s3_bucket_name"),
		S3ObjectKey:       v.GetString("s3_object_key"),
		AWSRegion:         v.GetString("aws_region"),
	}
	return cfg, cfg.Validate()
}

// FromEnvironment creates a Config from environment variables only.
func FromEnvironment() (Config, error) {
	return Load(NewViper())
}

// Validate rejects settings the crawler cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MinKeywords < 1 {
		errs = append(errs, fmt.Errorf("min_keywords must be at least 1, got %d", c.MinKeywords))
	}
	if c.MaxKeywords < c.MinKeywords {
		errs = append(errs, fmt.Errorf("max_keywords (%d) must not be below min_keywords (%d)", c.MaxKeywords, c.MinKeywords))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("max_pages must be positive, got %d", c.MaxPages))
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("max_retries must be between 0 and %d, got %d", MaxRetriesLimit, c.MaxRetries))
	}
	if c.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("initial_backoff must be positive, got %s", c.InitialBackoff))
	}
	if c.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("page_delay must not be negative, got %s", c.PageDelay))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond))
	}
	switch c.StoreDriver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store_driver must be file or sqlite, got %q", c.StoreDriver))
	}
	if c.StorePath == "" {
		errs = append(errs, errors.New("store_path must be set"))
	}
	return errors.Join(errs...)
}

func truthy(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s != "" && s != "0" && s != "false"
}
