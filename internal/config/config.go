package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	gulphttp "github.com/ligustah/gulp/internal/http"
)

// DefaultOutput is the output directory used when none is configured,
// relative to the working directory.
const DefaultOutput = "temp"

// Config defines configuration for the gulp CLI.
type Config struct {
	URLs        []string   `yaml:"urls"`
	Output      string     `yaml:"output"`
	Bucket      string     `yaml:"bucket"`
	Concurrency int        `yaml:"concurrency"`
	Progress    bool       `yaml:"progress"`
	Report      string     `yaml:"report"`
	MetricsFile string     `yaml:"metrics_file"`
	HTTP        HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	Proxy               string        `yaml:"proxy"`
	UserAgent           string        `yaml:"user_agent"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	httpDefaults := gulphttp.DefaultOptions()
	return Config{
		Output:      DefaultOutput,
		Concurrency: 16,
		HTTP: HTTPConfig{
			UserAgent:           httpDefaults.UserAgent,
			MaxIdleConnsPerHost: httpDefaults.MaxIdleConnsPerHost,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
// Concurrency is a pointer so an explicit 0 (unbounded) can be told apart
// from an absent key.
type yamlConfig struct {
	URLs        []string       `yaml:"urls"`
	Output      string         `yaml:"output"`
	Bucket      string         `yaml:"bucket"`
	Concurrency *int           `yaml:"concurrency"`
	Progress    bool           `yaml:"progress"`
	Report      string         `yaml:"report"`
	MetricsFile string         `yaml:"metrics_file"`
	HTTP        yamlHTTPConfig `yaml:"http"`
}

type yamlHTTPConfig struct {
	Timeout             string `yaml:"timeout"`
	Proxy               string `yaml:"proxy"`
	UserAgent           string `yaml:"user_agent"`
	MaxIdleConnsPerHost int    `yaml:"max_idle_conns_per_host"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if len(yc.URLs) > 0 {
		cfg.URLs = yc.URLs
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Concurrency != nil {
		cfg.Concurrency = *yc.Concurrency
	}
	cfg.Progress = yc.Progress
	if yc.Report != "" {
		cfg.Report = yc.Report
	}
	if yc.MetricsFile != "" {
		cfg.MetricsFile = yc.MetricsFile
	}
	if yc.HTTP.Timeout != "" {
		d, err := time.ParseDuration(yc.HTTP.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse http.timeout: %w", err)
		}
		cfg.HTTP.Timeout = d
	}
	if yc.HTTP.Proxy != "" {
		cfg.HTTP.Proxy = yc.HTTP.Proxy
	}
	if yc.HTTP.UserAgent != "" {
		cfg.HTTP.UserAgent = yc.HTTP.UserAgent
	}
	if yc.HTTP.MaxIdleConnsPerHost != 0 {
		cfg.HTTP.MaxIdleConnsPerHost = yc.HTTP.MaxIdleConnsPerHost
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GULP_ prefix. GULP_URLS is comma separated.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GULP_URLS"); v != "" {
		c.URLs = splitList(v)
	}
	if v := os.Getenv("GULP_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("GULP_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("GULP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GULP_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("GULP_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("GULP_REPORT"); v != "" {
		c.Report = v
	}
	if v := os.Getenv("GULP_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}
	if v := os.Getenv("GULP_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse GULP_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if v := os.Getenv("GULP_HTTP_PROXY"); v != "" {
		c.HTTP.Proxy = v
	}
	if v := os.Getenv("GULP_HTTP_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("GULP_HTTP_MAX_IDLE_CONNS_PER_HOST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GULP_HTTP_MAX_IDLE_CONNS_PER_HOST: %w", err)
		}
		c.HTTP.MaxIdleConnsPerHost = n
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Output == "" && c.Bucket == "" {
		return errors.New("config: output or bucket is required")
	}
	if c.Concurrency < 0 {
		return errors.New("config: concurrency must not be negative")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if c.HTTP.MaxIdleConnsPerHost < 0 {
		return errors.New("config: http.max_idle_conns_per_host must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored; URLs are appended.
func (c Config) Merge(override Config) Config {
	if len(override.URLs) > 0 {
		c.URLs = append(append([]string(nil), c.URLs...), override.URLs...)
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Report != "" {
		c.Report = override.Report
	}
	if override.MetricsFile != "" {
		c.MetricsFile = override.MetricsFile
	}
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.Proxy != "" {
		c.HTTP.Proxy = override.HTTP.Proxy
	}
	if override.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = override.HTTP.UserAgent
	}
	if override.HTTP.MaxIdleConnsPerHost != 0 {
		c.HTTP.MaxIdleConnsPerHost = override.HTTP.MaxIdleConnsPerHost
	}
	return c
}

// OutputDir returns the output directory resolved against cwd.
func (c Config) OutputDir(cwd string) string {
	if filepath.IsAbs(c.Output) {
		return filepath.Clean(c.Output)
	}
	return filepath.Join(cwd, c.Output)
}

// HTTPOptions converts the HTTP section into client options.
func (c Config) HTTPOptions() gulphttp.Options {
	return gulphttp.Options{
		MaxIdleConnsPerHost: c.HTTP.MaxIdleConnsPerHost,
		Timeout:             c.HTTP.Timeout,
		Proxy:               c.HTTP.Proxy,
		UserAgent:           c.HTTP.UserAgent,
	}
}
