// Package config loads apictl configuration from a YAML file and the
// environment. Precedence, lowest first: defaults, config file, environment,
// command-line flags (applied by the caller).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from configPath, or from the first default
// location that exists when configPath is empty, then applies environment
// overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		for _, path := range defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Bitbucket.NetrcPath = expandPath(cfg.Bitbucket.NetrcPath)
	cfg.Output.Path = expandPath(cfg.Output.Path)
	cfg.Metrics.File = expandPath(cfg.Metrics.File)

	return cfg, nil
}

func defaultPaths() []string {
	paths := []string{
		".apictl.yaml",
		".apictl.yml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths,
			filepath.Join(dir, "apictl", "config.yaml"),
			filepath.Join(dir, "apictl", "config.yml"),
		)
	}
	return paths
}

// loadConfigFile reads and parses a YAML config file over cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// General
	if v := os.Getenv("APICTL_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("APICTL_OUTPUT"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("APICTL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("APICTL_USER_AGENT"); v != "" {
		cfg.HTTP.UserAgent = v
	}
	if v := os.Getenv("APICTL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("APICTL_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("APICTL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retries = n
		}
	}
	if v := os.Getenv("APICTL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("APICTL_METRICS_FILE"); v != "" {
		cfg.Metrics.File = v
	}
	if v := os.Getenv("APICTL_RATE_LIMIT_AUTO_WAIT"); v != "" {
		cfg.RateLimit.AutoWait = parseBool(v)
	}

	// Bitbucket
	if v := os.Getenv("BITBUCKET_API_ENDPOINT"); v != "" {
		cfg.Bitbucket.APIEndpoint = v
	}
	if v := os.Getenv("BITBUCKET_USERNAME"); v != "" {
		cfg.Bitbucket.Username = v
	}
	if v := os.Getenv("BITBUCKET_APP_PASSWORD"); v != "" {
		cfg.Bitbucket.AppPassword = v
	}

	// CircleCI
	if v := os.Getenv("CIRCLECI_API_ENDPOINT"); v != "" {
		cfg.CircleCI.APIEndpoint = v
	}
	if v := os.Getenv("CIRCLE_TOKEN"); v != "" {
		cfg.CircleCI.Token = v
	}

	// GitHub
	if v := os.Getenv("GITHUB_API_ENDPOINT"); v != "" {
		cfg.GitHub.APIEndpoint = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}

	// Jenkins
	if v := os.Getenv("JENKINS_USER"); v != "" {
		cfg.Jenkins.User = v
	}
}

// expandPath expands ~ and environment variables in path.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Output.Format) {
	case "csv", "ndjson":
	default:
		return fmt.Errorf("output format must be csv or ndjson, got: %q", c.Output.Format)
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got: %s", c.HTTP.Timeout)
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got: %g", c.HTTP.RequestsPerSecond)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got: %d", c.HTTP.Retries)
	}
	if c.Bitbucket.PageLen < 1 || c.Bitbucket.PageLen > 100 {
		return fmt.Errorf("bitbucket pagelen must be between 1 and 100, got: %d", c.Bitbucket.PageLen)
	}
	if c.Bitbucket.APIEndpoint == "" {
		return fmt.Errorf("bitbucket API endpoint cannot be empty")
	}
	if c.CircleCI.APIEndpoint == "" {
		return fmt.Errorf("circleci API endpoint cannot be empty")
	}
	return nil
}
