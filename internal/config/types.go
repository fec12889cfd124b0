package config

import "time"

// Config is the complete apictl configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Bitbucket BitbucketConfig `yaml:"bitbucket"`
	CircleCI  CircleCIConfig  `yaml:"circleci"`
	GitHub    GitHubConfig    `yaml:"github"`
	Jenkins   JenkinsConfig   `yaml:"jenkins"`
}

// HTTPConfig controls the shared HTTP client.
type HTTPConfig struct {
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	// Retries is the number of extra attempts for server and network errors.
	Retries int `yaml:"retries"`
}

// OutputConfig selects the record format and destination.
type OutputConfig struct {
	Format string `yaml:"format"`
	// Path is the output file; empty writes to stdout.
	Path string `yaml:"path"`
}

// LogConfig controls logging to stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RedisConfig enables the response cache and shared rate limit state when
// Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig controls behavior when an API quota is exhausted.
type RateLimitConfig struct {
	AutoWait bool          `yaml:"auto_wait"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// BitbucketConfig holds Bitbucket Cloud settings.
type BitbucketConfig struct {
	APIEndpoint string `yaml:"api_endpoint"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
	// NetrcPath is consulted when no credentials are configured.
	NetrcPath string `yaml:"netrc_path"`
	PageLen   int    `yaml:"pagelen"`
}

// CircleCIConfig holds CircleCI settings.
type CircleCIConfig struct {
	APIEndpoint string `yaml:"api_endpoint"`
	Token       string `yaml:"token"`
}

// GitHubConfig holds GitHub settings.
type GitHubConfig struct {
	// APIEndpoint is empty for github.com or the GitHub Enterprise API URL.
	APIEndpoint string `yaml:"api_endpoint"`
	Token       string `yaml:"token"`
}

// JenkinsConfig holds Jenkins settings.
type JenkinsConfig struct {
	// User is "username:api-token".
	User string `yaml:"user"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			UserAgent:         "apictl/dev",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Retries:           0,
		},
		Output: OutputConfig{
			Format: "csv",
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
		RateLimit: RateLimitConfig{
			AutoWait: true,
			MaxWait:  15 * time.Minute,
		},
		Bitbucket: BitbucketConfig{
			APIEndpoint: "https://api.bitbucket.org/2.0",
			NetrcPath:   "~/.netrc",
			PageLen:     100,
		},
		CircleCI: CircleCIConfig{
			APIEndpoint: "https://circleci.com/api/v2",
		},
	}
}
