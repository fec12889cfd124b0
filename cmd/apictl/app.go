package main

import (
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/apictl/internal/config"
	"github.com/Sternrassler/apictl/pkg/apierrors"
	"github.com/Sternrassler/apictl/pkg/cache"
	"github.com/Sternrassler/apictl/pkg/client"
	"github.com/Sternrassler/apictl/pkg/input"
	"github.com/Sternrassler/apictl/pkg/logging"
	"github.com/Sternrassler/apictl/pkg/metrics"
	"github.com/Sternrassler/apictl/pkg/output"
	"github.com/Sternrassler/apictl/pkg/ratelimit"
)

// rootFlags holds the persistent flag values. They override the config file
// and environment only when set.
type rootFlags struct {
	configPath  string
	format      string
	output      string
	logLevel    string
	logPretty   bool
	retries     int
	rps         float64
	redisAddr   string
	metricsFile string
}

// app holds the state shared by all commands of one invocation.
type app struct {
	flags    rootFlags
	stderr   io.Writer
	resolver *input.Resolver

	cfg    *config.Config
	client *client.Client
	redis  *redis.Client
	logger zerolog.Logger
}

func newApp(stdin io.Reader, stderr io.Writer) *app {
	return &app{
		stderr:   stderr,
		resolver: &input.Resolver{Stdin: stdin},
	}
}

func (a *app) bindFlags(root *cobra.Command) {
	defaults := config.DefaultConfig()
	f := root.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "config file (default ./.apictl.yaml or $XDG_CONFIG_HOME/apictl/config.yaml)")
	f.StringVar(&a.flags.format, "format", defaults.Output.Format, "output format: csv or ndjson")
	f.StringVarP(&a.flags.output, "output", "o", "", "output file (default stdout)")
	f.StringVar(&a.flags.logLevel, "log-level", defaults.Log.Level, "log level: debug, info, warn, error, disabled")
	f.BoolVar(&a.flags.logPretty, "log-pretty", defaults.Log.Pretty, "human-readable logs instead of JSON")
	f.IntVar(&a.flags.retries, "retries", defaults.HTTP.Retries, "extra attempts for server, rate limit and network errors")
	f.Float64Var(&a.flags.rps, "rps", defaults.HTTP.RequestsPerSecond, "maximum requests per second (0 disables pacing)")
	f.StringVar(&a.flags.redisAddr, "redis-addr", "", "Redis address enabling the response cache and shared rate limit state")
	f.StringVar(&a.flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}

// setup loads the configuration, applies flags, configures logging and
// builds the shared API client.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.flags.configPath)
	if err != nil {
		return usageError(err)
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	a.cfg = cfg

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: a.stderr,
	})
	a.logger = logging.NewLogger("cli")

	clientCfg := client.DefaultConfig(cfg.HTTP.UserAgent)
	clientCfg.Timeout = cfg.HTTP.Timeout
	clientCfg.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
	clientCfg.Retry = client.RetryConfigWithAttempts(cfg.HTTP.Retries + 1)

	var store ratelimit.Store
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("%w: redis %s: %w", apierrors.ErrNetwork, cfg.Redis.Addr, err)
		}
		clientCfg.Cache = cache.NewManager(a.redis)
		store = ratelimit.NewRedisStore(a.redis)
		a.logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Response cache enabled")
	}

	trackerCfg := ratelimit.DefaultConfig()
	trackerCfg.AutoWait = cfg.RateLimit.AutoWait
	trackerCfg.MaxWait = cfg.RateLimit.MaxWait
	clientCfg.RateLimit = ratelimit.NewTracker(store, trackerCfg, logging.NewLogger("ratelimit"))

	a.client, err = client.New(clientCfg)
	if err != nil {
		return usageError(err)
	}
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = a.flags.format
	}
	if flags.Changed("output") {
		cfg.Output.Path = a.flags.output
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-pretty") {
		cfg.Log.Pretty = a.flags.logPretty
	}
	if flags.Changed("retries") {
		cfg.HTTP.Retries = a.flags.retries
	}
	if flags.Changed("rps") {
		cfg.HTTP.RequestsPerSecond = a.flags.rps
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = a.flags.redisAddr
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.File = a.flags.metricsFile
	}
}

// openWriter returns the record writer selected by the output settings.
func (a *app) openWriter(cmd *cobra.Command, columns []string) (output.RecordWriter, error) {
	var (
		w   output.RecordWriter
		err error
	)
	if a.cfg.Output.Path == "" {
		w, err = output.New(a.cfg.Output.Format, cmd.OutOrStdout())
	} else {
		w, err = output.Open(a.cfg.Output.Format, a.cfg.Output.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := w.WriteHeader(columns); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// export writes the records produced by list through a writer for columns.
// The writer is always closed and a failed flush or close fails the command.
func (a *app) export(cmd *cobra.Command, columns []string, list func(output.RecordWriter) error) (err error) {
	w, err := a.openWriter(cmd, columns)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write output: %w", cerr)
		}
	}()
	return list(w)
}

// resolve expands list arguments, failing when they yield nothing.
func (a *app) resolve(what string, raw []string) ([]string, error) {
	values, err := a.resolver.ResolveAll(raw)
	if err != nil {
		return nil, usageError(err)
	}
	if len(values) == 0 {
		return nil, usageError(fmt.Errorf("no %s given", what))
	}
	return values, nil
}

// close releases resources and writes the metrics file.
func (a *app) close() error {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.cfg == nil || a.cfg.Metrics.File == "" {
		return nil
	}
	return metrics.WriteTextfile(a.cfg.Metrics.File)
}
