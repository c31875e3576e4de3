// Package config loads jobprobe configuration.
//
// Precedence, highest first: runtime overrides (CLI flags), environment
// variables, config file, defaults. Environment variables use the
// JOBPROBE_ prefix with dots replaced by underscores
// (client.request_timeout → JOBPROBE_CLIENT_REQUEST_TIMEOUT). The worker
// list is also read from the bare WORKER_URLS variable.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all jobprobe environment variables.
const EnvPrefix = "JOBPROBE"

// ErrNoEndpoints is returned when no worker address is configured.
var ErrNoEndpoints = errors.New("no worker URLs configured")

// Config is the resolved configuration.
type Config struct {
	// WorkerURLs is the raw comma-separated worker list.
	WorkerURLs string `mapstructure:"worker_urls"`

	// Endpoints is WorkerURLs parsed by ParseEndpoints.
	Endpoints []string `mapstructure:"-"`

	Interval  time.Duration `mapstructure:"interval"`
	MaxRounds int           `mapstructure:"max_rounds"`

	// Template is an optional path to a YAML or JSON job template.
	Template string `mapstructure:"template"`

	// Output is the JSONL destination: "", "stdout", "file:<path>" or a path.
	Output string `mapstructure:"output"`

	Client  ClientConfig  `mapstructure:"client"`
	Status  StatusConfig  `mapstructure:"status"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClientConfig configures worker HTTP clients.
type ClientConfig struct {
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RateLimit          float64       `mapstructure:"rate_limit"`
}

// StatusConfig configures the optional status server.
type StatusConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `mapstructure:"addr"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Verbose bool   `mapstructure:"verbose"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("worker_urls", "")
	v.SetDefault("interval", "5s")
	v.SetDefault("max_rounds", 0)
	v.SetDefault("template", "")
	v.SetDefault("output", "")

	v.SetDefault("client.request_timeout", "30s")
	v.SetDefault("client.insecure_skip_verify", true)
	v.SetDefault("client.rate_limit", 0.0)

	v.SetDefault("status.addr", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.verbose", false)
}

// Load resolves configuration from defaults, an optional config file,
// the environment and runtime overrides.
//
// The config file is taken from the "config_file" override or the
// JOBPROBE_CONFIG variable; without either, jobprobe.yaml is looked up in
// the working directory and a missing file is not an error.
//
// Load does not validate; call Validate before use.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(append([]string{spec.Key}, spec.EnvVars...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Key, err)
		}
	}

	flat := make(map[string]any)
	for _, o := range overrides {
		flatten("", o, flat)
	}

	configFile, _ := flat["config_file"].(string)
	delete(flat, "config_file")
	if configFile == "" {
		configFile = v.GetString("config")
	}
	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	for k, val := range flat {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Endpoints = ParseEndpoints(cfg.WorkerURLs)

	return &cfg, nil
}

// Validate checks that cfg can drive a run.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative: %s", c.Interval)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative: %d", c.MaxRounds)
	}
	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client.request_timeout must be positive: %s", c.Client.RequestTimeout)
	}
	if c.Client.RateLimit < 0 {
		return fmt.Errorf("client.rate_limit must not be negative: %v", c.Client.RateLimit)
	}
	return nil
}

// envSpec maps a config key to the environment variables that set it.
type envSpec struct {
	Key     string
	EnvVars []string
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Key: "config", EnvVars: []string{EnvPrefix + "_CONFIG"}},
		{Key: "worker_urls", EnvVars: []string{EnvPrefix + "_WORKER_URLS", "WORKER_URLS"}},
		{Key: "interval", EnvVars: []string{EnvPrefix + "_INTERVAL"}},
		{Key: "max_rounds", EnvVars: []string{EnvPrefix + "_MAX_ROUNDS"}},
		{Key: "template", EnvVars: []string{EnvPrefix + "_TEMPLATE"}},
		{Key: "output", EnvVars: []string{EnvPrefix + "_OUTPUT"}},
		{Key: "client.request_timeout", EnvVars: []string{EnvPrefix + "_REQUEST_TIMEOUT", EnvPrefix + "_CLIENT_REQUEST_TIMEOUT"}},
		{Key: "client.insecure_skip_verify", EnvVars: []string{EnvPrefix + "_INSECURE_SKIP_VERIFY", EnvPrefix + "_CLIENT_INSECURE_SKIP_VERIFY"}},
		{Key: "client.rate_limit", EnvVars: []string{EnvPrefix + "_RATE_LIMIT", EnvPrefix + "_CLIENT_RATE_LIMIT"}},
		{Key: "status.addr", EnvVars: []string{EnvPrefix + "_STATUS_ADDR"}},
		{Key: "logging.level", EnvVars: []string{EnvPrefix + "_LOG_LEVEL", EnvPrefix + "_LOGGING_LEVEL"}},
	}
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("jobprobe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, val := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = val
	}
}
