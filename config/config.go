package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/santiagomed/codewizard/errs"
	"github.com/santiagomed/codewizard/llm"
)

const (
	DefaultTimeout = 120 * time.Second
	// MinTimeout rejects unit-less values such as "timeout: 30", which decode as nanoseconds.
	MinTimeout = time.Second
)

// Config is the resolved configuration of one invocation.
type Config struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Verbose  bool          `mapstructure:"verbose"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"backend":  "provider",
	"model":    "model",
	"endpoint": "endpoint",
	"timeout":  "timeout",
	"verbose":  "verbose",
}

func DefaultConfig() *Config {
	return &Config{
		Provider: string(llm.ProviderCloud),
		Timeout:  DefaultTimeout,
	}
}

// LoadConfig resolves configuration from, lowest precedence first: defaults,
// a YAML file, CODEWIZARD_* environment variables and the given flags.
// configPath may be empty, in which case only ~/.codewizard/config.yaml is
// read, and not finding it is fine. The working directory is never searched.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("provider", def.Provider)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("verbose", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".codewizard"))
		}
	}

	v.SetEnvPrefix("codewizard")
	v.AutomaticEnv()
	for _, key := range []string{"model", "endpoint"} {
		if err := v.BindEnv(key); err != nil {
			return nil, errs.E(errs.Configuration, "load config", err)
		}
	}
	if err := v.BindEnv("api_key", "CODEWIZARD_API_KEY", "MISTRAL_API_KEY"); err != nil {
		return nil, errs.E(errs.Configuration, "load config", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errs.E(errs.Configuration, "load config", err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, errs.Errorf(errs.Configuration, "load config", "error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.Errorf(errs.Configuration, "load config", "error unmarshaling config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return cfg, nil
}

// Validate applies the fail-fast rules that need no network access.
func (c *Config) Validate() error {
	p, err := llm.ParseProvider(c.Provider)
	if err != nil {
		return err
	}
	if c.Timeout < MinTimeout {
		return errs.Errorf(errs.Configuration, "validate config", "timeout must be at least %v, got %v (give a unit, e.g. 30s)", MinTimeout, c.Timeout)
	}
	if p == llm.ProviderCloud && c.APIKey == "" {
		return errs.Errorf(errs.Configuration, "validate config", "MISTRAL_API_KEY is not set; export it or choose --backend local")
	}
	if strings.TrimSpace(c.Model) == "" && c.Model != "" {
		return errs.Errorf(errs.Configuration, "validate config", "model name is blank")
	}
	return nil
}

// BackendConfig returns the backend settings with per-provider defaults filled in.
func (c *Config) BackendConfig() llm.Config {
	p := llm.Provider(c.Provider)
	cfg := llm.Config{
		Provider: p,
		APIKey:   c.APIKey,
		Model:    strings.TrimSpace(c.Model),
		Endpoint: strings.TrimSpace(c.Endpoint),
	}
	if cfg.Model == "" {
		cfg.Model = llm.DefaultModel(p)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = llm.DefaultEndpoint(p)
	}
	return cfg
}
