// Package config loads the settings shared by the commands.
//
// Values come, by increasing priority, from the built-in defaults, an optional
// config file and GDCPQ_* environment variables. The commands use them as
// their flag defaults.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "GDCPQ"

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	APIURL       string        `mapstructure:"api_url"`
	Workers      int           `mapstructure:"workers"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	ValueColumn  string        `mapstructure:"value_column"`
	LabelField   string        `mapstructure:"label_field"`
	Compression  string        `mapstructure:"compression"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "https://api.gdc.cancer.gov")
	v.SetDefault("workers", 4)
	v.SetDefault("chunk_size", 8192)
	v.SetDefault("retries", 2)
	v.SetDefault("retry_backoff", time.Second)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("value_column", "tpm_unstranded")
	v.SetDefault("label_field", "sample_type")
	v.SetDefault("compression", "zstd")
}

// Load reads the configuration. path may be empty, in which case only the
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", path)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return errors.Wrapf(ErrInvalid, "workers must be at least 1, got %d", c.Workers)
	case c.ChunkSize < 1:
		return errors.Wrapf(ErrInvalid, "chunk_size must be positive, got %d", c.ChunkSize)
	case c.Retries < 0:
		return errors.Wrapf(ErrInvalid, "retries must not be negative, got %d", c.Retries)
	case c.Timeout < 0:
		return errors.Wrapf(ErrInvalid, "timeout must not be negative, got %s", c.Timeout)
	case c.APIURL == "":
		return errors.Wrap(ErrInvalid, "api_url must be set")
	}

	return nil
}
