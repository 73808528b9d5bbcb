package sisclient

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/quadra-edu/sisapi/pkg/sisapi"
)

// fileConfig is the on-disk shape of a client configuration.
type fileConfig struct {
	Server       string        `mapstructure:"server"`
	Endpoint     string        `mapstructure:"endpoint"`
	AccessKey    string        `mapstructure:"access_key"`
	KeyStorePath string        `mapstructure:"key_store"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	UserAgent    string        `mapstructure:"user_agent"`
	Debug        bool          `mapstructure:"debug"`
}

// LoadConfig reads a client configuration from a YAML file. Every key
// can be overridden through the environment with a SISAPI_ prefix,
// e.g. SISAPI_ACCESS_KEY. A key_store path turns key persistence on
// via a file-backed store.
func LoadConfig(path string) (*sisapi.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SISAPI")
	v.AutomaticEnv()

	v.SetDefault("server", sisapi.ServerLive)

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw fileConfig

	err = v.Unmarshal(&raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	config := &sisapi.Config{
		Server:       raw.Server,
		Endpoint:     raw.Endpoint,
		AccessKey:    raw.AccessKey,
		HTTPTimeout:  raw.HTTPTimeout,
		RetryMax:     raw.RetryMax,
		RetryWaitMin: raw.RetryWaitMin,
		RetryWaitMax: raw.RetryWaitMax,
		UserAgent:    raw.UserAgent,
		Debug:        raw.Debug,
	}

	if raw.KeyStorePath != "" {
		keys, err := sisapi.NewFileKeyStore(raw.KeyStorePath)
		if err != nil {
			return nil, err
		}

		config.Keys = keys
	}

	return config, nil
}
