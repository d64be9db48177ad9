package config

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/huffarc/cmd/internal/configvalidator"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is a prefix of ENV variables related to huffarc
	// configuration.
	EnvPrefix = "huffarc"

	// EnvSeparator is a section separator in ENV variables.
	EnvSeparator = "_"

	separator = "."
)

// Config represents a group of named values structured by tree type.
//
// Sub-trees are named configuration sub-sections, leaves are named
// configuration values. Values are taken from command line flags, ENV
// variables and configuration file in that order.
type Config struct {
	v *viper.Viper

	path []string
}

// Option is an option for Config constructor.
type Option func(*opts)

type opts struct {
	path string
}

// WithConfigFile returns option to read values from the file. Format is
// resolved by extension.
func WithConfigFile(path string) Option {
	return func(o *opts) {
		o.path = path
	}
}

// New creates a new Config instance.
func New(options ...Option) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(separator, EnvSeparator))

	var o opts
	for i := range options {
		options[i](&o)
	}

	if o.path != "" {
		v.SetConfigFile(o.path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := configvalidator.CheckForUnknownFields(v.AllSettings(), schema{}); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", o.path, err)
		}
	}

	return &Config{
		v: v,
	}, nil
}

// Sub returns subsection of the Config by name.
func (x *Config) Sub(name string) *Config {
	return &Config{
		v:    x.v,
		path: append(x.path[:len(x.path):len(x.path)], name),
	}
}

// Value returns configuration value by name.
//
// Result can be casted to a particular type via corresponding function
// (e.g. Int).
func (x *Config) Value(name string) any {
	return x.v.Get(x.key(name))
}

// IsSet checks whether the value is set by any source.
func (x *Config) IsSet(name string) bool {
	return x.v.IsSet(x.key(name))
}

// BindFlag makes changed command line flag override the named value.
func (x *Config) BindFlag(name string, f *pflag.Flag) error {
	if f == nil {
		return fmt.Errorf("missing flag for %s", x.key(name))
	}

	return x.v.BindPFlag(x.key(name), f)
}

func (x *Config) key(name string) string {
	return strings.Join(append(x.path[:len(x.path):len(x.path)], name), separator)
}
