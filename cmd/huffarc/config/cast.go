package config

import (
	"github.com/spf13/cast"
)

// String reads configuration value from c by name and casts it to string.
func String(c *Config, name string) (string, error) {
	return cast.ToStringE(c.Value(name))
}

// StringSafe reads configuration value from c by name and casts it to
// string.
//
// Returns "" if value can not be casted.
func StringSafe(c *Config, name string) string {
	return cast.ToString(c.Value(name))
}

// Bool reads configuration value from c by name and casts it to bool.
func Bool(c *Config, name string) (bool, error) {
	return cast.ToBoolE(c.Value(name))
}

// Int reads configuration value from c by name and casts it to int.
func Int(c *Config, name string) (int, error) {
	return cast.ToIntE(c.Value(name))
}
