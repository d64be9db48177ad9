package config

import (
	"fmt"
)

const (
	// LoggerLevelDefault is a default logger level.
	LoggerLevelDefault = "info"

	// LoggerEncodingDefault is a default logger encoding.
	LoggerEncodingDefault = "console"

	// PackBufferSizeDefault is a default length in bytes of bit buffers.
	PackBufferSizeDefault = 4096

	// PackIndexCodecDefault is a default compression of the archive index.
	PackIndexCodecDefault = "zstd"
)

// LoggerLevel returns the value of "level" config parameter from "logger"
// section.
//
// Returns LoggerLevelDefault if the value is not a non-empty string.
func LoggerLevel(c *Config) string {
	if v := StringSafe(c.Sub("logger"), "level"); v != "" {
		return v
	}

	return LoggerLevelDefault
}

// LoggerEncoding returns the value of "encoding" config parameter from
// "logger" section.
//
// Returns LoggerEncodingDefault if the value is not a non-empty string.
func LoggerEncoding(c *Config) string {
	if v := StringSafe(c.Sub("logger"), "encoding"); v != "" {
		return v
	}

	return LoggerEncodingDefault
}

// LoggerTimestamp returns the value of "timestamp" config parameter from
// "logger" section and whether it is set.
func LoggerTimestamp(c *Config) (bool, bool, error) {
	sub := c.Sub("logger")
	if !sub.IsSet("timestamp") {
		return false, false, nil
	}

	v, err := Bool(sub, "timestamp")
	if err != nil {
		return false, false, fmt.Errorf("invalid logger.timestamp: %w", err)
	}

	return v, true, nil
}

// PackMultithreaded returns the value of "multithreaded" config parameter
// from "pack" section.
//
// Returns true if the value is not set.
func PackMultithreaded(c *Config) (bool, error) {
	sub := c.Sub("pack")
	if !sub.IsSet("multithreaded") {
		return true, nil
	}

	v, err := Bool(sub, "multithreaded")
	if err != nil {
		return false, fmt.Errorf("invalid pack.multithreaded: %w", err)
	}

	return v, nil
}

// PackBufferSize returns the value of "buffer_size" config parameter from
// "pack" section.
//
// Returns PackBufferSizeDefault if the value is not set. Non-positive
// values are rejected.
func PackBufferSize(c *Config) (int, error) {
	sub := c.Sub("pack")
	if !sub.IsSet("buffer_size") {
		return PackBufferSizeDefault, nil
	}

	v, err := Int(sub, "buffer_size")
	if err != nil {
		return 0, fmt.Errorf("invalid pack.buffer_size: %w", err)
	}

	if v <= 0 {
		return 0, fmt.Errorf("non-positive pack.buffer_size %d", v)
	}

	return v, nil
}

// PackIndex returns the value of "index" config parameter from "pack"
// section.
//
// Returns true if the value is not set.
func PackIndex(c *Config) (bool, error) {
	sub := c.Sub("pack")
	if !sub.IsSet("index") {
		return true, nil
	}

	v, err := Bool(sub, "index")
	if err != nil {
		return false, fmt.Errorf("invalid pack.index: %w", err)
	}

	return v, nil
}

// PackIndexCodec returns the value of "index_codec" config parameter from
// "pack" section.
//
// Returns PackIndexCodecDefault if the value is not a non-empty string.
func PackIndexCodec(c *Config) string {
	if v := StringSafe(c.Sub("pack"), "index_codec"); v != "" {
		return v
	}

	return PackIndexCodecDefault
}

// MetricsTextfile returns the value of "textfile" config parameter from
// "metrics" section. Empty value means metrics are not exported.
func MetricsTextfile(c *Config) string {
	return StringSafe(c.Sub("metrics"), "textfile")
}
