package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EncodingConsole is a human-readable log encoding.
	EncodingConsole = "console"
	// EncodingJSON is a machine-readable log encoding.
	EncodingJSON = "json"
)

// Prm groups Logger's parameters.
//
// Successful passing non-nil parameters to the NewLogger (if returned
// error is nil) leads to setting the level, encoding and timestamp mode.
type Prm struct {
	level     zapcore.Level
	encoding  string
	timestamp bool
}

// SetLevelString sets the minimum logging level. Default is info.
//
// Returns an error if s is not a string representation of a
// supporting logging level.
//
// Supports all logging levels of zapcore.
func (p *Prm) SetLevelString(s string) error {
	return p.level.UnmarshalText([]byte(s))
}

// SetEncoding sets the record encoding: EncodingConsole (default) or
// EncodingJSON.
func (p *Prm) SetEncoding(s string) error {
	switch s {
	case "", EncodingConsole, EncodingJSON:
		p.encoding = s
		return nil
	default:
		return fmt.Errorf("unsupported log encoding %q", s)
	}
}

// SetTimestamp enables ISO8601 timestamps in records.
func (p *Prm) SetTimestamp(v bool) {
	p.timestamp = v
}

// NewLogger constructs zap.Logger instance for current application.
//
// Logger is built from production logging configuration with:
//   - parameterized level;
//   - console or JSON encoding;
//   - ISO8601 time encoding when timestamps are enabled;
//   - stack traces for fatal records only.
func NewLogger(prm *Prm) (*zap.Logger, error) {
	if prm == nil {
		prm = new(Prm)
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(prm.level)
	c.Encoding = EncodingConsole
	if prm.encoding != "" {
		c.Encoding = prm.encoding
	}
	c.Sampling = nil

	if prm.timestamp {
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		c.EncoderConfig.EncodeTime = func(_ time.Time, _ zapcore.PrimitiveArrayEncoder) {}
	}

	lZap, err := c.Build(
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)),
	)
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return lZap, nil
}
