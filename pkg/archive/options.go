package archive

import (
	"time"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"go.uber.org/zap"
)

// MetricRegister accounts processed archive entries.
type MetricRegister interface {
	AddFile(op string, original, encoded uint64, d time.Duration)
	IncFailures(op string)
}

type noopMetrics struct{}

func (noopMetrics) AddFile(string, uint64, uint64, time.Duration) {}

func (noopMetrics) IncFailures(string) {}

// DefaultMaxPending is a default limit of entries being encoded or waiting
// for their turn to be appended by Packer.
const DefaultMaxPending = 16

// Option is an option for Packer and Unpacker constructors.
type Option func(*cfg)

type cfg struct {
	log *zap.Logger

	metrics MetricRegister

	bufSize int

	// maxPending limits entries submitted to the pool but not yet appended
	// to the container.
	maxPending int

	// progress receives number of original bytes of each processed entry.
	progress func(uint64)
}

func defaultCfg() *cfg {
	return &cfg{
		log:        zap.NewNop(),
		metrics:    noopMetrics{},
		bufSize:    bitio.DefaultBufferSize,
		maxPending: DefaultMaxPending,
		progress:   func(uint64) {},
	}
}

// WithLogger returns option to set logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics returns option to set metrics register.
func WithMetrics(m MetricRegister) Option {
	return func(c *cfg) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBufferSize returns option to set length in bytes of bit buffers.
func WithBufferSize(size int) Option {
	return func(c *cfg) {
		if size > 0 {
			c.bufSize = size
		}
	}
}

// WithProgress returns option to set callback receiving the original size
// of each processed entry. The callback is called sequentially.
func WithProgress(f func(uint64)) Option {
	return func(c *cfg) {
		if f != nil {
			c.progress = f
		}
	}
}

// WithMaxPending returns option to limit the number of entries Packer keeps
// in memory: encoded or being encoded but not yet appended to the
// container. The limit should be greater than the pool size for the pool to
// be fully loaded. Non-positive values are ignored.
func WithMaxPending(n int) Option {
	return func(c *cfg) {
		if n > 0 {
			c.maxPending = n
		}
	}
}
