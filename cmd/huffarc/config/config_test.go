package config_test

import (
	"testing"

	"github.com/nspcc-dev/huffarc/cmd/huffarc/config"
	"github.com/nspcc-dev/huffarc/cmd/internal/configvalidator"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, config.LoggerLevelDefault, config.LoggerLevel(c))
	require.Equal(t, config.LoggerEncodingDefault, config.LoggerEncoding(c))

	_, set, err := config.LoggerTimestamp(c)
	require.NoError(t, err)
	require.False(t, set)

	mt, err := config.PackMultithreaded(c)
	require.NoError(t, err)
	require.True(t, mt)

	size, err := config.PackBufferSize(c)
	require.NoError(t, err)
	require.Equal(t, config.PackBufferSizeDefault, size)

	idx, err := config.PackIndex(c)
	require.NoError(t, err)
	require.True(t, idx)

	require.Equal(t, config.PackIndexCodecDefault, config.PackIndexCodec(c))
	require.Empty(t, config.MetricsTextfile(c))
}

func TestFile(t *testing.T) {
	c, err := config.New(config.WithConfigFile("testdata/config.yaml"))
	require.NoError(t, err)

	require.Equal(t, "debug", config.LoggerLevel(c))
	require.Equal(t, "json", config.LoggerEncoding(c))

	ts, set, err := config.LoggerTimestamp(c)
	require.NoError(t, err)
	require.True(t, set)
	require.False(t, ts)

	mt, err := config.PackMultithreaded(c)
	require.NoError(t, err)
	require.False(t, mt)

	size, err := config.PackBufferSize(c)
	require.NoError(t, err)
	require.Equal(t, 128, size)

	idx, err := config.PackIndex(c)
	require.NoError(t, err)
	require.False(t, idx)

	require.Equal(t, "lz4", config.PackIndexCodec(c))
	require.Equal(t, "/var/lib/node_exporter/huffarc.prom", config.MetricsTextfile(c))

	t.Run("missing", func(t *testing.T) {
		_, err := config.New(config.WithConfigFile("testdata/missing.yaml"))
		require.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := config.New(config.WithConfigFile("testdata/unknown.yaml"))
		require.ErrorIs(t, err, configvalidator.ErrUnknownField)
		require.ErrorContains(t, err, "pack.compression")
	})

	t.Run("invalid values", func(t *testing.T) {
		c, err := config.New(config.WithConfigFile("testdata/invalid.yaml"))
		require.NoError(t, err)

		_, err = config.PackMultithreaded(c)
		require.Error(t, err)

		_, err = config.PackBufferSize(c)
		require.Error(t, err)
	})
}

func TestEnv(t *testing.T) {
	t.Setenv("HUFFARC_PACK_BUFFER_SIZE", "512")
	t.Setenv("HUFFARC_LOGGER_LEVEL", "warn")

	c, err := config.New(config.WithConfigFile("testdata/config.yaml"))
	require.NoError(t, err)

	size, err := config.PackBufferSize(c)
	require.NoError(t, err)
	require.Equal(t, 512, size)
	require.Equal(t, "warn", config.LoggerLevel(c))
}

func TestBindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("buffer-size", 0, "")
	fs.Bool("multithreaded", true, "")

	c, err := config.New(config.WithConfigFile("testdata/config.yaml"))
	require.NoError(t, err)

	pack := c.Sub("pack")
	require.NoError(t, pack.BindFlag("buffer_size", fs.Lookup("buffer-size")))
	require.NoError(t, pack.BindFlag("multithreaded", fs.Lookup("multithreaded")))
	require.Error(t, pack.BindFlag("index", fs.Lookup("no-index")))

	// unchanged flags do not override file values
	size, err := config.PackBufferSize(c)
	require.NoError(t, err)
	require.Equal(t, 128, size)

	require.NoError(t, fs.Parse([]string{"--buffer-size=1024"}))

	size, err = config.PackBufferSize(c)
	require.NoError(t, err)
	require.Equal(t, 1024, size)

	mt, err := config.PackMultithreaded(c)
	require.NoError(t, err)
	require.False(t, mt)
}
