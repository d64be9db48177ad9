package testutil

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

const (
	logLevelKey   = "level"
	logMessageKey = "msg"
	logTimeKey    = "ts"
)

// LogEntry is a decoded [zap.Logger] record.
type LogEntry struct {
	Level   zapcore.Level
	Message string
	// Integer values are represented as [json.Number].
	Fields map[string]any
}

// LogRecorder collects [zap.Logger] records in memory.
type LogRecorder struct {
	t   testing.TB
	mtx sync.Mutex
	buf zaptest.Buffer
}

// NewLogRecorder returns logger writing JSON records with severity not less
// than minLevel into the returned recorder.
func NewLogRecorder(t testing.TB, minLevel zapcore.Level) (*zap.Logger, *LogRecorder) {
	lr := &LogRecorder{t: t}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.LevelKey = logLevelKey
	encCfg.MessageKey = logMessageKey
	encCfg.TimeKey = logTimeKey

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), lr, minLevel)

	return zap.New(core), lr
}

// Write implements [zapcore.WriteSyncer].
func (x *LogRecorder) Write(p []byte) (int, error) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	return x.buf.Write(p)
}

// Sync implements [zapcore.WriteSyncer].
func (x *LogRecorder) Sync() error { return nil }

// Entries returns all recorded entries in order.
func (x *LogRecorder) Entries() []LogEntry {
	x.mtx.Lock()
	lines := x.buf.Lines()
	x.mtx.Unlock()

	res := make([]LogEntry, len(lines))

	var err error
	for i := range lines {
		dec := json.NewDecoder(strings.NewReader(lines[i]))
		dec.UseNumber()

		var m map[string]any
		require.NoError(x.t, dec.Decode(&m), i)

		lvl, ok := m[logLevelKey].(string)
		require.True(x.t, ok, i)

		res[i].Level, err = zapcore.ParseLevel(lvl)
		require.NoError(x.t, err, i)

		res[i].Message, ok = m[logMessageKey].(string)
		require.True(x.t, ok, i)

		delete(m, logTimeKey)
		delete(m, logLevelKey)
		delete(m, logMessageKey)
		res[i].Fields = m
	}

	return res
}

// Filter returns recorded entries with the given message.
func (x *LogRecorder) Filter(msg string) []LogEntry {
	var res []LogEntry
	for _, e := range x.Entries() {
		if e.Message == msg {
			res = append(res, e)
		}
	}
	return res
}

// AssertEmpty asserts that nothing has been logged.
func (x *LogRecorder) AssertEmpty() {
	require.Empty(x.t, x.Entries())
}

// AssertMessages asserts that log consists of the given ordered messages.
func (x *LogRecorder) AssertMessages(msgs ...string) {
	es := x.Entries()

	got := make([]string, len(es))
	for i := range es {
		got[i] = es[i].Message
	}

	require.Equal(x.t, msgs, got)
}

// AssertContains asserts that log contains the given entry.
func (x *LogRecorder) AssertContains(e LogEntry) {
	require.Contains(x.t, x.Entries(), e)
}
