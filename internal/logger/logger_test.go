package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestLoggerWritesTerminalAndJSON(t *testing.T) {
	var terminal bytes.Buffer
	file := &bufferCloser{}
	l := NewWithWriters(&terminal, file)

	l.Info("webhook", "received event evt_123")

	assert.Contains(t, terminal.String(), "received event evt_123")
	assert.Contains(t, terminal.String(), "WEBHOOK")

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "WEBHOOK", entry.Category)
	assert.Equal(t, "received event evt_123", entry.Message)
	assert.Equal(t, "logger_test.go", entry.File)
}

func TestFatalExits(t *testing.T) {
	l := NewWithWriters(nil, nil)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "STRIPE_TICKETS_API_KEY not set")

	assert.Equal(t, 1, code)
}

func TestCloseClosesFile(t *testing.T) {
	file := &bufferCloser{}
	l := NewWithWriters(nil, file)

	l.Close()

	assert.True(t, file.closed)
	assert.Contains(t, file.String(), "Closing log file")
}
