package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesFieldsAsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false).WithField("run_id", "abc")
	l.Info("pipeline started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "abc", entry["run_id"])
	assert.Equal(t, "pipeline started", entry["message"])
}

func TestNewRespectsVerbosity(t *testing.T) {
	var quiet bytes.Buffer
	New(&quiet, false).Debug("hidden")
	assert.Empty(t, quiet.String())

	var verbose bytes.Buffer
	New(&verbose, true).Debug("shown")
	assert.True(t, strings.Contains(verbose.String(), "shown"))
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").Info("nothing")
	})
}
