package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "schema.json")

	require.NoError(t, run(Opts{Output: out}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Config"`)
	assert.Contains(t, string(data), `"min_importance"`)

	require.NoError(t, run(Opts{Output: out, Check: true}), "fresh file passes the check")

	require.NoError(t, os.WriteFile(out, []byte(`{"$defs":{}}`), 0o600))
	err = run(Opts{Output: out, Check: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")

	err = run(Opts{Output: filepath.Join(t.TempDir(), "missing.json"), Check: true})
	require.Error(t, err)
}

func TestSameJSON(t *testing.T) {
	assert.True(t, sameJSON([]byte(`{"a": 1}`), []byte("{\n  \"a\": 1\n}")))
	assert.False(t, sameJSON([]byte(`{"a": 1}`), []byte(`{"a": 2}`)))
	assert.False(t, sameJSON([]byte(`{`), []byte(`{}`)))
}
