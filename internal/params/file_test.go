package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_KeepsDocumentOrder(t *testing.T) {
	data := []byte(`
floats:
  zeta: {start: 1, step: 1, iterations: 2}
  alpha: {start: 5, step: 0.5, iterations: 3}
strings:
  mode: fast
`)
	g := NewComplete(zerolog.Nop())
	require.NoError(t, Parse(data, g, zerolog.Nop()))

	require.Len(t, g.floats, 2)
	assert.Equal(t, "zeta", g.floats[0].Name)
	assert.Equal(t, "alpha", g.floats[1].Name)
	assert.Equal(t, 0.5, g.floats[1].Step)
	assert.Equal(t, 3, g.floats[1].Iterations)
	require.Len(t, g.strings, 1)
	assert.Equal(t, StringParam{Name: "mode", Value: "fast"}, g.strings[0])
}

func TestParse_FixesAndSkips(t *testing.T) {
	data := []byte(`
floats:
  noIter: {start: 1, step: 1, iterations: 0}
  noStep: {start: 2, step: 0, iterations: 4}
  noStart: {step: 1, iterations: 2}
  scalar: 5
  broken: {start: abc}
strings:
  ok: value
  list: [a, b]
`)
	g := NewComplete(zerolog.Nop())
	require.NoError(t, Parse(data, g, zerolog.Nop()))

	require.Len(t, g.floats, 2)
	assert.Equal(t, FloatParam{Name: "noIter", Start: 1, Step: 1, Iterations: 1}, g.floats[0])
	assert.Equal(t, FloatParam{Name: "noStep", Start: 2, Step: defaultStep, Iterations: 4}, g.floats[1])
	require.Len(t, g.strings, 1)
	assert.Equal(t, "ok", g.strings[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "floats: [unterminated"},
		{"top level list", "- a\n- b\n"},
		{"floats list", "floats: [1, 2]\n"},
		{"strings scalar", "strings: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.data), NewComplete(zerolog.Nop()), zerolog.Nop())
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	g := NewComplete(zerolog.Nop())
	require.NoError(t, Parse(nil, g, zerolog.Nop()))
	assert.Empty(t, g.floats)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("floats:\n  macFastMa: {start: 10, step: 10, iterations: 3}\n"), 0o644))

	g := NewComplete(zerolog.Nop())
	require.NoError(t, LoadFile(path, g, zerolog.Nop()))
	g.Initialize(true)
	assert.Equal(t, 3, g.TotalTasks())

	err := LoadFile(filepath.Join(dir, "missing.yaml"), NewComplete(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}
