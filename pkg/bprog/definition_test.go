package bprog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/bprog"
)

func TestParseDefinition_WeakTyping(t *testing.T) {
	def, err := bprog.ParseDefinition([]byte(`
name: weak
globals: {count: 3, on: true}
threads:
  - name: t
    steps:
      - line: "4"
        exec: [1, {line: 2, depth: 1}]
        request: go
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"count": "3", "on": "1"}, def.Globals)
	step := def.Threads[0].Steps[0]
	assert.Equal(t, 4, step.Line)
	assert.Equal(t, []bprog.ExecLine{{Line: 1}, {Line: 2, Depth: 1}}, step.Exec)
	assert.Equal(t, []string{"go"}, step.Request)
}

func TestParseDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "threads: [unclosed"},
		{"no threads", "name: empty"},
		{"unknown key", "threads: [{name: t, steps: [{line: 1, request: a}], colour: red}]"},
		{"unnamed thread", "threads: [{steps: [{line: 1, request: a}]}]"},
		{"duplicate thread", "threads: [{name: t, steps: [{line: 1, request: a}]}, {name: t, steps: [{line: 2, request: b}]}]"},
		{"no steps", "threads: [{name: t}]"},
		{"no line", "threads: [{name: t, steps: [{request: a}]}]"},
		{"bad exec", "threads: [{name: t, steps: [{line: 2, exec: [{line: 0}], request: a}]}]"},
		{"busy loop", "threads: [{name: t, loop: true, steps: [{line: 1, log: spin}]}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bprog.ParseDefinition([]byte(tt.yaml))
			assert.ErrorIs(t, err, bprog.ErrInvalidProgram)
		})
	}
}

func TestLoadDefinition_MissingFile(t *testing.T) {
	_, err := bprog.LoadDefinition("testdata/missing.yaml")
	assert.Error(t, err)
}
