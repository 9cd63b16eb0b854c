package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	m := Default()
	require.NoError(t, m.Validate())
	assert.Equal(t, []string{"exec", "call"}, m.Alignment.CallOpcodes)
	assert.Equal(t, "[TRACE executor]", m.Grammar.TraceMarker)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(m *Model)
		errorMsg string
	}{
		{
			name:     "no call opcodes",
			mutate:   func(m *Model) { m.Alignment.CallOpcodes = nil },
			errorMsg: "call_opcodes",
		},
		{
			name:     "hidden skip without prefix",
			mutate:   func(m *Model) { m.Alignment.HiddenCalleePrefix = "" },
			errorMsg: "hidden_callee_prefix",
		},
		{
			name:     "empty call opcode",
			mutate:   func(m *Model) { m.Alignment.CallOpcodes = []string{"exec", ""} },
			errorMsg: "empty opcodes",
		},
		{
			name:     "negative indent",
			mutate:   func(m *Model) { m.Layout.IndentWidth = -4 },
			errorMsg: "indent -4",
		},
		{
			name:     "missing trace marker",
			mutate:   func(m *Model) { m.Grammar.TraceMarker = "" },
			errorMsg: "trace_marker",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Default()
			tc.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorMsg)
		})
	}

	t.Run("hidden prefix not needed when skipping is off", func(t *testing.T) {
		m := Default()
		m.Alignment.SkipHiddenCallees = false
		m.Alignment.HiddenCalleePrefix = ""
		assert.NoError(t, m.Validate())
	})
}
