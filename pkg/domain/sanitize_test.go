package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeEventName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "hot", "hot", false},
		{"spaces kept", "pour hot", "pour hot", false},
		{"ansi stripped", "\x1b[31mhot", "[31mhot", false},
		{"null stripped", "h\x00ot", "hot", false},
		{"newline stripped", "hot\n", "hot", false},
		{"empty", "", "", true},
		{"blank", "  \t", "", true},
		{"only controls", "\x07\x00", "", true},
		{"invalid utf8", "h\xffot", "", true},
		{"exact limit", strings.Repeat("a", MaxEventNameSize), strings.Repeat("a", MaxEventNameSize), false},
		{"over limit", strings.Repeat("a", MaxEventNameSize+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeEventName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
