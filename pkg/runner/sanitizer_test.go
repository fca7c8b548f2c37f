package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizer_SizeLimit(t *testing.T) {
	s := Sanitizer{MaxSize: 16}

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under limit", 15, false},
		{"exact limit", 16, false},
		{"over limit", 17, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Clean(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSanitizer_ControlChars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ACEPTO", "ACEPTO"},
		{"safe controls", "linea1\nlinea2\tx", "linea1\nlinea2\tx"},
		{"ansi escape", "\x1b[31mNO\x1b[0m", "[31mNO[0m"},
		{"null byte", "1\x00", "1"},
		{"surrounding space", "  acepto \n", "acepto"},
		{"accented", "Sí, acepto", "Sí, acepto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitizer{}.Clean(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizer_InvalidUTF8(t *testing.T) {
	_, err := Sanitizer{}.Clean("ok\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "4")

	_, err := SanitizeInput("12345")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	got, err := SanitizeInput("1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", got)
}

func TestSanitizeInput_BadEnvFallsBack(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "nope")
	assert.Equal(t, DefaultMaxInputSize, NewSanitizer().MaxSize)
}
