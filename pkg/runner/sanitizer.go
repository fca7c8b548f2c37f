package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxInputSize bounds a single chat message in bytes.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "RAMAL_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer normalizes inbound chat text before it reaches the engine.
// Oversized or malformed input is rejected rather than truncated so the
// session never advances on a partial reply.
type Sanitizer struct {
	MaxSize int
}

// NewSanitizer reads the size limit from the environment, falling back to
// DefaultMaxInputSize.
func NewSanitizer() Sanitizer {
	return Sanitizer{MaxSize: maxInputSize()}
}

// Clean validates input and strips control characters other than
// newline, tab and carriage return. Surrounding whitespace is trimmed.
func (s Sanitizer) Clean(input string) (string, error) {
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unsafeControl) >= 0 {
		input = strings.Map(func(r rune) rune {
			if unsafeControl(r) {
				return -1
			}
			return r
		}, input)
	}
	return strings.TrimSpace(input), nil
}

// SanitizeInput cleans input with the environment-configured limit.
func SanitizeInput(input string) (string, error) {
	return NewSanitizer().Clean(input)
}

func unsafeControl(r rune) bool {
	switch r {
	case '\n', '\t', '\r':
		return false
	}
	return unicode.IsControl(r)
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
