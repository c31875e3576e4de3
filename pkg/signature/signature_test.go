package signature

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"wrapped in quotes", `"abc"`, "abc"},
		{"backslashes removed", `a\b\c`, "abc"},
		{"clean input unchanged", "abc", "abc"},
		{"empty", "", ""},
		{"single quote char", `"`, ""},
		{"only one layer stripped", `""abc""`, `"abc"`},
		{"leading quote only", `"abc`, `"abc`},
		{"trailing quote only", `abc"`, `abc"`},
		{"quoted with escapes", `"ey\"J\\hb"`, `ey"Jhb`},
		{"empty quoted", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_IdempotentOnCleanInput(t *testing.T) {
	for _, s := range []string{"abc", "eyJhbGciOi", "a/b+c=="} {
		once := Sanitize(s)
		assert.Equal(t, once, Sanitize(once))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 20))
	assert.Equal(t, "abcde...", Truncate("abcdefgh", 5))
	assert.Equal(t, "abc", Truncate("abc", -1))
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"cut inside two-byte rune", "héllo", 2, "h..."},
		{"cut after two-byte rune", "héllo", 3, "hé..."},
		{"cut inside four-byte rune", "a🙂b", 3, "a..."},
		{"cut before first rune completes", "🙂🙂", 2, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
