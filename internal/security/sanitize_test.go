package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain label", "urban-left-turn", "urban-left-turn"},
		{"spaces become underscores", "left turn 01", "left_turn_01"},
		{"path separators stripped", "../../etc/passwd", "etc_passwd"},
		{"repeated junk collapses", "a//\\\\b", "a_b"},
		{"empty input", "", "unknown"},
		{"only junk", "///", "unknown"},
		{"dots and dashes kept", "scene.v2-final", "scene.v2-final"},
		{"unicode replaced", "scéne", "sc_ne"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := SanitizeFilename(long)
	if len(got) > 128 {
		t.Errorf("sanitized name is %d chars, want at most 128", len(got))
	}
}
