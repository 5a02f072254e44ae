package security

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestProfileSanitizer_DisplayName(t *testing.T) {
	s := NewProfileSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Ada Lovelace", "Ada Lovelace"},
		{"script tag", `Ada<script>alert(1)</script>`, "Ada"},
		{"bold markup", "<b>Grace</b> Hopper", "Grace Hopper"},
		{"ampersand kept", "Tom & Jerry", "Tom & Jerry"},
		{"apostrophe kept", "O'Neil", "O'Neil"},
		{"collapses whitespace", "  Alan \n  Turing ", "Alan Turing"},
		{"empty", "", ""},
		{"japanese", "山田 太郎", "山田 太郎"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.DisplayName(tt.in); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProfileSanitizer_DisplayName_Truncates(t *testing.T) {
	s := NewProfileSanitizer()

	got := s.DisplayName(strings.Repeat("あ", maxDisplayNameLength+50))
	if n := utf8.RuneCountInString(got); n != maxDisplayNameLength {
		t.Errorf("rune count = %d, want %d", n, maxDisplayNameLength)
	}
}
