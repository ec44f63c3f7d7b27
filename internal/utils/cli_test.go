package utils

import (
	"errors"
	"testing"
)

func TestSplitStringIntoCommandAndArguments(t *testing.T) {
	tests := []struct {
		line            string
		cmd, key, value string
	}{
		{"ping", "ping", "", ""},
		{"get name", "get", "name", ""},
		{"set name radioactive", "set", "name", "radioactive"},
		{"set name hello   world", "set", "name", "hello world"},
		{`set "my key" 'a  value'`, "set", "my key", "a  value"},
		{`set k ""`, "set", "k", ""},
	}

	for _, tt := range tests {
		cmd, key, value, err := SplitStringIntoCommandAndArguments(tt.line)
		if err != nil {
			t.Fatalf("%q: %v", tt.line, err)
		}
		if cmd != tt.cmd || key != tt.key || value != tt.value {
			t.Fatalf("%q = (%q, %q, %q), want (%q, %q, %q)", tt.line, cmd, key, value, tt.cmd, tt.key, tt.value)
		}
	}
}

func TestSplitStringIntoCommandAndArgumentsErrors(t *testing.T) {
	if _, _, _, err := SplitStringIntoCommandAndArguments("   "); !errors.Is(err, ErrEmptyLine) {
		t.Fatalf("blank line: got %v", err)
	}
	if _, _, _, err := SplitStringIntoCommandAndArguments(`set k "unterminated`); err == nil {
		t.Fatal("unterminated quote was accepted")
	}
}
