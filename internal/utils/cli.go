package utils

import (
	"errors"
	"strings"

	"github.com/kballard/go-shellquote"
)

var ErrEmptyLine = errors.New("empty command")

// SplitStringIntoCommandAndArguments splits one line of client input into a
// command, a key and a value using shell quoting rules, so that
//
//	set "my key" 'a value with spaces'
//
// yields a key and a value that both contain spaces. Words after the key
// that are not quoted together are joined with single spaces.
func SplitStringIntoCommandAndArguments(line string) (cmd, key, value string, err error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return "", "", "", err
	}
	if len(words) == 0 {
		return "", "", "", ErrEmptyLine
	}

	cmd = words[0]
	if len(words) > 1 {
		key = words[1]
	}
	if len(words) > 2 {
		value = strings.Join(words[2:], " ")
	}
	return cmd, key, value, nil
}
