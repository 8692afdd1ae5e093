package config

import (
	"fmt"
	"strings"
	"unicode"
)

// argvScanner splits a shell-like command line without invoking a shell.
// Single and double quotes group words; a backslash escapes the next rune.
type argvScanner struct {
	words   []string
	word    strings.Builder
	started bool
	quote   rune
	escape  bool
}

func (s *argvScanner) emit() {
	if !s.started {
		return
	}
	s.words = append(s.words, s.word.String())
	s.word.Reset()
	s.started = false
}

func (s *argvScanner) push(r rune) {
	s.word.WriteRune(r)
	s.started = true
}

func (s *argvScanner) feed(r rune) {
	switch {
	case s.escape:
		s.push(r)
		s.escape = false
	case r == '\\':
		s.escape = true
	case s.quote != 0 && r == s.quote:
		s.quote = 0
	case s.quote != 0:
		s.push(r)
	case r == '\'' || r == '"':
		s.quote = r
		s.started = true
	case unicode.IsSpace(r):
		s.emit()
	default:
		s.push(r)
	}
}

// parseArgv tokenizes a configured command. Blank or '#'-prefixed input
// yields no argv.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var s argvScanner
	for _, r := range input {
		s.feed(r)
	}
	switch {
	case s.escape:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case s.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	s.emit()
	return s.words, nil
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
