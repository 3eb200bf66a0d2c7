// Package command implements the text protocol of the control channel.
package command

import (
	"bytes"
	"fmt"
)

// Command is a recognized control command.
type Command int

// Commands
const (
	Unknown Command = iota
	Start
	Stop
	WhoRU
	Status
)

var commandNames = []string{"", "START", "STOP", "WHORU", "STATUS"}

// String implements fmt.Stringer.
func (c Command) String() string {
	if c > Unknown && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "UNKNOWN"
}

// MatchMode selects how input is compared to the vocabulary.
type MatchMode string

// Match modes
const (
	// MatchPrefix accepts any input starting with a keyword, e.g. STARTUP is START.
	MatchPrefix MatchMode = "prefix"
	// MatchExact requires the whole input, minus trailing whitespace and NUL,
	// to be the keyword.
	MatchExact MatchMode = "exact"
)

// Valid checks the mode is known.
func (m MatchMode) Valid() bool {
	return m == MatchPrefix || m == MatchExact
}

// MaxLength is the maximum number of input bytes considered.
const MaxLength = 19

// Responses
const (
	RespRunning     = "RUNNING"
	RespStopped     = "STOPPED"
	RespUnknown     = "UNKNOWN COMMAND"
	DefaultIdentity = "NPG-LITE"
)

// Normalize truncates to MaxLength and upper-cases ASCII letters.
func Normalize(raw []byte) []byte {
	if len(raw) > MaxLength {
		raw = raw[:MaxLength]
	}
	out := make([]byte, len(raw))
	for n, c := range raw {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[n] = c
	}
	return out
}

// Parse recognizes a command.
func Parse(raw []byte, mode MatchMode) Command {
	in := Normalize(raw)
	if mode == MatchExact {
		in = bytes.TrimRight(in, " \t\r\n\x00")
	}
	for n := len(commandNames) - 1; n > 0; n-- {
		keyword := []byte(commandNames[n])
		if mode == MatchExact {
			if bytes.Equal(in, keyword) {
				return Command(n)
			}
		} else if bytes.HasPrefix(in, keyword) {
			return Command(n)
		}
	}
	return Unknown
}

// ParseMatchMode parses a MatchMode from string.
func ParseMatchMode(s string) (MatchMode, error) {
	if m := MatchMode(s); m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("invalid match mode %q", s)
}
