// Package approval applies supervisor replies (APPROVE, MODIFY, REJECT,
// ASK) to open supply requests.
package approval

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Command is a supervisor decision keyword.
type Command string

const (
	Approve Command = "APPROVE"
	Modify  Command = "MODIFY"
	Reject  Command = "REJECT"
	Ask     Command = "ASK"
)

// ErrNoCommand is returned for replies that are not approval commands.
var ErrNoCommand = errors.New("not an approval command")

// ModifyUsage is shown when MODIFY lacks a positive whole number.
const ModifyUsage = "MODIFY requires a positive number. Example: MODIFY 300"

// ValidationError is a malformed command. Message is safe to send back
// to the supervisor.
type ValidationError struct {
	Command Command
	Message string
}

func (e *ValidationError) Error() string {
	return string(e.Command) + ": " + e.Message
}

// Parsed is a recognized supervisor command.
type Parsed struct {
	Command Command
	// Ref is the lower-cased 4-hex request reference, empty if none.
	Ref string
	// Args is the remainder with the reference removed. Empty for
	// MODIFY, whose argument is consumed into Quantity.
	Args string
	// Quantity is set for MODIFY.
	Quantity int
}

var (
	commandPattern = regexp.MustCompile(`(?is)^(approve|modify|reject|ask)(?:\s+(.*))?$`)
	refPattern     = regexp.MustCompile(`(?i)\bREQ-([0-9a-f]{4})\b`)
)

// Parse reads a supervisor reply. It returns ErrNoCommand when the reply
// does not start with a command word and *ValidationError when MODIFY is
// not followed by a positive integer.
func Parse(body string) (Parsed, error) {
	m := commandPattern.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return Parsed{}, ErrNoCommand
	}

	p := Parsed{Command: Command(strings.ToUpper(m[1]))}
	p.Ref, p.Args = extractRef(m[2])

	if p.Command == Modify {
		n, err := strconv.Atoi(p.Args)
		if err != nil || n <= 0 {
			return Parsed{}, &ValidationError{Command: Modify, Message: ModifyUsage}
		}
		p.Quantity = n
		p.Args = ""
	}
	return p, nil
}

// extractRef removes the first REQ-xxxx token from args.
func extractRef(args string) (ref, rest string) {
	loc := refPattern.FindStringSubmatchIndex(args)
	if loc == nil {
		return "", strings.TrimSpace(args)
	}
	ref = strings.ToLower(args[loc[2]:loc[3]])
	before := strings.TrimSpace(args[:loc[0]])
	after := strings.TrimSpace(args[loc[1]:])
	switch {
	case before == "":
		return ref, after
	case after == "":
		return ref, before
	default:
		return ref, before + " " + after
	}
}
