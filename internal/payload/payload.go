// Package payload decodes the opaque output strings carried by command
// records. Agents write whatever their tooling produces: JSON results,
// JSON with log lines prepended, in-band error envelopes, or nothing at
// all while the command is still running. The codec extracts the first
// JSON value it can find and classifies everything else, so callers can
// degrade per record instead of failing a whole view.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// snippetLen caps how much raw output an error message carries.
const snippetLen = 120

// DecodeError reports output text that could not be interpreted as a
// JSON value. Snippet holds the leading portion of the offending text.
type DecodeError struct {
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding command output %q: %v", e.Snippet, e.Err)
	}
	return fmt.Sprintf("no JSON value in command output %q", e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RemoteError is a failure the agent reported in-band as an
// {"error": "..."} envelope. The command record itself may still read
// success; the envelope is authoritative.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "agent reported: " + e.Message
}

// Parse extracts the first JSON value embedded in a command's output.
//
// An empty or whitespace-only string means the result has not arrived
// yet and returns (nil, nil) — absence is not an error. Leading noise
// (log prefixes, timestamps) before the first '{' or '[' is skipped,
// and anything after the first complete value is ignored. The first
// brace anchors the only decode attempt; scanning does not resume
// after a failed candidate.
func Parse(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return nil, &DecodeError{Snippet: snippet(trimmed)}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed[start:]))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, &DecodeError{Snippet: snippet(trimmed), Err: err}
	}

	if msg, ok := errorEnvelope(value); ok {
		return nil, &RemoteError{Message: msg}
	}
	return value, nil
}

// Decode parses a command's output and unmarshals it into T. The bool
// result distinguishes "not arrived yet" (false, nil error) from a
// decoded value (true). Type mismatches surface as a DecodeError.
func Decode[T any](raw string) (T, bool, error) {
	var zero T

	value, err := Parse(raw)
	if err != nil {
		return zero, false, err
	}
	if value == nil {
		return zero, false, nil
	}

	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return zero, false, &DecodeError{Snippet: snippet(string(value)), Err: err}
	}
	return out, true, nil
}

// ParsePercent converts an agent-reported percentage display string
// ("42.7%", "12 %", "0.3") into its numeric value. Unparseable or
// empty input yields nil, which series consumers record as a gap.
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// errorEnvelope reports whether a decoded value is an object carrying a
// non-empty "error" field.
func errorEnvelope(value json.RawMessage) (string, bool) {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		return "", false
	}
	return envelope.Error, envelope.Error != ""
}

func snippet(s string) string {
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}
