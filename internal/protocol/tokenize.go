// Package protocol implements the textual wire format toward clients
// (spec.md §6.1): whitespace-delimited lines, first token selects the
// command, remaining tokens are mostly "key=value" pairs.
package protocol

import (
	"strconv"
	"strings"
)

// Tokens is a tokenized protocol line: Name is the first token (the
// command), Raw is the full original line, and Pairs holds every
// "key=value" token seen after it, keyed by name (last occurrence wins,
// matching the original parser's linear scan).
type Tokens struct {
	Name string
	Raw  string
	Args []string
	Pairs map[string]string
}

// Tokenize splits a protocol line into its command name and key=value
// pairs. Non key=value tokens (e.g. bare numbers in canceltiles) are kept
// in order in Args.
func Tokenize(line string) Tokens {
	fields := strings.Fields(line)
	t := Tokens{Raw: line, Pairs: make(map[string]string)}
	if len(fields) == 0 {
		return t
	}
	t.Name = fields[0]
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, "="); ok {
			t.Pairs[k] = v
		} else {
			t.Args = append(t.Args, f)
		}
	}
	return t
}

// Int returns the integer value of key, or 0 if absent/unparsable.
func (t Tokens) Int(key string) int {
	v, _ := strconv.Atoi(t.Pairs[key])
	return v
}

// IntList parses a comma-separated key's value into a slice of ints.
func (t Tokens) IntList(key string) []int {
	raw := t.Pairs[key]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Str returns the string value of key, or "" if absent.
func (t Tokens) Str(key string) string {
	return t.Pairs[key]
}

// Has reports whether key was present in the pairs, even with an empty
// value — used for the tile "id=" preview marker.
func (t Tokens) Has(key string) bool {
	_, ok := t.Pairs[key]
	return ok
}

// KeyUpToVer returns the raw line with the "ver=..." token (if any)
// stripped, used for comparing two "tile ..." lines for dedup purposes
// while ignoring their version (§4.1 "tile" rule).
func KeyUpToVer(line string) string {
	fields := strings.Fields(line)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "ver=") {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
