package proto

import (
	"strings"
)

// MaxDatagramSize bounds a single unchunked wire message. Larger payloads
// (files) must be chunked.
const MaxDatagramSize = 1024

// Fields is the raw key-value view of one wire message.
type Fields map[string]string

// Parse splits a raw LSNP message into its key-value fields. Lines without a
// colon are ignored and duplicate keys overwrite; malformed input yields a
// partial or empty map, never an error.
func Parse(raw string) Fields {
	f := make(Fields)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		f[key] = val
	}
	return f
}

// Get returns the value for key, "" when absent.
func (f Fields) Get(key string) string { return f[key] }

// Type returns the TYPE field.
func (f Fields) Type() string { return f["TYPE"] }

type kv struct {
	k, v string
}

// format joins ordered pairs into wire form: one "KEY: VALUE" per line plus
// the terminating blank line. Pairs with empty values are skipped so optional
// fields disappear from the wire.
func format(pairs []kv) string {
	var b strings.Builder
	for _, p := range pairs {
		if p.v == "" {
			continue
		}
		b.WriteString(p.k)
		b.WriteString(": ")
		b.WriteString(p.v)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// SplitUserID splits a "name@ip" user id. The ip part is "" when the id does
// not embed one.
func SplitUserID(userID string) (name, ip string) {
	idx := strings.LastIndex(userID, "@")
	if idx < 0 {
		return userID, ""
	}
	return userID[:idx], userID[idx+1:]
}
