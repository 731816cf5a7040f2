package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\n([\\s\\S]*?)\\n```")

// Required top-level keys of a partition, each holding an array.
var partitionKeys = []string{"matched", "unmatched_bank", "unmatched_app"}

// ParsePartition extracts the partition from model output. A fenced block is
// preferred over surrounding prose; the first well-formed object in it is
// used. Every required key must be present and hold an array.
func ParsePartition(raw string) (*Partition, error) {
	text := raw
	if m := fencePattern.FindStringSubmatch(raw); m != nil && m[1] != "" {
		text = m[1]
	}

	obj, err := extractObject(text)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	for _, k := range partitionKeys {
		v, ok := fields[k]
		if !ok {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("missing key %q", k)}
		}
		if v = bytes.TrimSpace(v); len(v) == 0 || v[0] != '[' {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("key %q is not an array", k)}
		}
	}

	var p Partition
	if err := json.Unmarshal(obj, &p); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return &p, nil
}

// extractObject returns the first well-formed JSON object in text. Decoding
// starts at each '{' in turn and stops at the end of the first value, so
// trailing prose is ignored.
func extractObject(text string) ([]byte, error) {
	for offset := 0; ; {
		i := strings.IndexByte(text[offset:], '{')
		if i == -1 {
			return nil, ErrNoJSONObject
		}
		start := offset + i
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&obj); err == nil {
			return obj, nil
		}
		offset = start + 1
	}
}
