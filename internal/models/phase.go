package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PhaseCount is a single development phase with the number of programmes in it
type PhaseCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PhaseSnapshot is an ordered label -> count mapping.
// Absent phases are not present; a label appears at most once.
type PhaseSnapshot []PhaseCount

// Has reports whether label is already present, ignoring case
func (p PhaseSnapshot) Has(label string) bool {
	for _, pc := range p {
		if strings.EqualFold(pc.Label, label) {
			return true
		}
	}
	return false
}

// Get returns the count for label, ignoring case
func (p PhaseSnapshot) Get(label string) (int, bool) {
	for _, pc := range p {
		if strings.EqualFold(pc.Label, label) {
			return pc.Count, true
		}
	}
	return 0, false
}

// Add appends label unless it is already present. Negative counts are ignored.
func (p *PhaseSnapshot) Add(label string, count int) bool {
	if label == "" || count < 0 || p.Has(label) {
		return false
	}
	*p = append(*p, PhaseCount{Label: label, Count: count})
	return true
}

// Labels returns the labels in insertion order
func (p PhaseSnapshot) Labels() []string {
	labels := make([]string, 0, len(p))
	for _, pc := range p {
		labels = append(labels, pc.Label)
	}
	return labels
}

// MarshalJSON encodes the snapshot as a JSON object preserving insertion order
func (p PhaseSnapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pc := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pc.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", pc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document
func (p *PhaseSnapshot) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("phase snapshot: expected object")
	}

	var out PhaseSnapshot
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("phase snapshot: expected string key")
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("phase snapshot: count for %q: %w", label, err)
		}
		out.Add(label, count)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}
