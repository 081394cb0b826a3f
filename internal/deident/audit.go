package deident

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"dcmkit/internal/dataset"
)

// AuditEntry records one de-identification decision: the representation
// of the field before the pass and the replacement written (nil for a
// removal). Entries serialize as [original, replacement] pairs.
type AuditEntry struct {
	Original    any
	Replacement any
}

// MarshalJSON renders the entry as a two-element array.
func (e AuditEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Original, e.Replacement})
}

// AuditLog accumulates the de-identification actions applied to one
// dataset, keyed by tag representation. A tag can collect several entries
// when it recurs inside nested sequences. The log belongs to a single
// de-identification pass; the engine creates a fresh one per dataset.
type AuditLog struct {
	entries map[string][]AuditEntry
	order   []string
}

// NewAuditLog returns an empty log.
func NewAuditLog() *AuditLog {
	return &AuditLog{entries: make(map[string][]AuditEntry)}
}

// Record appends an entry under a tag representation.
func (l *AuditLog) Record(tagRepr string, original, replacement any) {
	if _, ok := l.entries[tagRepr]; !ok {
		l.order = append(l.order, tagRepr)
	}
	l.entries[tagRepr] = append(l.entries[tagRepr], AuditEntry{Original: original, Replacement: replacement})
}

// Len returns the total number of entries across all tags.
func (l *AuditLog) Len() int {
	n := 0
	for _, entries := range l.entries {
		n += len(entries)
	}
	return n
}

// Tags returns the logged tag representations in first-recorded order.
func (l *AuditLog) Tags() []string {
	return append([]string(nil), l.order...)
}

// Entries returns the entries recorded for a tag representation.
func (l *AuditLog) Entries(tagRepr string) []AuditEntry {
	return l.entries[tagRepr]
}

// MarshalJSON renders the log as an object mapping tag representations to
// entry lists.
func (l *AuditLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.entries)
}

// WriteFile serializes the log to a JSON file.
func (l *AuditLog) WriteFile(path string) error {
	data, err := json.MarshalIndent(l, "", "    ")
	if err != nil {
		return fmt.Errorf("could not marshal audit log: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write audit log: %w", err)
	}
	return nil
}

// represent computes a loggable representation of an element's current
// value. Sequences render as nested lists of [tag, representation] pairs.
// Representation is best-effort and never fails: an exotic value falls
// back to its fmt rendering, the replacement or removal itself is never
// skipped over a logging concern.
func represent(e *dataset.DataElement) any {
	if e.VR() != dataset.VRSequence {
		return representValue(e.Value())
	}
	var items []any
	for _, item := range e.Items() {
		var fields []any
		for _, t := range item.Tags() {
			inner, _ := item.Get(t)
			fields = append(fields, []any{t.String(), represent(inner)})
		}
		items = append(items, fields)
	}
	return items
}

func representValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case []string:
		if len(x) == 1 {
			return x[0]
		}
		return strings.Join(x, "\\")
	case []int:
		if len(x) == 1 {
			return x[0]
		}
		return fmt.Sprintf("%v", x)
	case []float64:
		if len(x) == 1 {
			return x[0]
		}
		return fmt.Sprintf("%v", x)
	case []byte:
		return fmt.Sprintf("<%d bytes of binary data>", len(x))
	default:
		return fmt.Sprintf("%v", v)
	}
}
