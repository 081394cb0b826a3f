package deident

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"dcmkit/internal/dataset"
)

// Bundled policy tables. The primary table lists PS3.15 basic-profile
// actions per tag; the private table lists, per manufacturer, the private
// tag patterns to retain (diffusion parameters, mostly).
var (
	//go:embed deidentify.json
	defaultPolicyJSON []byte

	//go:embed private_deidentify.json
	defaultPrivateJSON []byte
)

// policyEntry is one row of the primary table. The tag may contain
// wildcard nibbles ("50xx,xxxx") or the "gggg,eeee" marker that enables
// private-tag removal.
type policyEntry struct {
	Tag          string `json:"Tag"`
	BasicProfile string `json:"Basic Profile"`
}

// privateEntry is one retained-pattern row of the private table.
type privateEntry struct {
	Tag string `json:"Tag"`
}

// privateMarker enables the private-tag rule when present in the primary
// table, mirroring the "(gggg,eeee)" convention of the source tables.
const privateMarker = "gggg"

// Policy is the compiled dispatch form of the two tables: an exact-tag
// action map, an ordered wildcard pattern list, and the per-manufacturer
// retain patterns (nil when no private rule is configured). Policies are
// immutable once loaded.
type Policy struct {
	exact     map[dataset.Tag]string
	wildcards []string
	retain    map[string][]string
	private   bool
}

// LoadDefaultPolicy compiles the bundled tables.
func LoadDefaultPolicy() (*Policy, error) {
	return LoadPolicyBytes(defaultPolicyJSON, defaultPrivateJSON)
}

// LoadPolicyFiles compiles tables read from disk. Either path may be
// empty to fall back to the bundled table.
func LoadPolicyFiles(policyPath, privatePath string) (*Policy, error) {
	policyJSON := defaultPolicyJSON
	privateJSON := defaultPrivateJSON
	if policyPath != "" {
		data, err := os.ReadFile(policyPath)
		if err != nil {
			return nil, fmt.Errorf("could not read policy table: %w", err)
		}
		policyJSON = data
	}
	if privatePath != "" {
		data, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("could not read private-tag table: %w", err)
		}
		privateJSON = data
	}
	return LoadPolicyBytes(policyJSON, privateJSON)
}

// LoadPolicyBytes compiles raw JSON tables into dispatch form. Every
// entry lands in exactly one of three buckets: exact tag, wildcard
// pattern, or the private-tag rule.
func LoadPolicyBytes(policyJSON, privateJSON []byte) (*Policy, error) {
	var entries []policyEntry
	if err := json.Unmarshal(policyJSON, &entries); err != nil {
		return nil, fmt.Errorf("could not parse policy table: %w", err)
	}

	p := &Policy{
		exact:  make(map[dataset.Tag]string, len(entries)),
		retain: make(map[string][]string),
	}

	for _, entry := range entries {
		repr := normalizePattern(entry.Tag)
		switch {
		case strings.Contains(repr, privateMarker):
			p.private = true
		case strings.ContainsRune(repr, 'x'):
			p.wildcards = append(p.wildcards, repr)
		default:
			t, err := dataset.ParseTag(repr)
			if err != nil {
				return nil, fmt.Errorf("policy table: %w", err)
			}
			p.exact[t] = entry.BasicProfile
		}
	}

	var retain map[string][]privateEntry
	if err := json.Unmarshal(privateJSON, &retain); err != nil {
		return nil, fmt.Errorf("could not parse private-tag table: %w", err)
	}
	for manufacturer, patterns := range retain {
		for _, entry := range patterns {
			p.retain[manufacturer] = append(p.retain[manufacturer], normalizePattern(entry.Tag))
		}
	}

	return p, nil
}

// Action returns the exact-table action for a tag.
func (p *Policy) Action(t dataset.Tag) (string, bool) {
	action, ok := p.exact[t]
	return action, ok
}

// MatchesWildcard reports whether any wildcard pattern matches the tag.
// Wildcard wins are first-match over the table order.
func (p *Policy) MatchesWildcard(t dataset.Tag) bool {
	repr := t.String()
	for _, pattern := range p.wildcards {
		if matchPattern(pattern, repr) {
			return true
		}
	}
	return false
}

// HasPrivateRule reports whether the table requests private-tag removal.
func (p *Policy) HasPrivateRule() bool {
	return p.private
}

// Retained reports whether a private tag is on the manufacturer's retain
// list.
func (p *Policy) Retained(manufacturer string, t dataset.Tag) bool {
	repr := t.String()
	for _, pattern := range p.retain[manufacturer] {
		if matchPattern(pattern, repr) {
			return true
		}
	}
	return false
}

// normalizePattern brings a table tag to the canonical lowercase
// "gggg,eeee" form, with 'x' wildcard nibbles preserved.
func normalizePattern(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToLower(s)
}

// matchPattern compares a wildcard pattern against a concrete tag
// representation nibble by nibble. An 'x' in the pattern matches any hex
// digit; every other character must agree exactly.
func matchPattern(pattern, repr string) bool {
	if len(pattern) != len(repr) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == 'x' {
			if repr[i] == ',' {
				return false
			}
			continue
		}
		if pattern[i] != repr[i] {
			return false
		}
	}
	return true
}
