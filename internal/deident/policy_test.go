package deident

import (
	"testing"

	"dcmkit/internal/dataset"
)

func TestLoadDefaultPolicy(t *testing.T) {
	p, err := LoadDefaultPolicy()
	if err != nil {
		t.Fatalf("LoadDefaultPolicy() error = %v", err)
	}
	if !p.HasPrivateRule() {
		t.Error("bundled table should enable the private-tag rule")
	}

	action, ok := p.Action(dataset.Tag{Group: 0x0010, Element: 0x0010})
	if !ok || action != "Z" {
		t.Errorf("Action(0010,0010) = %q, %v, want Z, true", action, ok)
	}
	action, ok = p.Action(dataset.Tag{Group: 0x0008, Element: 0x0018})
	if !ok || action != "U" {
		t.Errorf("Action(0008,0018) = %q, %v, want U, true", action, ok)
	}
	if _, ok := p.Action(dataset.Tag{Group: 0x0018, Element: 0x0081}); ok {
		t.Error("Action(0018,0081) should not match any exact rule")
	}
}

func TestWildcardMatching(t *testing.T) {
	p, err := LoadDefaultPolicy()
	if err != nil {
		t.Fatalf("LoadDefaultPolicy() error = %v", err)
	}

	tests := []struct {
		name string
		tag  dataset.Tag
		want bool
	}{
		{"curve group low", dataset.Tag{Group: 0x5000, Element: 0x0010}, true},
		{"curve group high", dataset.Tag{Group: 0x50ff, Element: 0x1234}, true},
		{"adjacent group", dataset.Tag{Group: 0x5100, Element: 0x0010}, false},
		{"overlay data", dataset.Tag{Group: 0x6002, Element: 0x3000}, true},
		{"overlay comment", dataset.Tag{Group: 0x60ee, Element: 0x4000}, true},
		{"overlay other element", dataset.Tag{Group: 0x6002, Element: 0x0010}, false},
		{"plain tag", dataset.Tag{Group: 0x0018, Element: 0x0081}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.MatchesWildcard(tt.tag); got != tt.want {
				t.Errorf("MatchesWildcard(%s) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestRetained(t *testing.T) {
	p, err := LoadDefaultPolicy()
	if err != nil {
		t.Fatalf("LoadDefaultPolicy() error = %v", err)
	}

	tests := []struct {
		name         string
		manufacturer string
		tag          dataset.Tag
		want         bool
	}{
		{"siemens exact", "SIEMENS", dataset.Tag{Group: 0x0019, Element: 0x100c}, true},
		{"siemens csa wildcard", "SIEMENS", dataset.Tag{Group: 0x0029, Element: 0x1010}, true},
		{"siemens unrelated", "SIEMENS", dataset.Tag{Group: 0x0019, Element: 0x10bb}, false},
		{"ge gradient", "GE MEDICAL SYSTEMS", dataset.Tag{Group: 0x0019, Element: 0x10bb}, true},
		{"philips b value", "Philips Medical Systems", dataset.Tag{Group: 0x2001, Element: 0x1003}, true},
		{"unknown manufacturer", "ACME", dataset.Tag{Group: 0x0019, Element: 0x100c}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Retained(tt.manufacturer, tt.tag); got != tt.want {
				t.Errorf("Retained(%q, %s) = %v, want %v", tt.manufacturer, tt.tag, got, tt.want)
			}
		})
	}
}

func TestLoadPolicyBytesWithoutPrivateMarker(t *testing.T) {
	policyJSON := []byte(`[{"Tag": "(0010,0010)", "Basic Profile": "Z"}]`)
	p, err := LoadPolicyBytes(policyJSON, []byte(`{}`))
	if err != nil {
		t.Fatalf("LoadPolicyBytes() error = %v", err)
	}
	if p.HasPrivateRule() {
		t.Error("table without (gggg,eeee) marker should not enable the private rule")
	}
}

func TestLoadPolicyBytesRejectsBadTag(t *testing.T) {
	policyJSON := []byte(`[{"Tag": "(zzzz,0010)", "Basic Profile": "Z"}]`)
	if _, err := LoadPolicyBytes(policyJSON, []byte(`{}`)); err == nil {
		t.Error("expected an error for an unparseable tag")
	}
}
