package dataset

import (
	"testing"
)

func TestTagString(t *testing.T) {
	tests := []struct {
		tag      Tag
		expected string
	}{
		{Tag{0x0010, 0x0010}, "0010,0010"},
		{Tag{0x0008, 0x103E}, "0008,103e"},
		{Tag{0x50FF, 0x1234}, "50ff,1234"},
		{Tag{0x0000, 0x0000}, "0000,0000"},
	}

	for _, tt := range tests {
		if got := tt.tag.String(); got != tt.expected {
			t.Errorf("Tag%v.String() = %q, want %q", tt.tag, got, tt.expected)
		}
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		in       string
		expected Tag
		wantErr  bool
	}{
		{"0010,0010", Tag{0x0010, 0x0010}, false},
		{"(0008,0070)", Tag{0x0008, 0x0070}, false},
		{"(0008, 0070)", Tag{0x0008, 0x0070}, false},
		{"50FF,1234", Tag{0x50FF, 0x1234}, false},
		{"0010", Tag{}, true},
		{"zzzz,0010", Tag{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("ParseTag(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestTagOrdering(t *testing.T) {
	ds := New(
		NewElement(Tag{0x0020, 0x000E}, VRUID, []string{"1.2.3"}),
		NewElement(Tag{0x0008, 0x0070}, VRLongString, []string{"ACME"}),
		NewElement(Tag{0x0010, 0x0010}, VRPersonName, []string{"Jane Roe"}),
		NewElement(Tag{0x0008, 0x0018}, VRUID, []string{"1.2.4"}),
	)

	expected := []Tag{
		{0x0008, 0x0018},
		{0x0008, 0x0070},
		{0x0010, 0x0010},
		{0x0020, 0x000E},
	}
	got := ds.Tags()
	if len(got) != len(expected) {
		t.Fatalf("Tags() returned %d tags, want %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Tags()[%d] = %v, want %v", i, got[i], expected[i])
		}
	}
}

func TestIsPrivate(t *testing.T) {
	if !(Tag{0x0029, 0x1010}).IsPrivate() {
		t.Error("(0029,1010) should be private")
	}
	if (Tag{0x0010, 0x0010}).IsPrivate() {
		t.Error("(0010,0010) should not be private")
	}
}

func TestDeleteAndContains(t *testing.T) {
	tag := Tag{0x0010, 0x0010}
	ds := New(NewElement(tag, VRPersonName, []string{"Jane Roe"}))

	if !ds.Contains(tag) {
		t.Fatal("expected tag to be present")
	}
	ds.Delete(tag)
	if ds.Contains(tag) {
		t.Error("expected tag to be removed")
	}
	ds.Delete(tag) // removing an absent tag is a no-op
	if ds.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ds.Len())
	}
}
