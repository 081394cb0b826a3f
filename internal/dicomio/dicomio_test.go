package dicomio

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dcmkit/internal/dataset"
)

func mustElement(t *testing.T, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	e, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("NewElement(%v) error = %v", tg, err)
	}
	return e
}

func TestFromParsed(t *testing.T) {
	inner := mustElement(t, tag.ReferencedSOPInstanceUID, []string{"1.2.3"})
	seqValue, err := dicom.NewValue([][]*dicom.Element{{inner}})
	if err != nil {
		t.Fatalf("NewValue(sequence) error = %v", err)
	}
	parsed := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.PatientName, []string{"Doe^Jane"}),
		mustElement(t, tag.Rows, []int{512}),
		{
			Tag:                    tag.ReferencedImageSequence,
			ValueRepresentation:    tag.GetVRKind(tag.ReferencedImageSequence, "SQ"),
			RawValueRepresentation: "SQ",
			Value:                  seqValue,
		},
	}}

	ds := FromParsed(parsed)
	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}

	name, ok := ds.Get(dataset.Tag{Group: 0x0010, Element: 0x0010})
	if !ok || !reflect.DeepEqual(name.Value(), []string{"Doe^Jane"}) {
		t.Errorf("patient name = %v", name)
	}
	rows, ok := ds.Get(dataset.Tag{Group: 0x0028, Element: 0x0010})
	if !ok || !reflect.DeepEqual(rows.Value(), []int{512}) {
		t.Errorf("rows = %v", rows)
	}
	seq, ok := ds.Get(dataset.Tag{Group: 0x0008, Element: 0x1140})
	if !ok || seq.VR() != dataset.VRSequence || len(seq.Items()) != 1 {
		t.Fatalf("sequence not converted: %v", seq)
	}
	ref, ok := seq.Items()[0].Get(dataset.Tag{Group: 0x0008, Element: 0x1155})
	if !ok || !reflect.DeepEqual(ref.Value(), []string{"1.2.3"}) {
		t.Errorf("nested reference = %v", ref)
	}
}

func TestToParsedRoundTrip(t *testing.T) {
	ds := dataset.New(
		dataset.NewElement(dataset.Tag{Group: 0x0010, Element: 0x0010}, dataset.VRPersonName, []string{"Doe^Jane"}),
		dataset.NewElement(dataset.Tag{Group: 0x0028, Element: 0x0010}, dataset.VRUnsignedShort, []int{512}),
		dataset.NewElement(dataset.Tag{Group: 0x0029, Element: 0x1010}, dataset.VROtherByte, []byte{0xca, 0xfe}),
		dataset.NewSequence(dataset.Tag{Group: 0x0008, Element: 0x1140}, dataset.New(
			dataset.NewElement(dataset.Tag{Group: 0x0008, Element: 0x1155}, dataset.VRUID, []string{"1.2.3"}),
		)),
	)

	parsed, err := ToParsed(ds)
	if err != nil {
		t.Fatalf("ToParsed() error = %v", err)
	}
	if len(parsed.Elements) != 4 {
		t.Fatalf("elements = %d, want 4", len(parsed.Elements))
	}
	// Encoder input must be tag-ordered.
	for i := 1; i < len(parsed.Elements); i++ {
		prev, cur := parsed.Elements[i-1].Tag, parsed.Elements[i].Tag
		if cur.Group < prev.Group || (cur.Group == prev.Group && cur.Element < prev.Element) {
			t.Errorf("elements out of order: %v before %v", prev, cur)
		}
	}

	back := FromParsed(parsed)
	name, _ := back.Get(dataset.Tag{Group: 0x0010, Element: 0x0010})
	if !reflect.DeepEqual(name.Value(), []string{"Doe^Jane"}) {
		t.Errorf("round-tripped name = %v", name.Value())
	}
	seq, _ := back.Get(dataset.Tag{Group: 0x0008, Element: 0x1140})
	if seq == nil || len(seq.Items()) != 1 {
		t.Fatalf("round-tripped sequence = %v", seq)
	}
	priv, _ := back.Get(dataset.Tag{Group: 0x0029, Element: 0x1010})
	if !reflect.DeepEqual(priv.Value(), []byte{0xca, 0xfe}) {
		t.Errorf("round-tripped private bytes = %v", priv.Value())
	}
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()

	magic := make([]byte, 132)
	copy(magic[128:], "DICM")

	writeFile := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	byExt := writeFile("scan.dcm", []byte("not sniffed"))
	byMagic := writeFile("IM_0001", magic)
	writeFile("notes.txt", []byte("skip"))
	writeFile("plain", []byte("no magic here, long enough to read the full header padding"))

	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(sub, "deep.dcm")
	if err := os.WriteFile(nested, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FindFiles(dir, false)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if want := []string{byMagic, byExt}; !reflect.DeepEqual(got, want) {
		t.Errorf("non-recursive = %v, want %v", got, want)
	}

	got, err = FindFiles(dir, true)
	if err != nil {
		t.Fatalf("FindFiles(recursive) error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("recursive found %d files, want 3: %v", len(got), got)
	}
}
