package dicomio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dcmkit/internal/dataset"
)

// WriteFile serializes a dataset to a DICOM file, creating parent
// directories as needed. Verification is relaxed because real-world
// files routinely violate strict VR rules and a de-identification pass
// must not reject what the parser accepted.
func WriteFile(path string, ds *dataset.Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	parsed, err := ToParsed(ds)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer file.Close()

	if err := dicom.Write(file, parsed,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		return fmt.Errorf("could not write DICOM: %w", err)
	}
	return nil
}

// ToParsed converts a dataset back to the parser representation, in
// ascending tag order as the encoder requires.
func ToParsed(ds *dataset.Dataset) (dicom.Dataset, error) {
	elems := make([]*dicom.Element, 0, ds.Len())
	for _, t := range ds.Tags() {
		e, ok := ds.Get(t)
		if !ok {
			continue
		}
		converted, err := toElement(e)
		if err != nil {
			return dicom.Dataset{}, err
		}
		elems = append(elems, converted)
	}
	return dicom.Dataset{Elements: elems}, nil
}

func toElement(e *dataset.DataElement) (*dicom.Element, error) {
	t := tag.Tag{Group: e.Tag().Group, Element: e.Tag().Element}
	rawVR := string(e.VR())

	var data any
	if e.VR() == dataset.VRSequence {
		items := make([][]*dicom.Element, 0, len(e.Items()))
		for _, item := range e.Items() {
			inner := make([]*dicom.Element, 0, item.Len())
			for _, it := range item.Tags() {
				ie, ok := item.Get(it)
				if !ok {
					continue
				}
				converted, err := toElement(ie)
				if err != nil {
					return nil, err
				}
				inner = append(inner, converted)
			}
			items = append(items, inner)
		}
		data = items
	} else if e.Value() == nil {
		data = []string{}
	} else {
		data = e.Value()
	}

	// Constructed directly because dicom.NewElement rejects tags absent
	// from its dictionary, which private tags usually are.
	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, fmt.Errorf("tag %s: could not build value: %w", e.Tag(), err)
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}, nil
}
