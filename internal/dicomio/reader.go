// Package dicomio reads and writes DICOM files, converting between the
// suyashkumar/dicom parser representation and the dataset model the rest
// of the toolkit operates on. File meta elements (group 0002) travel
// through the conversion like any other element, so a read/modify/write
// cycle preserves the transfer syntax.
package dicomio

import (
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"

	"dcmkit/internal/dataset"
)

// ReadFile parses a DICOM file into a dataset.
func ReadFile(path string) (*dataset.Dataset, error) {
	return readFile(path)
}

// ReadFileMetadataOnly parses a DICOM file without decoding pixel data.
// Use this for extraction and sorting passes that never write the file
// back.
func ReadFileMetadataOnly(path string) (*dataset.Dataset, error) {
	return readFile(path, dicom.SkipPixelData())
}

func readFile(path string, opts ...dicom.ParseOption) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	parsed, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return FromParsed(parsed), nil
}

// FromParsed converts a parsed dataset to the toolkit model.
func FromParsed(parsed dicom.Dataset) *dataset.Dataset {
	ds := dataset.New()
	for _, e := range parsed.Elements {
		ds.Add(fromElement(e))
	}
	return ds
}

func fromElement(e *dicom.Element) *dataset.DataElement {
	t := dataset.Tag{Group: e.Tag.Group, Element: e.Tag.Element}
	vr := dataset.VR(e.RawValueRepresentation)

	if e.Value == nil {
		return dataset.NewElement(t, vr, nil)
	}

	if e.Value.ValueType() == dicom.Sequences {
		seqItems, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
		if !ok {
			return dataset.NewElement(t, vr, e.Value.GetValue())
		}
		items := make([]*dataset.Dataset, 0, len(seqItems))
		for _, item := range seqItems {
			elems, ok := item.GetValue().([]*dicom.Element)
			if !ok {
				continue
			}
			inner := dataset.New()
			for _, ie := range elems {
				inner.Add(fromElement(ie))
			}
			items = append(items, inner)
		}
		return dataset.NewSequence(t, items...)
	}

	return dataset.NewElement(t, vr, e.Value.GetValue())
}
