// Package dataset defines an in-memory DICOM dataset model: tags, value
// representations, data elements and datasets nesting through sequences.
// It also provides the recursive tag search used to read enhanced
// multiframe objects, whose attributes hide inside per-frame sequences.
//
// The model is deliberately independent of any DICOM parsing library;
// internal/dicomio converts parsed files to and from this representation.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tag identifies a DICOM attribute as a (group, element) pair.
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the canonical "gggg,eeee" lowercase hex representation.
func (t Tag) String() string {
	return fmt.Sprintf("%04x,%04x", t.Group, t.Element)
}

// Less orders tags group-major, element-minor. This order defines the
// canonical traversal order over a dataset's fields.
func (t Tag) Less(o Tag) bool {
	if t.Group != o.Group {
		return t.Group < o.Group
	}
	return t.Element < o.Element
}

// IsPrivate reports whether the tag is vendor-private (odd group number).
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// ParseTag parses a "gggg,eeee" representation, with or without
// surrounding parentheses and internal spaces.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.ReplaceAll(s, " ", "")
	group, element, ok := strings.Cut(s, ",")
	if !ok {
		return Tag{}, fmt.Errorf("invalid tag %q", s)
	}
	g, err := strconv.ParseUint(group, 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid tag group %q", group)
	}
	e, err := strconv.ParseUint(element, 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid tag element %q", element)
	}
	return Tag{Group: uint16(g), Element: uint16(e)}, nil
}

// VR is a DICOM value representation code.
type VR string

const (
	VRApplicationEntity VR = "AE"
	VRAgeString         VR = "AS"
	VRCodeString        VR = "CS"
	VRDate              VR = "DA"
	VRDecimalString     VR = "DS"
	VRDateTime          VR = "DT"
	VRFloat             VR = "FL"
	VRDouble            VR = "FD"
	VRIntegerString     VR = "IS"
	VRLongString        VR = "LO"
	VRLongText          VR = "LT"
	VROtherByte         VR = "OB"
	VROtherWord         VR = "OW"
	VRPersonName        VR = "PN"
	VRShortString       VR = "SH"
	VRSignedLong        VR = "SL"
	VRSequence          VR = "SQ"
	VRSignedShort       VR = "SS"
	VRShortText         VR = "ST"
	VRTime              VR = "TM"
	VRUID               VR = "UI"
	VRUnsignedLong      VR = "UL"
	VRUnknown           VR = "UN"
	VRUnsignedShort     VR = "US"
)

// DataElement is one field of a dataset. The VR is fixed at construction;
// only the value may change afterwards. Sequence elements carry nested
// datasets instead of a value.
type DataElement struct {
	tag   Tag
	vr    VR
	value any
	items []*Dataset
}

// NewElement creates a non-sequence element. Values follow the convention
// of the DICOM parsing layer: string VRs hold []string, integer binary VRs
// hold []int, floating binary VRs hold []float64, other-byte/word VRs hold
// []byte.
func NewElement(t Tag, vr VR, value any) *DataElement {
	return &DataElement{tag: t, vr: vr, value: value}
}

// NewSequence creates a sequence element holding the given item datasets.
func NewSequence(t Tag, items ...*Dataset) *DataElement {
	return &DataElement{tag: t, vr: VRSequence, items: items}
}

// Tag returns the element's tag.
func (e *DataElement) Tag() Tag { return e.tag }

// VR returns the element's value representation.
func (e *DataElement) VR() VR { return e.vr }

// Value returns the element's value. Nil for sequence elements.
func (e *DataElement) Value() any { return e.value }

// SetValue replaces the element's value. The VR is unaffected.
func (e *DataElement) SetValue(v any) { e.value = v }

// Items returns the nested datasets of a sequence element, nil otherwise.
func (e *DataElement) Items() []*Dataset { return e.items }

// Dataset maps tags to data elements. Iteration via Tags is in ascending
// canonical tag order. Datasets nest arbitrarily through sequence
// elements; DICOM guarantees the structure is a tree.
type Dataset struct {
	elems map[Tag]*DataElement
}

// New returns an empty dataset, optionally populated with elements.
func New(elems ...*DataElement) *Dataset {
	d := &Dataset{elems: make(map[Tag]*DataElement, len(elems))}
	for _, e := range elems {
		d.Add(e)
	}
	return d
}

// Add inserts an element, replacing any element with the same tag.
func (d *Dataset) Add(e *DataElement) {
	d.elems[e.tag] = e
}

// Get returns the element for a tag.
func (d *Dataset) Get(t Tag) (*DataElement, bool) {
	e, ok := d.elems[t]
	return e, ok
}

// Contains reports whether a tag is present.
func (d *Dataset) Contains(t Tag) bool {
	_, ok := d.elems[t]
	return ok
}

// Delete removes a tag. Removing an absent tag is a no-op.
func (d *Dataset) Delete(t Tag) {
	delete(d.elems, t)
}

// Len returns the number of elements.
func (d *Dataset) Len() int {
	return len(d.elems)
}

// Tags returns all tags in ascending canonical order. The slice is a
// snapshot, so callers may delete elements while iterating over it.
func (d *Dataset) Tags() []Tag {
	tags := make([]Tag, 0, len(d.elems))
	for t := range d.elems {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })
	return tags
}
