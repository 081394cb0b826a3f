// Package deident implements PS3.15 basic-profile de-identification of
// DICOM datasets: a declarative policy table classifies every field, a
// recursive walk applies removals and dummy replacements, and an audit
// log records every modification.
package deident

import (
	"errors"
	"fmt"
	"strings"

	"dcmkit/internal/dataset"
)

// Errors surfaced by the engine. They indicate a policy/data mismatch and
// are never silently ignored.
var (
	ErrUnsupportedVR     = errors.New("unsupported value representation")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrConfiguration     = errors.New("de-identification configuration error")
)

// Dummy replacement sentinels, one per VR class. Fixed values: the same
// input always de-identifies to the same output.
const (
	dummyName     = "John Doe"
	dummyDate     = "18000101"
	dummyDateTime = "180001010000.000000"
	dummyTime     = "0000.000000"
	dummyText     = "anon"
	dummyCode     = "ANON"
	dummyAge      = "000M"
	dummyDecimal  = "0.0"
	dummyInteger  = "0"
	dummyUID      = "000.000.0"
)

// replacementFor computes the substitute for a field under the given
// basic-profile action code. It returns the value in two forms: the
// scalar recorded in the audit log and the stored form written into the
// dataset (which follows the element value conventions). A nil stored
// value with remove=true means the field must be deleted.
//
// Action codes collapse to the behaviors actually implemented: every code
// beginning with X removes the field, the codes U, D, Z and Z/D replace
// it with a VR-consistent dummy, and anything else is unsupported.
func replacementFor(vr dataset.VR, action string) (logged any, stored any, remove bool, err error) {
	if strings.HasPrefix(action, "X") {
		return nil, nil, true, nil
	}

	switch action {
	case "U", "D", "Z", "Z/D":
	default:
		return nil, nil, false, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}

	switch vr {
	case dataset.VRDate:
		return dummyDate, []string{dummyDate}, false, nil
	case dataset.VRAgeString:
		return dummyAge, []string{dummyAge}, false, nil
	case dataset.VRDecimalString:
		return dummyDecimal, []string{dummyDecimal}, false, nil
	case dataset.VRDateTime:
		return dummyDateTime, []string{dummyDateTime}, false, nil
	case dataset.VRTime:
		return dummyTime, []string{dummyTime}, false, nil
	case dataset.VRFloat, dataset.VRDouble:
		return 0.0, []float64{0}, false, nil
	case dataset.VRIntegerString:
		return dummyInteger, []string{dummyInteger}, false, nil
	case dataset.VRUnsignedLong, dataset.VRUnsignedShort, dataset.VRSignedShort, dataset.VRSignedLong:
		return 0, []int{0}, false, nil
	case dataset.VRPersonName:
		return dummyName, []string{dummyName}, false, nil
	case dataset.VRUID:
		return dummyUID, []string{dummyUID}, false, nil
	case dataset.VRCodeString:
		return dummyCode, []string{dummyCode}, false, nil
	case dataset.VRLongString, dataset.VRLongText, dataset.VRShortText, dataset.VRShortString:
		return dummyText, []string{dummyText}, false, nil
	case dataset.VROtherByte, dataset.VROtherWord:
		return 0, []byte{0}, false, nil
	default:
		return nil, nil, false, fmt.Errorf("%w: %q", ErrUnsupportedVR, vr)
	}
}
