// Package extract resolves named metadata requests against a DICOM
// dataset, hiding tag numbers and sequence nesting from callers. Each
// request maps to a tag, a traversal mode and a typed default for the
// not-found case.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dcmkit/internal/dataset"
)

// ErrUnknownRequest reports a request name that is not registered.
var ErrUnknownRequest = errors.New("unknown extraction request")

// Request describes one named extraction.
type Request struct {
	// Tag is the standard tag holding the value.
	Tag dataset.Tag
	// Fallbacks are vendor-private tags probed, in order, when the
	// standard tag is absent anywhere in the tree.
	Fallbacks []dataset.Tag
	// CollectAll selects FindAll over FindFirst.
	CollectAll bool
	// Default is returned when nothing is found.
	Default any
	// transform post-processes a found value.
	transform func(any) any
}

// requests is the registry of known extractions. Tags and modes follow
// the DICOM standard attributes for MR acquisitions.
var requests = map[string]Request{
	"phase_encoding":        {Tag: dataset.Tag{Group: 0x0018, Element: 0x1312}, Default: "unknown", transform: asString},
	"b_vectors":             {Tag: dataset.Tag{Group: 0x0018, Element: 0x9089}, CollectAll: true},
	"b_values":              {Tag: dataset.Tag{Group: 0x0018, Element: 0x9087}, CollectAll: true},
	"repetition_time":       {Tag: dataset.Tag{Group: 0x0018, Element: 0x0080}, Default: "0", transform: repetitionTimeMS},
	"date_scan":             {Tag: dataset.Tag{Group: 0x0008, Element: 0x0022}, Default: "0", transform: asString},
	"echo_time":             {Tag: dataset.Tag{Group: 0x0018, Element: 0x0081}, Default: "0", transform: asString},
	"all_sop_instance_uids": {Tag: dataset.Tag{Group: 0x0008, Element: 0x1155}, CollectAll: true},
	"sop_storage_type":      {Tag: dataset.Tag{Group: 0x0008, Element: 0x0016}, Default: false, transform: isEnhancedStorage},
	"sequence_number":       {Tag: dataset.Tag{Group: 0x0020, Element: 0x0011}, Default: "0", transform: asString},
	"nb_slices": {
		Tag:       dataset.Tag{Group: 0x0020, Element: 0x1002},
		Fallbacks: []dataset.Tag{{Group: 0x2001, Element: 0x102D}, {Group: 0x2001, Element: 0x1018}},
		Default:   0,
		transform: asInt,
	},
	"nb_temporal_position":    {Tag: dataset.Tag{Group: 0x0020, Element: 0x0105}, Default: 0, transform: asInt},
	"manufacturer_name":       {Tag: dataset.Tag{Group: 0x0008, Element: 0x0070}, Default: "unknown", transform: asString},
	"manufacturer_model_name": {Tag: dataset.Tag{Group: 0x0008, Element: 0x1090}, Default: "unknown", transform: asString},
	"sequence_name":           {Tag: dataset.Tag{Group: 0x0008, Element: 0x103E}, Default: "unknown", transform: asPathToken},
	"protocol_name":           {Tag: dataset.Tag{Group: 0x0018, Element: 0x1030}, Default: "unknown", transform: asPathToken},
	"serie_instance_uid":      {Tag: dataset.Tag{Group: 0x0020, Element: 0x000E}, Default: "unknown", transform: asPathToken},
}

// Names returns the registered request names, sorted.
func Names() []string {
	names := make([]string, 0, len(requests))
	for name := range requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get resolves a named request against a dataset. Absence of the tag is
// not an error: the request's default is returned instead.
func Get(ds *dataset.Dataset, name string) (any, error) {
	req, ok := requests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, name)
	}

	if req.CollectAll {
		values, err := dataset.FindAll(ds, req.Tag)
		if err != nil {
			return nil, err
		}
		return values, nil
	}

	value, found, err := dataset.FindFirst(ds, req.Tag)
	if err != nil {
		return nil, err
	}
	for _, fallback := range req.Fallbacks {
		if found {
			break
		}
		value, found, err = dataset.FindFirst(ds, fallback)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return req.Default, nil
	}
	if req.transform != nil {
		return req.transform(value), nil
	}
	return value, nil
}

// repetitionTimeMS normalizes TR to milliseconds. Some sources encode TR
// in seconds; values below 1000 are assumed to be seconds and scaled.
func repetitionTimeMS(v any) any {
	tr, ok := firstFloat(v)
	if !ok {
		return asString(v)
	}
	if tr < 1000 {
		tr *= 1000
	}
	return tr
}

// isEnhancedStorage reports whether the SOP class is an enhanced
// multiframe storage class.
func isEnhancedStorage(v any) any {
	return strings.Contains(firstString(v), "Enhanced")
}

// asPathToken returns the value as a string safe to embed in file names.
func asPathToken(v any) any {
	return strings.ReplaceAll(firstString(v), " ", "_")
}

func asString(v any) any { return firstString(v) }

func asInt(v any) any {
	f, ok := firstFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

// firstString extracts the first scalar of a value as a string.
func firstString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		if len(x) > 0 {
			return x[0]
		}
		return ""
	case []int:
		if len(x) > 0 {
			return strconv.Itoa(x[0])
		}
		return ""
	case []float64:
		if len(x) > 0 {
			return strconv.FormatFloat(x[0], 'g', -1, 64)
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// firstFloat extracts the first scalar of a value as a float64.
func firstFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []int:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []string:
		if len(x) > 0 {
			f, err := strconv.ParseFloat(strings.TrimSpace(x[0]), 64)
			return f, err == nil
		}
	}
	return 0, false
}
