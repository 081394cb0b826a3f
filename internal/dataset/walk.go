package dataset

import (
	"errors"
	"fmt"
)

// MaxDepth bounds sequence recursion. Real-world nesting stays below five
// levels; anything deeper is treated as a malformed dataset.
const MaxDepth = 64

// ErrMalformedDataset reports a dataset the walker cannot traverse.
var ErrMalformedDataset = errors.New("malformed dataset")

// FindFirst returns the first value associated with target anywhere in the
// dataset tree, searching depth-first in ascending tag order. A match at
// the current level short-circuits the scan of sibling sequences. If the
// target itself is a sequence it is treated as a container: the result is
// the first value found inside its items, not the sequence. The second
// return value is false when the tag does not occur at any depth; absence
// is a normal outcome, not an error.
func FindFirst(d *Dataset, target Tag) (any, bool, error) {
	values, err := findValues(d, target, false, 0)
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}
	return values[0], true, nil
}

// FindAll returns every value associated with target in the dataset tree,
// in depth-first, ascending-tag discovery order. The traversal order is
// identical to FindFirst's; only the stopping rule differs. The result is
// empty, never nil-as-error, when the tag does not occur.
func FindAll(d *Dataset, target Tag) ([]any, error) {
	return findValues(d, target, true, 0)
}

// findValues is the single traversal primitive behind FindFirst and
// FindAll, so the two modes cannot diverge in traversal order.
func findValues(d *Dataset, target Tag, collectAll bool, depth int) ([]any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: sequence nesting exceeds %d levels", ErrMalformedDataset, MaxDepth)
	}

	var values []any

	// The target at the current level wins before any sibling scanning.
	if e, ok := d.Get(target); ok {
		if e.VR() != VRSequence {
			values = append(values, e.Value())
			if !collectAll {
				return values, nil
			}
		} else {
			for _, item := range e.Items() {
				sub, err := findValues(item, target, collectAll, depth+1)
				if err != nil {
					return nil, err
				}
				values = append(values, sub...)
				if !collectAll && len(values) > 0 {
					return values, nil
				}
			}
			// An empty container falls through to sibling scanning.
		}
	}

	// Descend into every other sequence field, in ascending tag order.
	for _, t := range d.Tags() {
		if t == target {
			continue
		}
		e, ok := d.Get(t)
		if !ok || e.VR() != VRSequence {
			continue
		}
		for _, item := range e.Items() {
			sub, err := findValues(item, target, collectAll, depth+1)
			if err != nil {
				return nil, err
			}
			values = append(values, sub...)
			if !collectAll && len(values) > 0 {
				return values, nil
			}
		}
	}

	return values, nil
}
