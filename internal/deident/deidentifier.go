package deident

import (
	"fmt"
	"reflect"

	"dcmkit/internal/dataset"
)

var (
	manufacturerTag      = dataset.Tag{Group: 0x0008, Element: 0x0070}
	identityRemovedTag   = dataset.Tag{Group: 0x0012, Element: 0x0062}
	deidentMethodTag     = dataset.Tag{Group: 0x0012, Element: 0x0063}
	deidentMethodSeqTag  = dataset.Tag{Group: 0x0012, Element: 0x0064}
	codeValueTag         = dataset.Tag{Group: 0x0008, Element: 0x0100}
	codingSchemeTag      = dataset.Tag{Group: 0x0008, Element: 0x0102}
	codeMeaningTag       = dataset.Tag{Group: 0x0008, Element: 0x0104}
)

// appliedMethods describes the de-identification profile options this
// engine applies, written into the method code sequence after each pass.
var appliedMethods = []struct {
	code    string
	meaning string
}{
	{"113100", "Basic Application Confidentiality Profile"},
	{"113103", "Clean Graphics Option"},
	{"113109", "Retain Device Identity Option"},
}

// Options configures engine behavior beyond the policy tables.
type Options struct {
	// RecordRetained also logs private tags that the retain list keeps,
	// so the decision to keep them is part of the audit trail.
	RecordRetained bool
}

// Deidentifier applies a compiled policy to datasets. It holds no
// per-dataset state: each Deidentify call owns a fresh audit log, so one
// engine can process many files sequentially.
type Deidentifier struct {
	policy         *Policy
	recordRetained bool
}

// New creates an engine for a compiled policy.
func New(policy *Policy, opts Options) *Deidentifier {
	return &Deidentifier{policy: policy, recordRetained: opts.RecordRetained}
}

// Deidentify mutates the dataset in place according to the policy and
// returns the audit log of every modification. Fields matching no rule
// are left untouched and unlogged. After the walk the top-level dataset
// receives the Patient Identity Removed marker and the method code
// sequence describing the applied profile options.
func (d *Deidentifier) Deidentify(ds *dataset.Dataset) (*AuditLog, error) {
	log := NewAuditLog()

	// The private-tag rule needs the manufacturer to select a retain
	// list; without the manufacturer tag the policy cannot be applied.
	manufacturer := ""
	if d.policy.HasPrivateRule() {
		value, found, err := dataset.FindFirst(ds, manufacturerTag)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: the (0008,0070) manufacturer tag is required to remove private tags", ErrConfiguration)
		}
		manufacturer = scalarString(value)
	}

	if err := d.walk(ds, manufacturer, log, 0); err != nil {
		return nil, err
	}

	finalize(ds)
	return log, nil
}

// walk classifies every field of a dataset depth-first. Rule order per
// field: exact-tag table, sequence recursion, wildcard patterns, private
// rule; the first rule that matches wins. Testing the exact table before
// recursing lets an X action remove a whole sequence.
func (d *Deidentifier) walk(ds *dataset.Dataset, manufacturer string, log *AuditLog, depth int) error {
	if depth > dataset.MaxDepth {
		return fmt.Errorf("%w: sequence nesting exceeds %d levels", dataset.ErrMalformedDataset, dataset.MaxDepth)
	}

	for _, t := range ds.Tags() {
		e, ok := ds.Get(t)
		if !ok {
			continue
		}

		if action, ok := d.policy.Action(t); ok {
			if err := apply(ds, e, action, log); err != nil {
				return err
			}
			continue
		}

		if e.VR() == dataset.VRSequence {
			for _, item := range e.Items() {
				if err := d.walk(item, manufacturer, log, depth+1); err != nil {
					return err
				}
			}
			continue
		}

		if d.policy.MatchesWildcard(t) {
			remove(ds, e, log)
			continue
		}

		if d.policy.HasPrivateRule() && t.IsPrivate() {
			if d.policy.Retained(manufacturer, t) {
				if d.recordRetained {
					repr := represent(e)
					log.Record(t.String(), repr, repr)
				}
				continue
			}
			remove(ds, e, log)
		}
	}
	return nil
}

// apply executes an exact-table action on a field.
func apply(ds *dataset.Dataset, e *dataset.DataElement, action string, log *AuditLog) error {
	logged, stored, removal, err := replacementFor(e.VR(), action)
	if err != nil {
		return fmt.Errorf("tag %s: %w", e.Tag(), err)
	}
	if removal {
		remove(ds, e, log)
		return nil
	}
	// A value already equal to its dummy means a previous pass handled
	// it; re-anonymizing must not grow the audit log.
	if reflect.DeepEqual(e.Value(), stored) {
		return nil
	}
	log.Record(e.Tag().String(), represent(e), logged)
	e.SetValue(stored)
	return nil
}

func remove(ds *dataset.Dataset, e *dataset.DataElement, log *AuditLog) {
	log.Record(e.Tag().String(), represent(e), nil)
	ds.Delete(e.Tag())
}

// finalize writes the supplement-142 bookkeeping attributes at the top
// level only: Patient Identity Removed and the de-identification method
// code sequence. Existing values are overwritten.
func finalize(ds *dataset.Dataset) {
	ds.Add(dataset.NewElement(identityRemovedTag, dataset.VRCodeString, []string{"YES"}))

	meanings := make([]string, len(appliedMethods))
	items := make([]*dataset.Dataset, len(appliedMethods))
	for i, method := range appliedMethods {
		meanings[i] = method.meaning
		items[i] = dataset.New(
			dataset.NewElement(codeValueTag, dataset.VRCodeString, []string{method.code}),
			dataset.NewElement(codingSchemeTag, dataset.VRCodeString, []string{"DCM"}),
			dataset.NewElement(codeMeaningTag, dataset.VRLongString, []string{method.meaning}),
		)
	}
	ds.Add(dataset.NewElement(deidentMethodTag, dataset.VRLongString, meanings))
	ds.Add(dataset.NewSequence(deidentMethodSeqTag, items...))
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		if len(x) > 0 {
			return x[0]
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
