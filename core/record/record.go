// Package record holds the patient record model shared by the vault
// components: the generic Record abstraction, disclosure tiers and the
// stored envelope.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// IDField is the top-level field carrying the stable patient identifier.
const IDField = "patientId"

var (
	ErrNotObject = errors.New("record: not a JSON object")
	ErrMissingID = errors.New("record: missing patientId")
)

// Record is anything that can enumerate its fields as a JSON-compatible map.
// Concrete patient schemas live in the CRUD layer; the vault only needs this.
type Record interface {
	Fields() map[string]any
}

// PatientRecord is the normalized form of a Record. Values are restricted to
// the JSON domain: nil, bool, string, json.Number, []any and map[string]any.
type PatientRecord map[string]any

func (r PatientRecord) Fields() map[string]any { return r }

// PatientID returns the patientId field, or "" when absent or not a string.
func (r PatientRecord) PatientID() string {
	id, _ := r[IDField].(string)
	return id
}

// New normalizes rec into a PatientRecord by round-tripping it through JSON.
// The result shares nothing with the input.
func New(rec Record) (PatientRecord, error) {
	if rec == nil {
		return nil, ErrNotObject
	}
	raw, err := json.Marshal(rec.Fields())
	if err != nil {
		return nil, fmt.Errorf("record: encode: %w", err)
	}
	return FromJSON(raw)
}

// FromMap is New for a plain map.
func FromMap(m map[string]any) (PatientRecord, error) {
	if m == nil {
		return nil, ErrNotObject
	}
	return New(PatientRecord(m))
}

// MustFromMap is FromMap that panics on error. Intended for tests and
// literals.
func MustFromMap(m map[string]any) PatientRecord {
	r, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return r
}

// FromJSON decodes a JSON object, keeping numbers as json.Number so integer
// and decimal fields survive encryption round trips unchanged.
func FromJSON(raw []byte) (PatientRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("record: decode: %w", err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	return PatientRecord(fields), nil
}

// Clone returns a deep copy of r.
func (r PatientRecord) Clone() PatientRecord {
	if r == nil {
		return nil
	}
	out := make(PatientRecord, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge applies changes as a JSON merge patch (RFC 7386) over a copy of r:
// nil deletes a field, nested objects merge, anything else replaces.
func (r PatientRecord) Merge(changes PatientRecord) PatientRecord {
	out := r.Clone()
	if out == nil {
		out = PatientRecord{}
	}
	mergeInto(out, changes)
	return out
}

func mergeInto(dst map[string]any, patch map[string]any) {
	for k, pv := range patch {
		if pv == nil {
			delete(dst, k)
			continue
		}
		if pm, ok := pv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, pm)
				continue
			}
			fresh := map[string]any{}
			mergeInto(fresh, pm)
			dst[k] = fresh
			continue
		}
		dst[k] = cloneValue(pv)
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case PatientRecord:
		return map[string]any(t.Clone())
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
