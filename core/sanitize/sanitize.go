// Package sanitize redacts patient records down to what a disclosure tier
// may see. It runs before encryption, so redacted fields never reach disk.
package sanitize

import (
	"fmt"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

var defaultPolicy = DefaultPolicy()

// Sanitize applies the default policy.
func Sanitize(rec record.PatientRecord, tier record.Tier) (record.PatientRecord, error) {
	return defaultPolicy.Sanitize(rec, tier)
}

// Sanitize returns the part of rec visible at tier. It never mutates rec and
// is idempotent.
func (p *Policy) Sanitize(rec record.PatientRecord, tier record.Tier) (record.PatientRecord, error) {
	if rec == nil {
		return nil, record.ErrNotObject
	}
	switch tier {
	case record.Public:
		out := make(record.PatientRecord, len(p.public))
		for f := range p.public {
			if v, ok := rec[f]; ok {
				out[f] = v
			}
		}
		return out.Clone(), nil
	case record.Restricted:
		out := rec.Clone()
		for f := range p.confidential {
			delete(out, f)
		}
		for f := range p.history {
			if list, ok := out[f].([]any); ok && len(list) > p.HistoryLimit {
				out[f] = list[:p.HistoryLimit:p.HistoryLimit]
			}
		}
		return out, nil
	case record.Confidential:
		return rec.Clone(), nil
	default:
		return nil, fmt.Errorf("sanitize: unsupported tier %s", tier)
	}
}
