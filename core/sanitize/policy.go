package sanitize

import (
	"errors"
	"fmt"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

// DefaultHistoryLimit is how many entries of a history list Restricted keeps.
const DefaultHistoryLimit = 3

// Policy decides which fields survive at each tier.
type Policy struct {
	// PublicFields is the allowlist for Public.
	PublicFields []string
	// ConfidentialOnly fields are dropped below Confidential.
	ConfidentialOnly []string
	// HistoryFields are list-valued fields truncated at Restricted.
	HistoryFields []string
	HistoryLimit  int

	public       map[string]struct{}
	confidential map[string]struct{}
	history      map[string]struct{}
}

// DefaultPolicy is the maternal-care disclosure policy.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(Policy{
		PublicFields:     []string{record.IDField, "name", "dateOfBirth", "age"},
		ConfidentialOnly: []string{"nationalId", "insuranceNumber", "hivStatus", "geneticTests"},
		HistoryFields:    []string{"medicalHistory", "pregnancyHistory", "visitHistory", "complications"},
		HistoryLimit:     DefaultHistoryLimit,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy validates def and builds its lookup sets. A field may not be
// both public and confidential-only or public and truncated, since either
// would let Public see more than Restricted.
func NewPolicy(def Policy) (*Policy, error) {
	if def.HistoryLimit < 0 {
		return nil, errors.New("sanitize: negative history limit")
	}
	p := &Policy{
		PublicFields:     append([]string(nil), def.PublicFields...),
		ConfidentialOnly: append([]string(nil), def.ConfidentialOnly...),
		HistoryFields:    append([]string(nil), def.HistoryFields...),
		HistoryLimit:     def.HistoryLimit,
		public:           toSet(def.PublicFields),
		confidential:     toSet(def.ConfidentialOnly),
		history:          toSet(def.HistoryFields),
	}
	if _, ok := p.public[record.IDField]; !ok {
		return nil, fmt.Errorf("sanitize: %s must be a public field", record.IDField)
	}
	for f := range p.public {
		if _, ok := p.confidential[f]; ok {
			return nil, fmt.Errorf("sanitize: field %q is both public and confidential-only", f)
		}
		if _, ok := p.history[f]; ok {
			return nil, fmt.Errorf("sanitize: field %q is both public and a truncated history field", f)
		}
	}
	return p, nil
}

func toSet(fields []string) map[string]struct{} {
	s := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}
