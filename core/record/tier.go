package record

import (
	"fmt"
	"strings"
)

// Tier is a disclosure level. Higher tiers see strictly more of a record.
type Tier uint8

const (
	Public Tier = iota
	Restricted
	Confidential
)

var tierNames = [...]string{
	Public:       "public",
	Restricted:   "restricted",
	Confidential: "confidential",
}

// Tiers lists every tier in increasing order of visibility.
func Tiers() []Tier {
	return []Tier{Public, Restricted, Confidential}
}

func (t Tier) Valid() bool {
	return int(t) < len(tierNames)
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
	return tierNames[t]
}

// ParseTier accepts the lower-case tier names, case-insensitively.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("record: unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("record: invalid tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
