package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

func fullRecord() record.PatientRecord {
	return record.MustFromMap(map[string]any{
		"patientId":       "p-001",
		"name":            "Grace Mukamana",
		"dateOfBirth":     "1994-02-11",
		"age":             30,
		"phone":           "+250788123456",
		"nationalId":      "1199480012345678",
		"insuranceNumber": "RSSB-4471",
		"hivStatus":       "negative",
		"geneticTests":    []any{"sickle-cell trait"},
		"medicalHistory":  []any{"h1", "h2", "h3", "h4", "h5"},
		"visitHistory":    []any{"v1", "v2"},
	})
}

func TestSanitizePublic(t *testing.T) {
	out, err := Sanitize(fullRecord(), record.Public)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"patientId", "name", "dateOfBirth", "age"}, keys(out))
	assert.Equal(t, "p-001", out["patientId"])
}

func TestSanitizeRestricted(t *testing.T) {
	out, err := Sanitize(fullRecord(), record.Restricted)
	require.NoError(t, err)

	for _, f := range []string{"nationalId", "insuranceNumber", "hivStatus", "geneticTests"} {
		assert.NotContains(t, out, f)
	}
	assert.Equal(t, []any{"h1", "h2", "h3"}, out["medicalHistory"])
	assert.Equal(t, []any{"v1", "v2"}, out["visitHistory"])
	assert.Equal(t, "+250788123456", out["phone"])
}

func TestSanitizeConfidentialKeepsEverything(t *testing.T) {
	in := fullRecord()
	out, err := Sanitize(in, record.Confidential)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	in := fullRecord()
	before := in.Clone()

	for _, tier := range record.Tiers() {
		out, err := Sanitize(in, tier)
		require.NoError(t, err)
		out["name"] = "changed"
		if hist, ok := out["medicalHistory"].([]any); ok && len(hist) > 0 {
			hist[0] = "changed"
		}
	}
	assert.Equal(t, before, in)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	for _, tier := range record.Tiers() {
		once, err := Sanitize(fullRecord(), tier)
		require.NoError(t, err)
		twice, err := Sanitize(once, tier)
		require.NoError(t, err)
		assert.Equal(t, once, twice, tier.String())
	}
}

func TestSanitizeIsMonotonic(t *testing.T) {
	pub, err := Sanitize(fullRecord(), record.Public)
	require.NoError(t, err)
	res, err := Sanitize(fullRecord(), record.Restricted)
	require.NoError(t, err)
	conf, err := Sanitize(fullRecord(), record.Confidential)
	require.NoError(t, err)

	assert.Subset(t, keys(res), keys(pub))
	assert.Subset(t, keys(conf), keys(res))
}

func TestSanitizeRejectsUnknownTier(t *testing.T) {
	_, err := Sanitize(fullRecord(), record.Tier(9))
	require.Error(t, err)

	_, err = Sanitize(nil, record.Public)
	require.ErrorIs(t, err, record.ErrNotObject)
}

func TestNewPolicyRejectsOverlap(t *testing.T) {
	_, err := NewPolicy(Policy{
		PublicFields:     []string{"patientId", "hivStatus"},
		ConfidentialOnly: []string{"hivStatus"},
	})
	require.Error(t, err)

	_, err = NewPolicy(Policy{
		PublicFields:  []string{"patientId", "visitHistory"},
		HistoryFields: []string{"visitHistory"},
		HistoryLimit:  1,
	})
	require.Error(t, err)

	_, err = NewPolicy(Policy{PublicFields: []string{"name"}})
	require.Error(t, err)

	p, err := NewPolicy(Policy{
		PublicFields:  []string{"patientId"},
		HistoryFields: []string{"visits"},
		HistoryLimit:  1,
	})
	require.NoError(t, err)
	out, err := p.Sanitize(record.MustFromMap(map[string]any{"patientId": "x", "visits": []any{1, 2}}), record.Restricted)
	require.NoError(t, err)
	assert.Len(t, out["visits"], 1)
}

func keys(r record.PatientRecord) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}
