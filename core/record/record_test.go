package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intakeForm struct {
	ID      string
	Name    string
	Age     int
	History []string
}

func (f intakeForm) Fields() map[string]any {
	return map[string]any{
		"patientId":      f.ID,
		"name":           f.Name,
		"age":            f.Age,
		"medicalHistory": f.History,
	}
}

func TestNewNormalizesToJSONDomain(t *testing.T) {
	rec, err := New(intakeForm{ID: "p1", Name: "Ada", Age: 29, History: []string{"anaemia"}})
	require.NoError(t, err)

	assert.Equal(t, "p1", rec.PatientID())
	assert.Equal(t, json.Number("29"), rec["age"])
	assert.Equal(t, []any{"anaemia"}, rec["medicalHistory"])
}

func TestFromJSONRejectsNonObjects(t *testing.T) {
	_, err := FromJSON([]byte(`null`))
	require.ErrorIs(t, err, ErrNotObject)

	_, err = FromJSON([]byte(`[1,2]`))
	require.Error(t, err)

	_, err = FromMap(nil)
	require.ErrorIs(t, err, ErrNotObject)
}

func TestCloneIsDeep(t *testing.T) {
	rec := MustFromMap(map[string]any{
		"patientId": "p1",
		"contact":   map[string]any{"phone": "+250700000000"},
		"visits":    []any{"2024-01-02"},
	})
	cp := rec.Clone()
	cp["contact"].(map[string]any)["phone"] = "changed"
	cp["visits"].([]any)[0] = "changed"

	assert.Equal(t, "+250700000000", rec["contact"].(map[string]any)["phone"])
	assert.Equal(t, "2024-01-02", rec["visits"].([]any)[0])
}

func TestMergeFollowsMergePatch(t *testing.T) {
	rec := MustFromMap(map[string]any{
		"patientId": "p1",
		"notes":     "first visit",
		"contact":   map[string]any{"phone": "1", "village": "Kigali"},
	})
	merged := rec.Merge(MustFromMap(map[string]any{
		"notes":   nil,
		"contact": map[string]any{"phone": "2"},
		"risk":    "high",
	}))

	assert.NotContains(t, merged, "notes")
	assert.Equal(t, map[string]any{"phone": "2", "village": "Kigali"}, merged["contact"])
	assert.Equal(t, "high", merged["risk"])
	assert.Equal(t, "first visit", rec["notes"], "merge must not touch the receiver")
}

func TestTierText(t *testing.T) {
	for _, tier := range Tiers() {
		b, err := tier.MarshalText()
		require.NoError(t, err)
		var back Tier
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, tier, back)
	}
	parsed, err := ParseTier(" Confidential ")
	require.NoError(t, err)
	assert.Equal(t, Confidential, parsed)

	_, err = ParseTier("secret")
	require.Error(t, err)
	_, err = Tier(9).MarshalText()
	require.Error(t, err)
	assert.True(t, Public < Restricted && Restricted < Confidential)
}

func TestEnvelopeValidate(t *testing.T) {
	now := time.Now()
	env := Envelope{
		PatientID:      "p1",
		ContentHash:    "abc",
		Ciphertext:     "xyz",
		Tier:           Restricted,
		Version:        1,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	require.NoError(t, env.Validate())

	bad := env
	bad.Version = 0
	require.Error(t, bad.Validate())

	bad = env
	bad.LastModifiedAt = now.Add(-time.Second)
	require.Error(t, bad.Validate())

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tier":"restricted"`)
}

func TestValidateSchema(t *testing.T) {
	require.NoError(t, Validate(MustFromMap(map[string]any{"patientId": "p-1", "name": "Ada"})))
	require.ErrorIs(t, Validate(MustFromMap(map[string]any{"name": "Ada"})), ErrMissingID)
	require.ErrorIs(t, Validate(MustFromMap(map[string]any{"patientId": "has space"})), ErrSchema)
	require.ErrorIs(t, Validate(MustFromMap(map[string]any{"patientId": "p1", "medicalHistory": "x"})), ErrSchema)
}
