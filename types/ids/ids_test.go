package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordKeyIsStableAndScoped(t *testing.T) {
	a := RecordKey("0xabc", "p1")
	require.Equal(t, a, RecordKey("0xabc", "p1"))
	require.NotEqual(t, a, RecordKey("0xdef", "p1"))
	require.NotEqual(t, a, RecordKey("0xabc", "p2"))
	require.NotContains(t, a.String(), "p1")
}

func TestFromStringRoundTrip(t *testing.T) {
	id := RecordKey("0xabc", "p1")
	parsed, err := FromString(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = FromString("abcd")
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = FromString("zz")
	require.Error(t, err)
}
