package nosmallfactors

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	st := testStatement(t)
	proto := New()
	proof := prove(t, proto, st)

	sp, err := proof.Serialize()
	require.NoError(t, err)
	raw, err := json.Marshal(sp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rho":`)
	assert.Contains(t, string(raw), `"z1":`)

	var decoded SerializedProof
	require.NoError(t, json.Unmarshal(raw, &decoded))
	back, err := decoded.Deserialize()
	require.NoError(t, err)

	for i, v := range proof.fields() {
		assert.Equal(t, 0, v.Cmp(back.fields()[i]), "field %d", i)
	}
	require.NoError(t, proto.Verify(st.n0, st.w, st.aux.NHat, st.aux.S, st.aux.T, back))
}

func TestSignedEncoding(t *testing.T) {
	testCases := []struct {
		value   int64
		encoded string
	}{
		{0, "00"},
		{1, "01"},
		{-1, "-01"},
		{255, "ff"},
		{-256, "-0100"},
	}
	for _, tc := range testCases {
		v := big.NewInt(tc.value)
		assert.Equal(t, tc.encoded, encodeSigned(v))
		back, err := decodeSigned(tc.encoded)
		require.NoError(t, err)
		assert.Equal(t, tc.value, back.Int64())
	}
}

func TestDeserializeRejectsBadFields(t *testing.T) {
	good := &SerializedProof{
		P: "01", Q: "01", A: "01", B: "01", T: "01", Rho: "-01",
		Z1: "01", Z2: "01", W1: "01", W2: "01", V: "01",
	}
	_, err := good.Deserialize()
	require.NoError(t, err)

	for _, bad := range []string{"", "-", "zz", "0"} {
		sp := *good
		sp.Z2 = bad
		_, err := sp.Deserialize()
		assert.ErrorIs(t, err, ErrMalformedProof, "input %q", bad)
	}

	var nilProof *SerializedProof
	_, err = nilProof.Deserialize()
	assert.ErrorIs(t, err, ErrMalformedProof)

	_, err = (&Proof{}).Serialize()
	assert.ErrorIs(t, err, ErrMalformedProof)
}
