package tss

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subsets returns every k-element subset of 1..n.
func subsets(n, k int) [][]PartyIndex {
	var out [][]PartyIndex
	var walk func(start int, acc []PartyIndex)
	walk = func(start int, acc []PartyIndex) {
		if len(acc) == k {
			out = append(out, append([]PartyIndex(nil), acc...))
			return
		}
		for i := start; i <= n; i++ {
			walk(i+1, append(acc, PartyIndex(i)))
		}
	}
	walk(1, nil)
	return out
}

func pick[V any](m map[PartyIndex]V, indices []PartyIndex) map[PartyIndex]V {
	out := make(map[PartyIndex]V, len(indices))
	for _, i := range indices {
		out[i] = m[i]
	}
	return out
}

func TestSplitCombineEverySubset(t *testing.T) {
	curve := NewEd25519Curve()
	sss := NewSecretSharing(curve, nil)

	for n := 1; n <= 5; n++ {
		for threshold := 1; threshold <= n; threshold++ {
			secret, err := curve.ScalarFromUniformBytes(bytes.Repeat([]byte{byte(n*16 + threshold)}, 64))
			require.NoError(t, err)

			shares, err := sss.Split(secret, n, threshold)
			require.NoError(t, err)
			require.Len(t, shares, n)
			for _, share := range shares {
				require.Len(t, share, curve.ScalarSize())
			}

			for _, subset := range subsets(n, threshold) {
				got, err := sss.Combine(pick(shares, subset), threshold)
				require.NoError(t, err, "n=%d t=%d subset=%v", n, threshold, subset)
				assert.True(t, got.Equal(secret), "n=%d t=%d subset=%v", n, threshold, subset)
			}

			if threshold > 1 {
				_, err := sss.Combine(pick(shares, subsets(n, threshold-1)[0]), threshold)
				assert.ErrorIs(t, err, ErrInsufficientShares)
			}
		}
	}
}

func TestDealCommitmentsVerifyShares(t *testing.T) {
	for _, curve := range []Curve{NewEd25519Curve(), NewSecp256k1Curve()} {
		t.Run(curve.Name(), func(t *testing.T) {
			sss := NewSecretSharing(curve, nil)
			secret, err := curve.ScalarRandom(rand.Reader)
			require.NoError(t, err)

			shares, commitments, err := sss.Deal(secret, 5, 3)
			require.NoError(t, err)
			require.Equal(t, 3, commitments.Threshold())
			require.True(t, commitments.Constant().Equal(curve.BasePoint().Mul(secret)))

			for index, share := range shares {
				ok, err := commitments.Verify(index, share)
				require.NoError(t, err)
				require.True(t, ok, "share %d failed commitment check", index)
			}

			ok, err := commitments.Verify(1, shares[2])
			require.NoError(t, err)
			require.False(t, ok)

			_, err = commitments.Verify(0, shares[1])
			require.Error(t, err)

			got, err := sss.CombineScalars(pick(shares, []PartyIndex{2, 4, 5}), 3)
			require.NoError(t, err)
			require.True(t, got.Equal(secret))

			// Deal must not consume the caller's secret
			require.False(t, secret.IsZero())
		})
	}
}

func TestCombineRejectsInconsistentShares(t *testing.T) {
	curve := NewEd25519Curve()
	sss := NewSecretSharing(curve, nil)
	secret, err := curve.ScalarRandom(rand.Reader)
	require.NoError(t, err)

	shares, _, err := sss.Deal(secret, 4, 2)
	require.NoError(t, err)

	got, err := sss.CombineScalars(shares, 2)
	require.NoError(t, err)
	require.True(t, got.Equal(secret))

	shares[4] = shares[4].Add(curve.ScalarOne())
	_, err = sss.CombineScalars(shares, 2)
	require.ErrorIs(t, err, ErrInconsistentShares)

	// the first threshold shares alone still interpolate
	got, err = sss.CombineScalars(pick(shares, []PartyIndex{1, 2}), 2)
	require.NoError(t, err)
	require.True(t, got.Equal(secret))
}

func TestSecretSharingValidation(t *testing.T) {
	curve := NewEd25519Curve()
	sss := NewSecretSharing(curve, nil)
	secret := curve.ScalarOne()

	testCases := []struct {
		name      string
		numShares int
		threshold int
	}{
		{"zero threshold", 3, 0},
		{"threshold above shares", 2, 3},
		{"too many shares", MaxShares + 1, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := sss.Deal(secret, tc.numShares, tc.threshold)
			require.ErrorIs(t, err, ErrInvalidThreshold)
		})
	}

	_, _, err := sss.Deal(nil, 3, 2)
	require.ErrorIs(t, err, ErrInvalidShare)

	shares, err := sss.Split(secret, 3, 2)
	require.NoError(t, err)

	t.Run("ZeroIndex", func(t *testing.T) {
		bad := pick(shares, []PartyIndex{1, 2})
		bad[0] = shares[3]
		_, err := sss.Combine(bad, 2)
		require.ErrorIs(t, err, ErrInvalidIndex)
	})

	t.Run("ShortShare", func(t *testing.T) {
		bad := pick(shares, []PartyIndex{1, 2})
		bad[2] = bad[2][:31]
		_, err := sss.Combine(bad, 2)
		require.ErrorIs(t, err, ErrInvalidShare)
	})

	t.Run("NonCanonicalShare", func(t *testing.T) {
		bad := pick(shares, []PartyIndex{1, 2})
		bad[2] = bytes.Repeat([]byte{0xff}, 32)
		_, err := sss.Combine(bad, 2)
		require.ErrorIs(t, err, ErrInvalidShare)
	})

	t.Run("ZeroThreshold", func(t *testing.T) {
		_, err := sss.Combine(shares, 0)
		require.ErrorIs(t, err, ErrInvalidThreshold)
	})
}

func TestDealIsRandomized(t *testing.T) {
	curve := NewEd25519Curve()
	sss := NewSecretSharing(curve, nil)
	secret := curve.ScalarOne()

	first, err := sss.Split(secret, 3, 2)
	require.NoError(t, err)
	second, err := sss.Split(secret, 3, 2)
	require.NoError(t, err)
	require.NotEqual(t, first[1], second[1])
}
