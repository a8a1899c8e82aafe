package nosmallfactors

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsqrtSmall(t *testing.T) {
	for n := int64(0); n <= 1000; n++ {
		got, err := Isqrt(big.NewInt(n))
		require.NoError(t, err)
		want := new(big.Int).Sqrt(big.NewInt(n))
		require.Equal(t, 0, got.Cmp(want), "isqrt(%d) = %s, want %s", n, got, want)
	}
}

func TestIsqrtNearSquares(t *testing.T) {
	for _, bits := range []int{64, 255, 256, 1024, 2048} {
		root, err := rand.Int(rand.Reader, new(big.Int).Lsh(one, uint(bits/2)))
		require.NoError(t, err)
		root.Add(root, big.NewInt(2))
		square := new(big.Int).Mul(root, root)

		for _, delta := range []int64{-1, 0, 1} {
			n := new(big.Int).Add(square, big.NewInt(delta))
			got, err := Isqrt(n)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(new(big.Int).Sqrt(n)), "bits=%d delta=%d", bits, delta)
		}
	}
}

func TestIsqrtRandom(t *testing.T) {
	limit := new(big.Int).Lsh(one, 3000)
	for i := 0; i < 64; i++ {
		n, err := rand.Int(rand.Reader, limit)
		require.NoError(t, err)
		got, err := Isqrt(n)
		require.NoError(t, err)

		// got^2 <= n < (got+1)^2
		lo := new(big.Int).Mul(got, got)
		next := new(big.Int).Add(got, one)
		hi := next.Mul(next, next)
		require.LessOrEqual(t, lo.Cmp(n), 0)
		require.Equal(t, 1, hi.Cmp(n))
	}
}

func TestIsqrtRejectsNegative(t *testing.T) {
	_, err := Isqrt(big.NewInt(-4))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Isqrt(nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestIsqrtDoesNotAlias(t *testing.T) {
	n := big.NewInt(1)
	got, err := Isqrt(n)
	require.NoError(t, err)
	got.SetInt64(5)
	assert.Equal(t, int64(1), n.Int64())
}

func TestModPowNegativeExponent(t *testing.T) {
	m := big.NewInt(35)
	inv, err := modPow(big.NewInt(3), big.NewInt(-1), m)
	require.NoError(t, err)
	assert.Equal(t, int64(1), new(big.Int).Mod(new(big.Int).Mul(inv, big.NewInt(3)), m).Int64())

	_, err = modPow(big.NewInt(5), big.NewInt(-1), m)
	assert.ErrorIs(t, err, errNotInvertible)

	v, err := pedersen(big.NewInt(2), big.NewInt(3), big.NewInt(3), big.NewInt(2), m)
	require.NoError(t, err)
	assert.Equal(t, int64(72%35), v.Int64())
}

func TestWipe(t *testing.T) {
	v := new(big.Int).Lsh(one, 300)
	limbs := v.Bits()
	wipe(v, nil)
	assert.Zero(t, v.Sign())
	for _, w := range limbs {
		assert.Zero(t, w)
	}
}
