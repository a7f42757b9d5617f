package rs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_EncodeRejectsWrongLength(t *testing.T) {
	c, err := NewCodec(12)
	require.NoError(t, err)
	_, err = c.Encode(make([]byte, 11))
	assert.Error(t, err)
}

func Test_DecodeRejectsWrongLength(t *testing.T) {
	c, err := NewCodec(12)
	require.NoError(t, err)
	_, _, err = c.Decode(make([]byte, 10))
	assert.Error(t, err)
}

func Test_NewCodecRejectsOutOfRangeLength(t *testing.T) {
	_, err := NewCodec(0)
	assert.Error(t, err)
	_, err = NewCodec(MaxDataLen + 1)
	assert.Error(t, err)
}

func Test_CleanCodewordDecodesWithZeroErrors(t *testing.T) {
	c, err := NewCodec(12)
	require.NoError(t, err)
	codeword, err := c.Encode([]byte("Hello, NADE!"))
	require.NoError(t, err)

	data, numErrors, err := c.Decode(codeword)
	require.NoError(t, err)
	assert.Equal(t, 0, numErrors)
	assert.Equal(t, []byte("Hello, NADE!"), data)
}

// S4 seed scenario from spec.md §8: "Hello, NADE!" (12 bytes) encodes to
// 44 bytes; corrupting 5 scattered positions is corrected exactly,
// corrupting 17 is reported Uncorrectable rather than silently wrong.
func Test_S4_SeedScenario(t *testing.T) {
	c, err := NewCodec(12)
	require.NoError(t, err)

	original := []byte("Hello, NADE!")
	codeword, err := c.Encode(original)
	require.NoError(t, err)
	require.Len(t, codeword, 44)

	corrupted := make([]byte, len(codeword))
	copy(corrupted, codeword)
	for _, pos := range []int{0, 5, 11, 20, 30} {
		corrupted[pos] ^= 0xFF
	}
	data, numErrors, err := c.Decode(corrupted)
	require.NoError(t, err)
	assert.Equal(t, 5, numErrors)
	assert.Equal(t, original, data)

	corrupted2 := make([]byte, len(codeword))
	copy(corrupted2, codeword)
	for i := 0; i < 17; i++ {
		corrupted2[i] ^= 0xFF
	}
	_, _, err = c.Decode(corrupted2)
	assert.ErrorContains(t, err, "")
}

// Property 4 from spec.md §8: decode always recovers the original data
// exactly when at most MaxCorrectable symbols are corrupted. The
// MaxCorrectable+1 case is covered by Test_RSReportsUncorrectableBeyondCapacity.
func Test_RSCorrectsUpToCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dataLen := rapid.IntRange(1, MaxDataLen).Draw(t, "dataLen")
		c, err := NewCodec(dataLen)
		require.NoError(t, err)

		data := make([]byte, dataLen)
		for i := range data {
			data[i] = byte(rapid.IntRange(0, 255).Draw(t, "byte"))
		}
		codeword, err := c.Encode(data)
		require.NoError(t, err)

		n := dataLen + ParityLen
		numErrors := rapid.IntRange(0, MaxCorrectable).Draw(t, "numErrors")
		positions := rapid.Permutation(seq(n)).Draw(t, "positions")[:numErrors]

		corrupted := make([]byte, n)
		copy(corrupted, codeword)
		for _, pos := range positions {
			delta := byte(rapid.IntRange(1, 255).Draw(t, "delta"))
			corrupted[pos] ^= delta
		}

		decoded, reported, err := c.Decode(corrupted)
		require.NoError(t, err)
		assert.Equal(t, numErrors, reported)
		assert.Equal(t, data, decoded)
	})
}

func Test_RSReportsUncorrectableBeyondCapacity(t *testing.T) {
	c, err := NewCodec(MaxDataLen)
	require.NoError(t, err)

	data := make([]byte, MaxDataLen)
	codeword, err := c.Encode(data)
	require.NoError(t, err)

	corrupted := make([]byte, len(codeword))
	copy(corrupted, codeword)
	for i := 0; i < MaxCorrectable+1; i++ {
		corrupted[i] ^= 0xFF
	}

	_, _, err = c.Decode(corrupted)
	assert.Error(t, err)
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
