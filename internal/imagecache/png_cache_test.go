package imagecache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func countingEncoder(calls *int) Encoder {
	return func(pixels []byte, width, height, mode int) ([]byte, error) {
		*calls++
		return append([]byte(nil), pixels...), nil
	}
}

func TestPngCache_RoundTripDoesNotReencode(t *testing.T) {
	var calls int
	c := New(countingEncoder(&calls), DefaultSoftBudget)

	pixels := []byte{1, 2, 3, 4}
	out1, err := c.Encode(pixels, 1, 1, 0)
	require.NoError(t, err)
	out2, err := c.Encode(pixels, 1, 1, 0)
	require.NoError(t, err)

	require.Equal(t, out1, out2)
	require.Equal(t, 1, calls, "second call should hit the cache, not the encoder")
}

func TestPngCache_EncodeFailureBypassesCache(t *testing.T) {
	c := New(func(pixels []byte, width, height, mode int) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	}, DefaultSoftBudget)

	_, err := c.Encode([]byte{1, 2, 3}, 1, 1, 0)
	require.Error(t, err)
	require.Equal(t, 0, c.Len())
}

func TestPngCache_RebalanceEvictsAtOrBelowMean(t *testing.T) {
	var calls int
	c := New(countingEncoder(&calls), 16) // tiny budget forces rebalance quickly

	// Insert several distinct entries, hit the first one repeatedly so it
	// survives eviction with an above-mean hit count.
	hot := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	_, err := c.Encode(hot, 2, 1, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = c.Encode(hot, 2, 1, 0)
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		cold := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3), byte(i + 4), byte(i + 5), byte(i + 6), byte(i + 7)}
		_, err = c.Encode(cold, 2, 1, 0)
		require.NoError(t, err)
	}

	// The hot entry should still be present after eviction pressure; a
	// fresh Encode call for it must not re-invoke the encoder.
	callsBefore := calls
	_, err = c.Encode(hot, 2, 1, 0)
	require.NoError(t, err)
	require.Equal(t, callsBefore, calls, "hot entry should have survived rebalance")
}

func TestPngCache_EncodeSubHashesGeometryNotJustBytes(t *testing.T) {
	var calls int
	c := New(countingEncoder(&calls), DefaultSoftBudget)

	buf := make([]byte, 4*4*4) // 4x4 RGBA buffer
	for i := range buf {
		buf[i] = byte(i)
	}

	_, err := c.EncodeSub(buf, 0, 0, 2, 2, 4, 4, 0)
	require.NoError(t, err)
	_, err = c.EncodeSub(buf, 1, 1, 2, 2, 4, 4, 0)
	require.NoError(t, err)

	require.Equal(t, 2, calls, "different sub-regions must not collide in the cache")
}
