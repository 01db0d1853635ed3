// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRSEncodeDecodeRoundTrip(t *testing.T) {
	data := []byte("forward error correction")
	parity := make([]byte, 6)

	require.NoError(t, rsEncode(data, parity))
	require.False(t, rsIsCorrupted(data, parity))

	n, ok := rsCorrect(data, parity)
	require.True(t, ok)
	require.Zero(t, n)
}

// TestRSCorrectionBound is spec.md §8's quantified RS correction
// bound: up to floor(k/2) byte errors anywhere in the codeword are
// fully corrected and reported.
func TestRSCorrectionBound(t *testing.T) {
	cases := []struct {
		name       string
		dataLen    int
		k          int
		corruptIdx []int // indices into data||parity
	}{
		{"k=3 single error in data", 8, 3, []int{2}},
		{"k=4 two errors, one in parity", 8, 4, []int{0, 9}},
		{"k=5 two errors in data", 10, 5, []int{1, 7}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.dataLen)
			for i := range data {
				data[i] = byte(i*7 + 1)
			}
			parity := make([]byte, tc.k)
			require.NoError(t, rsEncode(data, parity))

			original := append([]byte(nil), data...)
			combined := append(append([]byte(nil), data...), parity...)
			for _, idx := range tc.corruptIdx {
				combined[idx] ^= 0xFF
			}
			copy(data, combined[:tc.dataLen])
			copy(parity, combined[tc.dataLen:])

			require.True(t, rsIsCorrupted(data, parity))

			n, ok := rsCorrect(data, parity)
			require.True(t, ok, "expected correction within floor(k/2) capacity to succeed")
			require.Equal(t, len(tc.corruptIdx), n)
			require.Equal(t, original, data)
		})
	}
}

func TestRSDecodeFailureLeavesBufferUntouched(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	parity := make([]byte, 3) // capacity floor(3/2) = 1
	require.NoError(t, rsEncode(data, parity))

	before := append([]byte(nil), data...)
	beforeParity := append([]byte(nil), parity...)

	// Three corruptions exceed the 1-error capacity of k=3.
	data[0] ^= 0xFF
	data[1] ^= 0xFF
	data[2] ^= 0xFF

	corruptedData := append([]byte(nil), data...)
	corruptedParity := append([]byte(nil), parity...)

	n, ok := rsCorrect(data, parity)
	require.False(t, ok)
	require.Zero(t, n)
	require.Equal(t, corruptedData, data)
	require.Equal(t, corruptedParity, parity)
	require.NotEqual(t, before, data)
	_ = beforeParity
}
