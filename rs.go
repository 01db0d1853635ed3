// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"github.com/klauspost/reedsolomon"
)

// rsEncoder builds a one-byte-per-shard encoder for dataLen data
// bytes and k parity bytes. Each byte of the policy's buffer is its
// own shard; this is the byte-oriented systematic Reed-Solomon coding
// spec.md §4.1 describes (len(data) data symbols, k parity symbols),
// expressed in terms of klauspost/reedsolomon's shard model.
func rsEncoder(dataLen, k int) (reedsolomon.Encoder, error) {
	return reedsolomon.New(dataLen, k, reedsolomon.WithMaxGoroutines(1))
}

func rsShards(data, parity []byte) [][]byte {
	shards := make([][]byte, 0, len(data)+len(parity))
	for i := range data {
		shards = append(shards, data[i:i+1:i+1])
	}
	for i := range parity {
		shards = append(shards, parity[i:i+1:i+1])
	}
	return shards
}

// rsEncode writes k parity bytes for data into parity (len(parity) == k).
func rsEncode(data, parity []byte) error {
	enc, err := rsEncoder(len(data), len(parity))
	if err != nil {
		return err
	}
	return enc.Encode(rsShards(data, parity))
}

// rsIsCorrupted reports whether the stored parity bytes are
// inconsistent with data — the codec's own corruption check, per
// spec.md §4.1.
func rsIsCorrupted(data, parity []byte) bool {
	enc, err := rsEncoder(len(data), len(parity))
	if err != nil {
		return false
	}
	ok, err := enc.Verify(rsShards(data, parity))
	return err != nil || !ok
}

// rsCorrect attempts to repair data/parity in place. It returns the
// number of byte errors found and true on success; on failure it
// returns (0, false) and leaves data/parity untouched, letting an
// outer Redundancy layer, if any, fall back (spec.md §4.1,§7).
//
// klauspost/reedsolomon is an erasure coder: Reconstruct only fills
// in shards whose index is already known to be missing. It has no
// syndrome decoder to locate unknown error positions on its own, so
// rsCorrect locates them by exhaustive trial: for each candidate error
// count t from 1 up to the code's correction capacity floor(k/2),
// every t-subset of the data+parity shards is marked erased,
// reconstructed, and checked with Verify. The first subset whose
// reconstruction verifies is the fix. This is the same "erasure-decode
// by trial" technique kopia's ecc_rs_crc.go uses to find which shards
// need ReconstructData, applied here without its CRC side channel
// (spec.md fixes len(meta) == k exactly, leaving no room for one).
func rsCorrect(data, parity []byte) (int, bool) {
	k := len(parity)
	total := len(data) + k
	enc, err := rsEncoder(len(data), k)
	if err != nil {
		return 0, false
	}

	shards := rsShards(data, parity)
	if ok, err := enc.Verify(shards); err == nil && ok {
		return 0, true
	}

	capacity := k / 2
	for t := 1; t <= capacity; t++ {
		if fixed, ok := tryErasures(enc, shards, total, t); ok {
			for i := range data {
				data[i] = fixed[i][0]
			}
			for i := range parity {
				parity[i] = fixed[len(data)+i][0]
			}
			return t, true
		}
	}
	return 0, false
}

// tryErasures enumerates every combination of t indices out of
// [0,total), marks them erased, reconstructs, and returns the first
// candidate whose reconstruction verifies against its own parity.
func tryErasures(enc reedsolomon.Encoder, shards [][]byte, total, t int) ([][]byte, bool) {
	combo := make([]int, t)
	for i := range combo {
		combo[i] = i
	}

	for {
		if fixed, ok := tryErasureSet(enc, shards, total, combo); ok {
			return fixed, true
		}
		if !nextCombination(combo, total) {
			return nil, false
		}
	}
}

func tryErasureSet(enc reedsolomon.Encoder, shards [][]byte, total int, erased []int) ([][]byte, bool) {
	trial := make([][]byte, total)
	for i, s := range shards {
		cp := make([]byte, len(s))
		copy(cp, s)
		trial[i] = cp
	}
	for _, idx := range erased {
		trial[idx] = nil
	}

	if err := enc.Reconstruct(trial); err != nil {
		return nil, false
	}
	ok, err := enc.Verify(trial)
	if err != nil || !ok {
		return nil, false
	}
	return trial, true
}

// nextCombination advances combo (a strictly increasing slice of
// indices into [0,n)) to the next combination in lexicographic order.
// Returns false once combo was the last one.
func nextCombination(combo []int, n int) bool {
	k := len(combo)
	i := k - 1
	for i >= 0 && combo[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	combo[i]++
	for j := i + 1; j < k; j++ {
		combo[j] = combo[j-1] + 1
	}
	return true
}
