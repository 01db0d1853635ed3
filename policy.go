// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"fmt"
)

// Kind tags the four cases a Policy can take.
type Kind uint32

const (
	// KindNil is a no-op placeholder occupying an unused slot.
	KindNil Kind = iota
	// KindRedundancy keeps Param total copies of the data, including the original.
	KindRedundancy
	// KindReedSolomon appends Param parity bytes computed over the data.
	KindReedSolomon
	// KindEncrypted runs AES-128-CTR over the data with a fixed key and nonce.
	KindEncrypted
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindRedundancy:
		return "Redundancy"
	case KindReedSolomon:
		return "ReedSolomon"
	case KindEncrypted:
		return "Encrypted"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Policy is a tagged value describing one protection layer. Param is
// the number of copies for KindRedundancy, the parity length for
// KindReedSolomon, and unused for KindNil/KindEncrypted.
type Policy struct {
	Kind  Kind
	Param uint32
}

// NonceLen is the AES-CTR nonce length in bytes, and the metadata
// length of an Encrypted layer.
const NonceLen = 16

// split returns the (data, meta) slices policy sees in buf, per the
// table in spec.md §4.1. Nil layers are never walked in practice but
// split the same way the original did, for symmetry.
func (p Policy) split(buf []byte) (data, meta []byte) {
	n := len(buf)
	switch p.Kind {
	case KindRedundancy:
		copies := int(p.Param)
		if n%copies != 0 {
			panic(fmt.Sprintf("ermalloc: redundancy: buffer of %d bytes is not divisible by %d copies", n, copies))
		}
		dataLen := n / copies
		return buf[:dataLen], buf[dataLen:]
	case KindReedSolomon:
		k := int(p.Param)
		if n <= k {
			panic(fmt.Sprintf("ermalloc: reed-solomon: buffer of %d bytes is too small for %d parity bytes", n, k))
		}
		return buf[:n-k], buf[n-k:]
	case KindEncrypted:
		if n <= NonceLen {
			panic(fmt.Sprintf("ermalloc: encryption: buffer of %d bytes is too small for a %d-byte nonce", n, NonceLen))
		}
		return buf[:n-NonceLen], buf[n-NonceLen:]
	default:
		return buf[:n-1], buf[n-1:]
	}
}

// data is a convenience wrapper around split that discards the meta half.
func (p Policy) data(buf []byte) []byte {
	d, _ := p.split(buf)
	return d
}

// apply makes the policy's protection metadata consistent with the
// current data. Not idempotent for KindEncrypted.
func (p Policy) apply(buf []byte) {
	switch p.Kind {
	case KindRedundancy:
		data, meta := p.split(buf)
		dataLen := len(data)
		for off := 0; off+dataLen <= len(meta); off += dataLen {
			copy(meta[off:off+dataLen], data)
		}
	case KindReedSolomon:
		data, meta := p.split(buf)
		if err := rsEncode(data, meta); err != nil {
			panic(fmt.Sprintf("ermalloc: reed-solomon encode failed: %v", err))
		}
	case KindEncrypted:
		data, meta := p.split(buf)
		encryptKeystream(data)
		copy(meta, fixedNonce)
	}
}

// isCorrupted reports whether apply would produce different content
// than what is currently stored.
func (p Policy) isCorrupted(buf []byte) bool {
	switch p.Kind {
	case KindRedundancy:
		data, _ := p.split(buf)
		copies := int(p.Param)
		dataLen := len(data)
		for i := 0; i < dataLen; i++ {
			want := buf[i]
			for c := 1; c < copies; c++ {
				if buf[c*dataLen+i] != want {
					return true
				}
			}
		}
		return false
	case KindReedSolomon:
		data, meta := p.split(buf)
		return rsIsCorrupted(data, meta)
	default:
		return false
	}
}

// correct repairs buf in place and returns the number of corrected
// bit or byte errors (units differ per policy — see spec.md §4.1).
func (p Policy) correct(buf []byte) uint32 {
	switch p.Kind {
	case KindRedundancy:
		return correctRedundancy(buf, int(p.Param))
	case KindReedSolomon:
		data, meta := p.split(buf)
		n, ok := rsCorrect(data, meta)
		if !ok {
			return 0
		}
		return uint32(n)
	default:
		return 0
	}
}

// correctRedundancy performs the per-bit majority vote described in
// spec.md §4.1: for each byte position, each of the 8 bit positions is
// voted on across all copies. A strict majority forces every copy to
// agree and contributes min(zeros, ones) to the error count. An even
// n that ties defaults that bit to 0 in every copy (regardless of
// what copy 0 currently holds) but still counts the minority side as
// errors — a documented quirk, not a bug (see spec.md §9).
func correctRedundancy(buf []byte, copies int) uint32 {
	if len(buf)%copies != 0 {
		panic(fmt.Sprintf("ermalloc: redundancy: buffer of %d bytes is not divisible by %d copies", len(buf), copies))
	}
	dataLen := len(buf) / copies
	var errors uint32
	for i := 0; i < dataLen; i++ {
		var corrected byte
		for bit := 0; bit < 8; bit++ {
			mask := byte(1) << uint(bit)
			var zeros, ones uint32
			for c := 0; c < copies; c++ {
				if buf[c*dataLen+i]&mask != 0 {
					ones++
				} else {
					zeros++
				}
			}
			switch {
			case ones > zeros:
				corrected |= mask
				errors += minUint32(zeros, ones)
			case zeros > ones:
				errors += minUint32(zeros, ones)
			default:
				// Tie on an even copy count: default the bit to 0
				// regardless of what any copy currently holds, but
				// still tally the minority side.
				errors += zeros
			}
		}
		for c := 0; c < copies; c++ {
			buf[c*dataLen+i] = corrected
		}
	}
	return errors
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
