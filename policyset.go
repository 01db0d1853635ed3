// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

// MaxPolicies is the fixed capacity of a PolicySet: one slot each for
// Redundancy, ReedSolomon, and Encrypted.
const MaxPolicies = 3

const (
	slotRedundancy  = 0
	slotReedSolomon = 1
	slotEncrypted   = 2
)

// PolicySet is the canonical, fixed-capacity ordered policy stack.
// Slot 0 is always Redundancy (or Nil), slot 1 always ReedSolomon (or
// Nil), slot 2 always Encrypted (or Nil) — regardless of the order a
// caller supplied them in. The layout nests outermost-in as
// Redundancy -> ReedSolomon -> Encrypted -> user data; encoding walks
// the slots in reverse (2, 1, 0).
type PolicySet [MaxPolicies]Policy

// NewPolicySet builds a canonical PolicySet from policies in any
// order. Later entries of the same Kind overwrite earlier ones; Nil
// entries are dropped. It never panics: each Kind maps to exactly one
// fixed slot, so a repeated kind simply replaces the earlier entry.
func NewPolicySet(policies ...Policy) PolicySet {
	var set PolicySet
	for _, p := range policies {
		switch p.Kind {
		case KindRedundancy:
			set[slotRedundancy] = p
		case KindReedSolomon:
			set[slotReedSolomon] = p
		case KindEncrypted:
			set[slotEncrypted] = p
		case KindNil:
			// dropped
		}
	}
	return set
}

// sizeOf computes the total backing-buffer size for a user length of
// length bytes under the given policy set, per spec.md §4.2: walk
// slots MaxPolicies-1 down to 0, growing a running size.
func sizeOf(length uint64, policies PolicySet) uint64 {
	s := length
	for i := MaxPolicies - 1; i >= 0; i-- {
		switch policies[i].Kind {
		case KindEncrypted:
			s += NonceLen
		case KindReedSolomon:
			s += uint64(policies[i].Param)
		case KindRedundancy:
			s *= uint64(policies[i].Param)
		}
	}
	return s
}
