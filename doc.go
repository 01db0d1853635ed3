// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ermalloc implements a C-callable heap allocator that layers
// data-protection policies — bitwise redundancy, Reed-Solomon forward
// error correction, and AES-128-CTR encryption — on top of ordinary
// malloc-style allocation.
//
// Every allocation is a header-prefixed block: the header records the
// user-requested length and the ordered policy stack, and is followed
// immediately by a backing buffer sized to hold the user's data plus
// whatever redundant copies, parity bytes, and nonces the active
// policies need. The policies nest outermost-to-innermost as
// Redundancy -> ReedSolomon -> Encrypted -> user data; encoding and
// correction both walk that nesting recursively.
//
// This package targets embedded and radiation-exposed environments
// where RAM contents can flip transiently (single-event upsets). It
// is not safe for concurrent use on the same block, does not
// authenticate its ciphertext, and uses a fixed compile-time key and
// nonce — see the package-level fixedKey and fixedNonce in crypto.go for the
// security caveat this implies.
//
// Changelog
//
// 2024-01-01 Initial Go port of the ermalloc policy-stack allocator.
package ermalloc
