// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"crypto/aes"
	"crypto/cipher"
)

// Fixed AES-128-CTR parameters. These are explicitly placeholders —
// spec.md §6 documents the limitation: a production deployment must
// derive a per-block nonce from a CSPRNG and store it in the existing
// nonce slot, key management is a Non-goal here, and with no
// authentication tag this is confidentiality-at-rest against bit
// flips, not integrity.
var (
	fixedKey   = []byte("very secret key.")
	fixedNonce = []byte("and secret nonce")
)

// encryptKeystream XORs data in place with the AES-128-CTR keystream
// for fixedKey/fixedNonce. CTR keystream XOR is its own inverse, so
// the same call encrypts and decrypts.
func encryptKeystream(data []byte) {
	encryptKeystreamWithNonce(data, fixedNonce)
}

// encryptKeystreamWithNonce is the general form: apply the keystream
// for an arbitrary (but still NonceLen-byte) nonce. DecryptBuffer uses
// this with whatever nonce is stored in the block's metadata, which
// today is always fixedNonce but need not stay that way if a future
// caller starts writing real per-block nonces into the same slot.
func encryptKeystreamWithNonce(data, nonce []byte) {
	block, err := aes.NewCipher(fixedKey)
	if err != nil {
		panic("ermalloc: aes.NewCipher with a 16-byte key cannot fail: " + err.Error())
	}
	stream := cipher.NewCTR(block, nonce)
	stream.XORKeyStream(data, data)
}
