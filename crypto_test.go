// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"bytes"
	"testing"
)

func TestEncryptKeystreamRoundTrips(t *testing.T) {
	plaintext := []byte("a sixteen byte!!")
	buf := append([]byte(nil), plaintext...)

	encryptKeystream(buf)
	if bytes.Equal(buf, plaintext) {
		t.Fatal("ciphertext should differ from plaintext")
	}

	encryptKeystream(buf)
	if !bytes.Equal(buf, plaintext) {
		t.Fatal("applying the keystream twice should restore plaintext")
	}
}

func TestEncryptKeystreamWithNonceMatchesDefault(t *testing.T) {
	a := []byte("another message.")
	b := append([]byte(nil), a...)

	encryptKeystream(a)
	encryptKeystreamWithNonce(b, fixedNonce)

	if !bytes.Equal(a, b) {
		t.Fatal("encryptKeystreamWithNonce(fixedNonce) should match encryptKeystream")
	}
}
