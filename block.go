// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"fmt"
	"unsafe"
)

// AllocBlock is the header immediately preceding every backing
// buffer this package hands out. It contains no Go pointers, which is
// what makes it safe to place directly inside memory obtained from
// the system allocator (alloc.go) and left untouched by the Go
// garbage collector.
type AllocBlock struct {
	Policies   PolicySet
	BufferSize uint64
	Length     uint64
	WeakExists bool
}

// headerSize is the number of bytes the header occupies ahead of the
// user pointer on every allocation.
const headerSize = unsafe.Sizeof(AllocBlock{})

// newBlock allocates a block sized for length user bytes under
// policies. When zeroed is true the backing memory is zero-filled and
// the policy stack is applied immediately so the all-zero plaintext
// starts out in a clean, correctable state; when false the buffer
// contents are undefined until the caller writes data and invokes
// ApplyPolicy.
func newBlock(length uint64, policies PolicySet, zeroed bool) *AllocBlock {
	bufSize := sizeOf(length, policies)
	raw := systemAlloc(headerSize+uintptr(bufSize), zeroed)
	if raw == nil {
		return nil
	}
	block := (*AllocBlock)(raw)
	block.Policies = policies
	block.BufferSize = bufSize
	block.Length = length
	block.WeakExists = false

	tracef("ermalloc: new(%d, %v, zeroed=%v) -> %p\n", length, policies, zeroed, raw)

	if zeroed {
		block.ApplyPolicy()
	}
	return block
}

// renewBlock reallocates block to hold newLength bytes under
// newPolicies and unconditionally re-applies the new policy stack.
// Reallocation never tries to preserve the logical plaintext across a
// policy-set change — changing policies on a live block is a
// Non-goal (spec.md §1); renew always starts from whatever bytes the
// system allocator preserves verbatim.
func renewBlock(block *AllocBlock, newLength uint64, newPolicies PolicySet) *AllocBlock {
	newBufSize := sizeOf(newLength, newPolicies)
	raw := systemRealloc(unsafe.Pointer(block), headerSize+uintptr(newBufSize))
	if raw == nil {
		return nil
	}
	newBlock := (*AllocBlock)(raw)
	newBlock.Policies = newPolicies
	newBlock.BufferSize = newBufSize
	newBlock.Length = newLength
	newBlock.WeakExists = false

	tracef("ermalloc: renew(%p, %d, %v) -> %p\n", block, newLength, newPolicies, raw)

	newBlock.ApplyPolicy()
	return newBlock
}

// dropBlock recomputes the block's current layout and releases it
// back to the system allocator.
func dropBlock(block *AllocBlock) {
	bufSize := sizeOf(block.Length, block.Policies)
	if bufSize != block.BufferSize {
		panic(fmt.Sprintf("ermalloc: drop: buffer_size %d does not match recomputed layout %d — header corruption or foreign pointer", block.BufferSize, bufSize))
	}
	tracef("ermalloc: drop(%p)\n", unsafe.Pointer(block))
	systemFree(unsafe.Pointer(block), headerSize+uintptr(bufSize))
}

// blockFromUserPtr recovers the header from a user pointer by
// subtracting headerSize, per spec.md §3/§9.
func blockFromUserPtr(ptr unsafe.Pointer) *AllocBlock {
	return (*AllocBlock)(unsafe.Pointer(uintptr(ptr) - headerSize))
}

// userPtr returns the pointer callers see: the address immediately
// after the header.
func (b *AllocBlock) userPtr() unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(b)) + headerSize)
}

// buffer is the full backing region: user data plus every policy's
// redundant copies, parity bytes, and nonces.
func (b *AllocBlock) buffer() []byte {
	return unsafe.Slice((*byte)(b.userPtr()), int(b.BufferSize))
}

// dataSlice is just the user-visible region: the first Length bytes
// of buffer.
func (b *AllocBlock) dataSlice() []byte {
	return unsafe.Slice((*byte)(b.userPtr()), int(b.Length))
}

// ApplyPolicy recomputes every policy's protection metadata from the
// current plaintext. Use after a fresh zeroed allocation or after a
// write that must be re-protected.
func (b *AllocBlock) ApplyPolicy() {
	b.applyPolicyHelper(0, b.buffer())
}

// applyPolicyHelper implements the nesting rule of spec.md §4.2:
// inner layers are applied first (on unwind), producing the
// plaintext the outer layer then encodes. A Nil slot occupies no
// bytes of its own (sizeOf leaves the running size unchanged for it),
// so it must pass full through untouched to index+1 rather than
// stopping the walk — slots below a Nil one (e.g. ReedSolomon in slot
// 1 with Redundancy absent from slot 0) still need to run.
func (b *AllocBlock) applyPolicyHelper(index int, full []byte) {
	if index == MaxPolicies {
		return
	}
	if b.Policies[index].Kind == KindNil {
		b.applyPolicyHelper(index+1, full)
		return
	}
	b.applyPolicyHelper(index+1, b.Policies[index].data(full))
	b.Policies[index].apply(full)
}

// CorrectBuffer runs the full recursive correction walk and returns
// the total number of errors repaired across every layer.
func (b *AllocBlock) CorrectBuffer() uint32 {
	return b.correctBitsHelper(0, b.buffer())
}

// correctBitsHelper mirrors applyPolicyHelper's nesting but Encrypted
// is treated as a leaf: nothing beneath it can be corrected without
// first decrypting, which this walk intentionally never does. A Nil
// slot occupies no bytes of its own, so — unlike Encrypted — it must
// still recurse into index+1 on the same full buffer rather than
// stopping the walk there. Redundancy recurses into each of its n
// copies independently (so a ReedSolomon layer underneath can repair
// each copy on its own) before taking the majority vote over the
// whole buffer.
func (b *AllocBlock) correctBitsHelper(index int, full []byte) uint32 {
	if index == MaxPolicies {
		return 0
	}
	p := b.Policies[index]
	switch p.Kind {
	case KindEncrypted:
		return 0
	case KindNil:
		return b.correctBitsHelper(index+1, full)
	case KindRedundancy:
		copies := int(p.Param)
		if len(full)%copies != 0 {
			panic(fmt.Sprintf("ermalloc: correct: buffer of %d bytes is not divisible by %d copies", len(full), copies))
		}
		chunkLen := len(full) / copies
		var inner uint32
		for c := 0; c < copies; c++ {
			inner += b.correctBitsHelper(index+1, full[c*chunkLen:(c+1)*chunkLen])
		}
		return inner + p.correct(full)
	default:
		inner := b.correctBitsHelper(index+1, p.data(full))
		return inner + p.correct(full)
	}
}

// IsCorrupted reports whether CorrectBuffer would find anything to
// repair. Cheaper than CorrectBuffer since it never rewrites the
// redundant copies for every branch.
func (b *AllocBlock) IsCorrupted() bool {
	return b.isCorruptedHelper(0, b.buffer())
}

func (b *AllocBlock) isCorruptedHelper(index int, full []byte) bool {
	if index == MaxPolicies {
		return false
	}
	p := b.Policies[index]
	if p.Kind == KindEncrypted {
		return false
	}
	if p.Kind == KindNil {
		return b.isCorruptedHelper(index+1, full)
	}
	if b.isCorruptedHelper(index+1, p.data(full)) {
		return true
	}
	return p.isCorrupted(full)
}

// innermostSpan peels the Redundancy and ReedSolomon layers (if
// present) off the full buffer and returns the span the Encrypted
// layer — or, with no Encrypted layer, the plaintext itself — sees.
// Shared between EncryptBuffer, DecryptBuffer, and the read/write
// fast paths, since all three need to reach the same span without
// disturbing the outer layers.
func (b *AllocBlock) innermostSpan() []byte {
	span := b.buffer()
	if b.Policies[slotRedundancy].Kind == KindRedundancy {
		span = b.Policies[slotRedundancy].data(span)
	}
	if b.Policies[slotReedSolomon].Kind == KindReedSolomon {
		span = b.Policies[slotReedSolomon].data(span)
	}
	return span
}

// EncryptBuffer applies AES-128-CTR to the innermost plaintext span
// and writes the fixed nonce into its metadata, without touching the
// Redundancy/ReedSolomon layers above it. A no-op if no Encrypted
// policy is present.
func (b *AllocBlock) EncryptBuffer() {
	if b.Policies[slotEncrypted].Kind != KindEncrypted {
		return
	}
	span := b.innermostSpan()
	data, meta := b.Policies[slotEncrypted].split(span)
	encryptKeystream(data)
	copy(meta, fixedNonce)
}

// DecryptBuffer inverts EncryptBuffer: it reads the nonce from
// metadata before running the keystream, so it's safe to call even
// though AES-CTR's keystream generation is otherwise identical in
// both directions. A no-op if no Encrypted policy is present.
func (b *AllocBlock) DecryptBuffer() {
	if b.Policies[slotEncrypted].Kind != KindEncrypted {
		return
	}
	span := b.innermostSpan()
	data, meta := b.Policies[slotEncrypted].split(span)
	encryptKeystreamWithNonce(data, meta)
}
