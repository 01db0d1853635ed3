// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

/*
#include <stdint.h>
#include <stddef.h>

// ErPolicyListRaw mirrors the C ABI struct from spec.md §6: a
// singly-linked list of policy descriptors supplied by a foreign
// caller. tag is 0=Nil, 1=Redundancy, 2=ReedSolomon, 3=Encrypted;
// policy_data, when non-null, points to a uint32_t parameter used by
// Redundancy and ReedSolomon and ignored otherwise.
typedef struct ErPolicyListRaw {
	uint32_t tag;
	void *policy_data;
	struct ErPolicyListRaw *next;
} ErPolicyListRaw;
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// defaultRedundancyCopies and defaultParityBytes are used when a
// caller supplies a Redundancy or ReedSolomon node with a null
// policy_data pointer (spec.md §4.3, ffi.rs's default_redundancy /
// default_rs in the original).
const (
	defaultRedundancyCopies = 3
	defaultParityBytes      = 3
)

const (
	erTagNil         = 0
	erTagRedundancy  = 1
	erTagReedSolomon = 2
	erTagEncrypted   = 3
)

// parsePolicyList walks the caller's linked list and converts it into
// a canonical PolicySet. A null list yields an all-Nil set. Traversal
// of more than MaxPolicies nodes, or an unrecognized tag, is a caller
// ABI violation and is fatal per spec.md §7 category 2.
func parsePolicyList(head *C.ErPolicyListRaw) PolicySet {
	var set PolicySet
	node := head
	for i := 0; node != nil; i++ {
		if i >= MaxPolicies {
			panic("ermalloc: policy list traversal exceeded MAX_POLICIES nodes")
		}

		switch node.tag {
		case erTagNil:
			// dropped
		case erTagRedundancy:
			set[slotRedundancy] = Policy{Kind: KindRedundancy, Param: policyParam(node.policy_data, defaultRedundancyCopies)}
		case erTagReedSolomon:
			set[slotReedSolomon] = Policy{Kind: KindReedSolomon, Param: policyParam(node.policy_data, defaultParityBytes)}
		case erTagEncrypted:
			set[slotEncrypted] = Policy{Kind: KindEncrypted}
		default:
			panic(fmt.Sprintf("ermalloc: unknown policy tag %d in caller-supplied list", node.tag))
		}

		node = node.next
	}
	return set
}

func policyParam(data unsafe.Pointer, def uint32) uint32 {
	if data == nil {
		return def
	}
	return uint32(*(*C.uint32_t)(data))
}

// mulOverflows reports whether a*b overflows uint64, the Go
// equivalent of the checked_mul used throughout spec.md §4.3's
// er_calloc/er_reallocarray.
func mulOverflows(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	product := a * b
	return product, product/a != b
}

//export er_malloc
func er_malloc(size C.size_t, policies *C.ErPolicyListRaw) unsafe.Pointer {
	if size == 0 {
		tracef("ermalloc: er_malloc(0) -> NULL\n")
		return nil
	}
	block := newBlock(uint64(size), parsePolicyList(policies), false)
	if block == nil {
		return nil
	}
	return block.userPtr()
}

//export er_calloc
func er_calloc(nmemb, size C.size_t, policies *C.ErPolicyListRaw) unsafe.Pointer {
	bytes, overflow := mulOverflows(uint64(nmemb), uint64(size))
	if overflow {
		tracef("ermalloc: er_calloc(%d, %d) overflowed -> NULL\n", nmemb, size)
		return nil
	}
	if bytes == 0 {
		tracef("ermalloc: er_calloc(%d, %d) -> NULL\n", nmemb, size)
		return nil
	}
	block := newBlock(bytes, parsePolicyList(policies), true)
	if block == nil {
		return nil
	}
	return block.userPtr()
}

//export er_realloc
func er_realloc(ptr unsafe.Pointer, size C.size_t, policies *C.ErPolicyListRaw) unsafe.Pointer {
	if size == 0 {
		er_free(ptr)
		return nil
	}
	if ptr == nil {
		return er_malloc(size, policies)
	}
	block := renewBlock(blockFromUserPtr(ptr), uint64(size), parsePolicyList(policies))
	if block == nil {
		return nil
	}
	return block.userPtr()
}

//export er_reallocarray
func er_reallocarray(ptr unsafe.Pointer, nmemb, size C.size_t, policies *C.ErPolicyListRaw) unsafe.Pointer {
	bytes, overflow := mulOverflows(uint64(nmemb), uint64(size))
	if overflow {
		tracef("ermalloc: er_reallocarray(%d, %d) overflowed -> NULL\n", nmemb, size)
		return nil
	}
	return er_realloc(ptr, C.size_t(bytes), policies)
}

//export er_free
func er_free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	dropBlock(blockFromUserPtr(ptr))
}

//export er_setup_policies
func er_setup_policies(ptr unsafe.Pointer) {
	blockFromUserPtr(ptr).ApplyPolicy()
}

//export er_correct_buffer
func er_correct_buffer(ptr unsafe.Pointer) C.int {
	return C.int(blockFromUserPtr(ptr).CorrectBuffer())
}

//export er_read_buf
func er_read_buf(base, dest unsafe.Pointer, offset, length C.size_t) C.int {
	c := er_correct_buffer(base)
	if c < 0 {
		return c
	}

	block := blockFromUserPtr(base)
	block.DecryptBuffer()

	src := block.dataSlice()[int(offset) : int(offset)+int(length)]
	dst := unsafe.Slice((*byte)(dest), int(length))
	copy(dst, src)

	block.EncryptBuffer()
	return c
}

//export er_write_buf
func er_write_buf(base unsafe.Pointer, src unsafe.Pointer, offset, length C.size_t) C.int {
	block := blockFromUserPtr(base)
	block.DecryptBuffer()

	dst := block.dataSlice()[int(offset) : int(offset)+int(length)]
	source := unsafe.Slice((*byte)(src), int(length))
	copy(dst, source)

	er_setup_policies(base)
	return 0
}
