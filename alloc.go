// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

/*
#include <stdlib.h>
#include <string.h>

// allocAligned16 wraps posix_memalign so Go doesn't need cgo helpers
// for the error-code-out-param calling convention.
static void *allocAligned16(size_t size) {
	void *p = NULL;
	if (posix_memalign(&p, 16, size) != 0) {
		return NULL;
	}
	return p;
}
*/
import "C"

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// mallocAlign is the alignment every ermalloc allocation honors,
// matching spec.md §3 ("Alignment of the entire allocation is 16
// bytes"). The system allocator — posix_memalign/realloc/free via
// cgo here — is treated as an external collaborator per spec.md §1;
// this file is the thin plumbing to it, not a reimplementation of it.
const mallocAlign = 16

// roundup16 rounds n up to the next multiple of mallocAlign, the way
// cznic/memory's roundup rounds allocation classes up to slot
// boundaries.
func roundup16(n uintptr) uintptr {
	aligned := (n + mallocAlign - 1) &^ (mallocAlign - 1)
	tracef("ermalloc: roundup16(%d) -> %d (log2 class %d)\n", n, aligned, mathutil.BitLen(int(aligned)-1))
	return aligned
}

// systemAlloc asks the system allocator for size bytes, 16-byte
// aligned, optionally zeroed. Returns nil (an untyped unsafe.Pointer)
// on allocation failure, mirroring C malloc's null-on-failure
// contract rather than a Go error — every caller in this package is
// itself plumbing for a C ABI.
func systemAlloc(size uintptr, zeroed bool) unsafe.Pointer {
	total := roundup16(size)
	p := C.allocAligned16(C.size_t(total))
	if p == nil {
		return nil
	}
	if zeroed {
		C.memset(p, 0, C.size_t(total))
	}
	return unsafe.Pointer(p)
}

// systemRealloc grows or shrinks a previous systemAlloc allocation in
// place where possible, or moves it. newSize is the header+buffer
// total, matching what systemAlloc was called with originally.
func systemRealloc(ptr unsafe.Pointer, newSize uintptr) unsafe.Pointer {
	total := roundup16(newSize)
	p := C.realloc(ptr, C.size_t(total))
	if p == nil {
		return nil
	}
	return unsafe.Pointer(p)
}

// systemFree releases memory obtained from systemAlloc/systemRealloc.
// size is unused by libc free but kept in the signature to mirror the
// Rust original's Layout-based dealloc, which needs the size to
// recompute the same Layout it allocated with.
func systemFree(ptr unsafe.Pointer, size uintptr) {
	_ = size
	C.free(ptr)
}
