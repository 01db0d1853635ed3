// Copyright 2024 The Ermalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ermalloc

import (
	"fmt"
	"os"
)

// Trace, when set, makes block allocation, reallocation and release
// (newBlock, renewBlock, dropBlock, and roundup16 beneath them) and
// the NULL-returning paths of er_malloc, er_calloc and
// er_reallocarray print their arguments to stderr. er_setup_policies,
// er_correct_buffer, er_read_buf and er_write_buf print nothing of
// their own. Off by default; flip it in a test
// or a debug build, never in a production one.
var Trace = false

func tracef(format string, args ...interface{}) {
	if !Trace {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
