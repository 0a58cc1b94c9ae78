// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !amd64

package msram

import "sync/atomic"

var fenceVar uint32

// lmfence on other architectures falls back to a full memory barrier.
// Only amd64 parts carry the sequencer this package drives, so this
// path matters for cross-platform tests only.
func lmfence() {
	atomic.AddUint32(&fenceVar, 1)
}
