// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build amd64

package msram

// lmfence serializes loads and stores against the sequencer side.
// Implemented in fence_amd64.s.
func lmfence()
