// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hookable enumerates the micro-addresses a reference image
// allows to hook, ordered so that addresses of the same triad
// neighborhood never end up in the same sweep chunk.
package hookable

import (
	"fmt"

	"github.com/ucov-project/ucov/pkg/modeng"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// Filter lets the caller exclude addresses, e.g. from a blacklist.
type Filter func(ucode.Addr) bool

// Set is a fixed enumeration of hookable addresses in sweep order.
type Set struct {
	addrs     []ucode.Addr
	chunkSize int
}

// Build walks every even address of the read-only area, keeps those
// the filter and the engine accept, and reorders them so that an
// address and its neighbors land in different chunks. The engine must
// accept both partners of the pair: the hardware triggers on either.
func Build(e *modeng.Engine, chunkSize int, filter Filter) *Set {
	if chunkSize < 1 {
		panic(fmt.Sprintf("bad chunk size %v", chunkSize))
	}
	var hookable []ucode.Addr
	for a := ucode.Addr(0); a < ucode.ROMSize; a += 2 {
		if filter != nil && !filter(a) {
			continue
		}
		if _, err := e.ModifyTriad(a); err != nil {
			continue
		}
		if _, err := e.ModifyTriad(a + 1); err != nil {
			continue
		}
		hookable = append(hookable, a)
	}
	// Transpose the chunk grid: emit position i of every chunk before
	// position i+1 of any.
	addrs := make([]ucode.Addr, 0, len(hookable))
	for i := 0; i < chunkSize; i++ {
		for off := i; off < len(hookable); off += chunkSize {
			addrs = append(addrs, hookable[off])
		}
	}
	return &Set{addrs: addrs, chunkSize: chunkSize}
}

// Len returns the number of hookable addresses.
func (s *Set) Len() int { return len(s.addrs) }

// Empty reports whether no address is hookable.
func (s *Set) Empty() bool { return len(s.addrs) == 0 }

// ChunkSize returns the chunk size the set was built for.
func (s *Set) ChunkSize() int { return s.chunkSize }

// NumChunks returns the number of sweep chunks.
func (s *Set) NumChunks() int {
	return (s.Len() + s.chunkSize - 1) / s.chunkSize
}

// Addresses returns all hookable addresses in sweep order.
func (s *Set) Addresses() []ucode.Addr { return s.addrs }

// Chunk returns the i-th sweep chunk. The last chunk may be shorter
// than ChunkSize.
func (s *Set) Chunk(i int) []ucode.Addr {
	if i < 0 || i >= s.NumChunks() {
		panic(fmt.Sprintf("chunk %v out of range [0, %v)", i, s.NumChunks()))
	}
	start := i * s.chunkSize
	end := start + s.chunkSize
	if end > len(s.addrs) {
		end = len(s.addrs)
	}
	return s.addrs[start:end]
}
