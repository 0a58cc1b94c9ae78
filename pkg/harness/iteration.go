// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"time"

	"github.com/ucov-project/ucov/pkg/hookable"
	"github.com/ucov-project/ucov/pkg/stat"
	"github.com/ucov-project/ucov/pkg/ucode"
)

var statChunkTime = stat.New("chunk time", "Per-chunk execution time (ms)",
	stat.Distribution{}, stat.Prometheus("ucov_chunk_time_ms"))

// ChunkFunc processes one chunk of hook addresses and produces a
// per-chunk result.
type ChunkFunc[T any] func(index int, hooks []ucode.Addr) T

// Run sweeps a hookable set chunk by chunk. The chunk size is capped
// by maxHooks so that every chunk fits into one batch; capping only
// subdivides the set's chunks, which preserves their spacing.
type Run[T any] struct {
	set       *hookable.Set
	fn        ChunkFunc[T]
	chunkSize int
	next      int
}

// NewRun builds a sweep over the set. maxHooks bounds the batch size;
// pass the interface's MaxHooks.
func NewRun[T any](set *hookable.Set, maxHooks int, fn ChunkFunc[T]) *Run[T] {
	chunkSize := set.ChunkSize()
	if maxHooks > 0 && maxHooks < chunkSize {
		chunkSize = maxHooks
	}
	return &Run[T]{set: set, fn: fn, chunkSize: chunkSize}
}

// ChunkSize returns the effective batch size.
func (r *Run[T]) ChunkSize() int { return r.chunkSize }

// NumChunks returns the total number of batches of the sweep.
func (r *Run[T]) NumChunks() int {
	return (r.set.Len() + r.chunkSize - 1) / r.chunkSize
}

// Done returns how many batches have been processed.
func (r *Run[T]) Done() int { return r.next }

// Next processes the next batch. It returns false when the sweep is
// finished.
func (r *Run[T]) Next() (T, bool) {
	var zero T
	start := r.next * r.chunkSize
	if start >= r.set.Len() {
		return zero, false
	}
	end := start + r.chunkSize
	if end > r.set.Len() {
		end = r.set.Len()
	}
	index := r.next
	r.next++
	t0 := time.Now()
	res := r.fn(index, r.set.Addresses()[start:end])
	statChunkTime.Add(int(time.Since(t0).Milliseconds()))
	return res, true
}

// Reset rewinds the sweep to the first batch.
func (r *Run[T]) Reset() { r.next = 0 }
