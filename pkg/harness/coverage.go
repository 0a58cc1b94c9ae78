// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package harness drives coverage collection: it arms batches of hooks
// through the device, runs a stimulus while they are live, and folds
// the per-hook results into an accumulator over the address space.
package harness

import (
	"errors"
	"fmt"

	"github.com/ucov-project/ucov/pkg/log"
	"github.com/ucov-project/ucov/pkg/mcif"
	"github.com/ucov-project/ucov/pkg/msram"
	"github.com/ucov-project/ucov/pkg/stat"
	"github.com/ucov-project/ucov/pkg/ucode"
)

// ErrTooManyHooks is returned when a batch exceeds the slot count of
// the communication area. Nothing is written in that case.
var ErrTooManyHooks = errors.New("more hooks than the interface supports")

// DuplicateTriadError is returned when two hooks of one batch share a
// triad; the hardware cannot arm both.
type DuplicateTriadError struct {
	Addr ucode.Addr
}

func (e *DuplicateTriadError) Error() string {
	return fmt.Sprintf("triad %v is hooked more than once", e.Addr.TriadBase())
}

// InstallError wraps a hook install failure. Earlier hooks of the
// batch stay armed; the harness must be Reset before further use.
type InstallError struct {
	Slot int
	Addr ucode.Addr
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install hook %v at %v: %v", e.Slot, e.Addr, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// RemoveError wraps a hook removal failure.
type RemoveError struct {
	Slot int
	Err  error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("failed to remove hook %v: %v", e.Slot, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

var (
	statExecs = stat.New("coverage execs", "Stimulus executions under coverage",
		stat.Rate{}, stat.Prometheus("ucov_execs"))
	statHooks = stat.New("hooks armed", "Total hooks armed across batches",
		stat.Rate{}, stat.Prometheus("ucov_hooks_armed"))
	statHits = stat.New("coverage hits", "Hooks that reported coverage",
		stat.Rate{}, stat.Prometheus("ucov_hits"))
)

// Coverage arms hooks and collects their results. It is not safe for
// concurrent use; the hardware it drives is a singleton anyway.
type Coverage struct {
	ifc       *mcif.Interface
	dev       msram.Device
	collector *Collector
	accum     *Accumulator
	active    int
	ready     bool
}

// New builds a harness over the communication interface and device.
// Call Init before anything else.
func New(ifc *mcif.Interface, dev msram.Device, collector *Collector) *Coverage {
	return &Coverage{
		ifc:       ifc,
		dev:       dev,
		collector: collector,
		accum:     NewAccumulator(),
	}
}

// Init loads the collector patch and clears the jump-back table. Hook
// processing is kept off while patch RAM is written.
func (c *Coverage) Init() error {
	guard := msram.DisableHooksGuarded(c.dev)
	defer guard.Close()
	if err := c.dev.ApplyPatch(c.collector.Patch); err != nil {
		return fmt.Errorf("failed to load the collector patch: %w", err)
	}
	c.ifc.ZeroJumpBackTable()
	c.ready = true
	return nil
}

// Accumulator returns the aggregated coverage.
func (c *Coverage) Accumulator() *Accumulator { return c.accum }

// Active returns the number of hooks armed by the last batch.
func (c *Coverage) Active() int { return c.active }

// PreExecution arms a batch of hooks. Batch-level validation happens
// before any hardware write. On an install failure earlier hooks stay
// armed and the error reports the failing slot; Reset clears the
// state. Slots used by the previous batch but not by this one are
// disabled.
func (c *Coverage) PreExecution(hooks []ucode.Addr) error {
	if !c.ready {
		panic("coverage harness used before Init")
	}
	if len(hooks) > c.ifc.Desc().MaxHooks {
		return ErrTooManyHooks
	}
	triads := make(map[ucode.Addr]bool, len(hooks))
	for _, addr := range hooks {
		if triads[addr.TriadBase()] {
			return &DuplicateTriadError{Addr: addr}
		}
		triads[addr.TriadBase()] = true
	}
	if len(hooks) == 0 && c.active == 0 {
		return nil
	}
	c.ifc.ResetCoverage()
	for i, addr := range hooks {
		even := addr.AlignEven()
		c.ifc.WriteJumpBack(i, even)
		if err := c.dev.InstallHook(i, even, c.collector.Entry(i), true); err != nil {
			if i > c.active {
				c.active = i
			}
			return &InstallError{Slot: i, Addr: even, Err: err}
		}
	}
	for i := len(hooks); i < c.active; i++ {
		c.ifc.WriteJumpBack(i, 0)
		if err := c.dev.RemoveHook(i); err != nil {
			return &RemoveError{Slot: i, Err: err}
		}
	}
	c.active = len(hooks)
	statHooks.Add(len(hooks))
	return nil
}

// PostExecution reads the result of every hook of the batch and folds
// hits into the accumulator.
func (c *Coverage) PostExecution(hooks []ucode.Addr) []HitResult {
	res := make([]HitResult, 0, len(hooks))
	for i, addr := range hooks {
		even := addr.AlignEven()
		count := c.ifc.ReadCoverage(i)
		if count > 0 {
			c.accum.bump(even)
			statHits.Add(1)
		}
		res = append(res, HitResult{Addr: even, Count: count})
	}
	return res
}

// Reset disables every hook slot and clears both tables. The
// accumulator is left alone; it aggregates across batches.
func (c *Coverage) Reset() error {
	if !c.ready {
		panic("coverage harness used before Init")
	}
	for i := 0; i < c.ifc.Desc().MaxHooks; i++ {
		c.ifc.WriteJumpBack(i, 0)
		if err := c.dev.RemoveHook(i); err != nil {
			return &RemoveError{Slot: i, Err: err}
		}
	}
	c.ifc.ResetCoverage()
	c.active = 0
	log.Logf(2, "coverage harness reset")
	return nil
}

// Execute runs the stimulus with the given hooks armed and returns its
// result untouched together with the per-hook outcomes. With an empty
// batch and no leftover hooks the stimulus runs without any hardware
// access.
func Execute[R any](c *Coverage, hooks []ucode.Addr, stimulus func() R) (R, []HitResult, error) {
	var zero R
	if err := c.PreExecution(hooks); err != nil {
		return zero, nil, err
	}
	armed := len(hooks) > 0
	if armed {
		c.dev.EnableHooks()
		c.dev.Fence()
	}
	result := stimulus()
	if armed {
		c.dev.Fence()
		c.dev.DisableHooks()
	}
	hits := c.PostExecution(hooks)
	if armed {
		c.dev.EnableHooks()
	}
	statExecs.Add(1)
	return result, hits, nil
}
