// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ucov-project/ucov/pkg/mcif"
	"github.com/ucov-project/ucov/pkg/msram"
	"github.com/ucov-project/ucov/pkg/ucode"
)

type testHarness struct {
	cov  *Coverage
	dev  *msram.EmuDevice
	ifc  *mcif.Interface
	mem  mcif.Region
	desc mcif.Description
}

func newTestHarness(t *testing.T, maxHooks int) *testHarness {
	desc := mcif.Description{
		Base:           0x15000,
		JumpBackOffset: 0,
		CoverageOffset: 2 * maxHooks,
		MaxHooks:       maxHooks,
	}
	dev := msram.NewEmuDevice()
	mem, err := dev.Region(desc)
	if err != nil {
		t.Fatal(err)
	}
	ifc := mcif.New(desc, mem)
	collector, err := DefaultCollector(maxHooks)
	if err != nil {
		t.Fatal(err)
	}
	cov := New(ifc, dev, collector)
	if err := cov.Init(); err != nil {
		t.Fatal(err)
	}
	return &testHarness{cov: cov, dev: dev, ifc: ifc, mem: mem, desc: desc}
}

// markCovered emulates the trampoline reporting a hit for a slot.
func (h *testHarness) markCovered(slot int, count uint16) {
	h.mem.Write16(h.desc.CoverageOffset/2+slot, count)
}

func TestInitLoadsCollector(t *testing.T) {
	h := newTestHarness(t, 4)
	_, ok := h.dev.PatchedTriad(ucode.MSRAMStart)
	assert.True(t, ok, "collector patch not loaded")
	assert.True(t, h.dev.HooksEnabled(), "hook processing left disabled after init")
}

func TestTooManyHooks(t *testing.T) {
	h := newTestHarness(t, 4)
	installs := h.dev.Installs
	hooks := []ucode.Addr{0x100, 0x104, 0x108, 0x10c, 0x110}
	err := h.cov.PreExecution(hooks)
	assert.ErrorIs(t, err, ErrTooManyHooks)
	// Validation happens before any hardware write.
	assert.Equal(t, installs, h.dev.Installs)
	assert.Equal(t, ucode.Addr(0), h.ifc.ReadJumpBack(0))
}

func TestDuplicateTriad(t *testing.T) {
	h := newTestHarness(t, 4)
	err := h.cov.PreExecution([]ucode.Addr{0x100, 0x102})
	var dup *DuplicateTriadError
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, 0, h.dev.Installs)
}

func TestPreExecution(t *testing.T) {
	h := newTestHarness(t, 4)
	if err := h.cov.PreExecution([]ucode.Addr{0x100, 0x429}); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, h.cov.Active())
	// Odd addresses arm their even partner.
	assert.Equal(t, ucode.Addr(0x100), h.ifc.ReadJumpBack(0))
	assert.Equal(t, ucode.Addr(0x428), h.ifc.ReadJumpBack(1))
	want, _ := msram.HookValue(0x100, h.cov.collector.Entry(0), true)
	assert.Equal(t, want, h.dev.Hook(0))
	want, _ = msram.HookValue(0x428, h.cov.collector.Entry(1), true)
	assert.Equal(t, want, h.dev.Hook(1))
}

func TestShrinkDisablesStaleSlots(t *testing.T) {
	h := newTestHarness(t, 4)
	if err := h.cov.PreExecution([]ucode.Addr{0x100, 0x104, 0x108, 0x10c}); err != nil {
		t.Fatal(err)
	}
	if err := h.cov.PreExecution([]ucode.Addr{0x200, 0x204}); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 2, h.cov.Active())
	for slot := 2; slot < 4; slot++ {
		assert.Equal(t, uint32(0), h.dev.Hook(slot), "slot %v still armed", slot)
		assert.Equal(t, ucode.Addr(0), h.ifc.ReadJumpBack(slot))
	}
	assert.NotEqual(t, uint32(0), h.dev.Hook(0))
}

func TestInstallFailure(t *testing.T) {
	h := newTestHarness(t, 4)
	injected := errors.New("injected failure")
	h.dev.FailInstall = func(slot int, trigger ucode.Addr) error {
		if slot == 1 {
			return injected
		}
		return nil
	}
	err := h.cov.PreExecution([]ucode.Addr{0x100, 0x104, 0x108})
	var install *InstallError
	assert.ErrorAs(t, err, &install)
	assert.Equal(t, 1, install.Slot)
	assert.ErrorIs(t, err, injected)
	// The earlier hook stays armed until Reset.
	assert.NotEqual(t, uint32(0), h.dev.Hook(0))
	h.dev.FailInstall = nil
	if err := h.cov.Reset(); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0, h.cov.Active())
	assert.Equal(t, uint32(0), h.dev.Hook(0))
	assert.Equal(t, ucode.Addr(0), h.ifc.ReadJumpBack(0))
}

func TestExecuteEmptyBatch(t *testing.T) {
	h := newTestHarness(t, 4)
	installs, fences := h.dev.Installs, h.dev.Fences
	res, hits, err := Execute(h.cov, nil, func() int { return 42 })
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 42, res)
	assert.Empty(t, hits)
	// An empty batch on an idle harness touches no hardware.
	assert.Equal(t, installs, h.dev.Installs)
	assert.Equal(t, fences, h.dev.Fences)
}

func TestExecuteAttribution(t *testing.T) {
	h := newTestHarness(t, 4)
	hooks := []ucode.Addr{0x100, 0x428}
	res, hits, err := Execute(h.cov, hooks, func() string {
		h.markCovered(0, 1)
		return "done"
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "done", res)
	assert.Equal(t, []HitResult{{Addr: 0x100, Count: 1}, {Addr: 0x428, Count: 0}}, hits)
	// Only the hit address reaches the accumulator.
	accum := h.cov.Accumulator()
	assert.Equal(t, uint8(1), accum.Count(0x100))
	assert.Equal(t, uint8(0), accum.Count(0x428))
	assert.Equal(t, []ucode.Addr{0x100}, accum.Covered())
	// Hooks are re-enabled for the next batch.
	assert.True(t, h.dev.HooksEnabled())
}

func TestExecuteResetsCoverageBetweenRuns(t *testing.T) {
	h := newTestHarness(t, 4)
	hooks := []ucode.Addr{0x100}
	_, hits, err := Execute(h.cov, hooks, func() int {
		h.markCovered(0, 3)
		return 0
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint16(3), hits[0].Count)
	// The next run starts from a clean table.
	_, hits, err = Execute(h.cov, hooks, func() int { return 0 })
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint16(0), hits[0].Count)
	assert.Equal(t, uint8(1), h.cov.Accumulator().Count(0x100))
}

func TestAccumulatorSaturates(t *testing.T) {
	h := newTestHarness(t, 4)
	hooks := []ucode.Addr{0x100}
	for i := 0; i < 300; i++ {
		_, _, err := Execute(h.cov, hooks, func() int {
			h.markCovered(0, 1)
			return 0
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	assert.Equal(t, uint8(255), h.cov.Accumulator().Count(0x100))
	h.cov.Accumulator().Reset()
	assert.Equal(t, uint8(0), h.cov.Accumulator().Count(0x100))
}

func TestUseBeforeInitPanics(t *testing.T) {
	desc := mcif.Description{Base: 0x15000, CoverageOffset: 8, MaxHooks: 4}
	dev := msram.NewEmuDevice()
	mem, err := dev.Region(desc)
	if err != nil {
		t.Fatal(err)
	}
	collector, err := DefaultCollector(4)
	if err != nil {
		t.Fatal(err)
	}
	cov := New(mcif.New(desc, mem), dev, collector)
	assert.Panics(t, func() { cov.PreExecution(nil) })
	assert.Panics(t, func() { cov.Reset() })
}
