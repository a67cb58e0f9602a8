// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cortexm debugs ARMv7-M targets over a SWD Debug Access Port.
//
// A Host turns the port-level engine of package swd into the operations a
// debugger needs: halt, single-step, reset, memory and core register
// access, and hardware breakpoints through the Flash Patch and Breakpoint
// unit. All register choreography follows the ARMv7-M Architecture
// Reference Manual (DDI0403), chapter C1.
package cortexm

import (
	"fmt"

	"periph.io/x/swd"
)

// regRdyRetries bounds the S_REGRDY poll after a DCRSR transfer request.
const regRdyRetries = 10

// Host debugs a single Cortex-M core.
//
// A Host exclusively owns its DAP between Start and Stop. It is not safe
// for concurrent use; the debug wire has one owner at a time.
type Host struct {
	dap     *swd.DAP
	stopped bool
	fpb     fpb
}

// New returns a stopped Host that debugs the target behind dap. Call Start
// before any target operation.
func New(dap *swd.DAP) *Host {
	if dap == nil {
		panic("cortexm: nil dap passed to New")
	}
	return &Host{dap: dap, stopped: true}
}

// Start connects to the target: brings the DAP up, configures word-sized
// non-incrementing memory transfers and probes the flash patch unit. It
// does not halt the core.
func (h *Host) Start() error {
	if err := h.dap.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	h.stopped = false
	if err := h.dap.SetDataSize(swd.SizeWord); err != nil {
		h.stopped = true
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	if err := h.dap.SetAutoIncrement(false); err != nil {
		h.stopped = true
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	if err := h.fpbInit(); err != nil {
		h.stopped = true
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	return nil
}

// Stop detaches from the target, leaving the core in whatever state it is
// in. Every subsequent operation fails with ErrNotStarted until the next
// Start.
func (h *Host) Stop() {
	h.stopped = true
	h.dap.Stop()
}

// DAP returns the underlying port engine, for callers that need raw DP/AP
// access next to the high level operations.
func (h *Host) DAP() *swd.DAP {
	return h.dap
}

// started reports ErrNotStarted for a stopped host, folding in the case
// where the DAP stopped itself on an unrecoverable wire error.
func (h *Host) started() error {
	if h.stopped || h.dap.Stopped() {
		return ErrNotStarted
	}
	return nil
}

// Halt stops the core by entering debug state.
func (h *Host) Halt() error {
	if err := h.started(); err != nil {
		return err
	}
	return h.WriteWord(regDHCSR, dbgKey|cHalt|cDebugEn)
}

// Continue leaves debug state and resumes execution.
func (h *Host) Continue() error {
	if err := h.started(); err != nil {
		return err
	}
	return h.WriteWord(regDHCSR, dbgKey|cDebugEn)
}

// Reset requests a local system reset (core and peripherals) and lets the
// core run.
func (h *Host) Reset() error {
	if err := h.Continue(); err != nil {
		return err
	}
	return h.WriteWord(regAIRCR, vectKey|sysResetReq)
}

// ResetHalt requests a local system reset with the reset vector catch
// armed, so the core halts before executing its first instruction. The
// catch is disarmed again before returning.
func (h *Host) ResetHalt() error {
	if err := h.started(); err != nil {
		return err
	}
	if err := h.WriteWord(regDHCSR, dbgKey|cDebugEn); err != nil {
		return err
	}
	demcr, err := h.ReadWord(regDEMCR)
	if err != nil {
		return err
	}
	if err := h.WriteWord(regDEMCR, demcr|vcCoreReset); err != nil {
		return err
	}
	if err := h.WriteWord(regAIRCR, vectKey|sysResetReq); err != nil {
		return err
	}
	return h.WriteWord(regDEMCR, demcr&^vcCoreReset)
}

// Halted reports whether the core is in debug state.
func (h *Host) Halted() (bool, error) {
	if err := h.started(); err != nil {
		return false, err
	}
	dhcsr, err := h.ReadWord(regDHCSR)
	if err != nil {
		return false, err
	}
	return dhcsr&sHalted != 0, nil
}

// Step executes a single instruction and re-enters debug state.
//
// A step that lands on an armed hardware breakpoint makes no progress: the
// breakpoint refires before the instruction retires. When the debug return
// address does not move, Step disables the flash patch unit, steps again
// and re-arms it.
func (h *Host) Step() error {
	halted, err := h.Halted()
	if err != nil {
		return err
	}
	if !halted {
		return ErrNotHalted
	}
	before, err := h.ReadRegister(DebugReturnAddress)
	if err != nil {
		return err
	}
	if err := h.WriteWord(regDHCSR, dbgKey|cStep|cDebugEn); err != nil {
		return err
	}
	after, err := h.ReadRegister(DebugReturnAddress)
	if err != nil {
		return err
	}
	if after != before {
		return nil
	}
	logf("cortexm: step stuck at %#08x, stepping over breakpoint", before)
	if err := h.fpbEnable(false); err != nil {
		return err
	}
	err = h.WriteWord(regDHCSR, dbgKey|cStep|cDebugEn)
	if err2 := h.fpbEnable(true); err == nil {
		err = err2
	}
	return err
}

// WriteWord writes one aligned 32-bit word to target memory.
func (h *Host) WriteWord(addr, data uint32) error {
	if err := h.started(); err != nil {
		return err
	}
	if addr&3 != 0 {
		return fmt.Errorf("%w: %#08x is not word aligned", ErrInvalidAddr, addr)
	}
	if err := h.dap.SetDataSize(swd.SizeWord); err != nil {
		return err
	}
	if err := h.dap.SetAutoIncrement(false); err != nil {
		return err
	}
	if err := h.dap.WritePort(swd.APTAR, addr); err != nil {
		return err
	}
	return h.dap.WritePort(swd.APDRW, data)
}

// ReadWord reads one aligned 32-bit word from target memory.
func (h *Host) ReadWord(addr uint32) (uint32, error) {
	if err := h.started(); err != nil {
		return 0, err
	}
	if addr&3 != 0 {
		return 0, fmt.Errorf("%w: %#08x is not word aligned", ErrInvalidAddr, addr)
	}
	if err := h.dap.SetDataSize(swd.SizeWord); err != nil {
		return 0, err
	}
	if err := h.dap.SetAutoIncrement(false); err != nil {
		return 0, err
	}
	if err := h.dap.WritePort(swd.APTAR, addr); err != nil {
		return 0, err
	}
	return h.dap.ReadPort(swd.APDRW)
}

// WriteWords writes consecutive words starting at addr using TAR
// auto-increment, returning the number of words that made it to the
// target. Auto-increment is switched back off on every exit path.
func (h *Host) WriteWords(addr uint32, data []uint32) (int, error) {
	if err := h.started(); err != nil {
		return 0, err
	}
	if addr&3 != 0 {
		return 0, fmt.Errorf("%w: %#08x is not word aligned", ErrInvalidAddr, addr)
	}
	if err := h.dap.SetDataSize(swd.SizeWord); err != nil {
		return 0, err
	}
	if err := h.dap.SetAutoIncrement(true); err != nil {
		return 0, err
	}
	defer h.restoreIncrement()
	if err := h.dap.WritePort(swd.APTAR, addr); err != nil {
		return 0, err
	}
	for i, w := range data {
		if err := h.dap.WritePort(swd.APDRW, w); err != nil {
			return i, err
		}
	}
	return len(data), nil
}

// ReadWords reads consecutive words starting at addr using TAR
// auto-increment, returning the number of words read. Auto-increment is
// switched back off on every exit path.
func (h *Host) ReadWords(addr uint32, data []uint32) (int, error) {
	if err := h.started(); err != nil {
		return 0, err
	}
	if addr&3 != 0 {
		return 0, fmt.Errorf("%w: %#08x is not word aligned", ErrInvalidAddr, addr)
	}
	if err := h.dap.SetDataSize(swd.SizeWord); err != nil {
		return 0, err
	}
	if err := h.dap.SetAutoIncrement(true); err != nil {
		return 0, err
	}
	defer h.restoreIncrement()
	if err := h.dap.WritePort(swd.APTAR, addr); err != nil {
		return 0, err
	}
	for i := range data {
		w, err := h.dap.ReadPort(swd.APDRW)
		if err != nil {
			return i, err
		}
		data[i] = w
	}
	return len(data), nil
}

func (h *Host) restoreIncrement() {
	if err := h.dap.SetAutoIncrement(false); err != nil {
		logf("cortexm: could not restore TAR auto-increment: %v", err)
	}
}

// WriteBytes writes data to target memory starting at any byte address.
//
// The access port is not required to support byte-sized transfers, so the
// head and tail of the range are merged into their containing words with a
// read-modify-write; bytes outside the range are preserved. Returns the
// number of bytes written, on success and on partial failure alike.
func (h *Host) WriteBytes(addr uint32, data []byte) (int, error) {
	if err := h.started(); err != nil {
		return 0, err
	}
	n := 0
	for len(data) > 0 {
		base := addr &^ 3
		off := int(addr & 3)
		chunk := 4 - off
		if chunk > len(data) {
			chunk = len(data)
		}
		var w uint32
		if off != 0 || chunk < 4 {
			// Partial word; fold the new bytes into what is there.
			cur, err := h.ReadWord(base)
			if err != nil {
				return n, err
			}
			w = cur
		}
		for i := 0; i < chunk; i++ {
			sh := h.byteLane(uint32(off + i))
			w = w&^(0xFF<<sh) | uint32(data[i])<<sh
		}
		if err := h.WriteWord(base, w); err != nil {
			return n, err
		}
		n += chunk
		addr += uint32(chunk)
		data = data[chunk:]
	}
	return n, nil
}

// ReadBytes reads len(data) bytes of target memory starting at any byte
// address, returning the number of bytes read.
func (h *Host) ReadBytes(addr uint32, data []byte) (int, error) {
	if err := h.started(); err != nil {
		return 0, err
	}
	n := 0
	for n < len(data) {
		base := addr &^ 3
		off := int(addr & 3)
		chunk := 4 - off
		if chunk > len(data)-n {
			chunk = len(data) - n
		}
		w, err := h.ReadWord(base)
		if err != nil {
			return n, err
		}
		for i := 0; i < chunk; i++ {
			data[n+i] = byte(w >> h.byteLane(uint32(off+i)))
		}
		n += chunk
		addr += uint32(chunk)
	}
	return n, nil
}

// byteLane returns the bit position of the byte at the given in-word
// offset, honoring the memory system endianness reported by AP CFG.
func (h *Host) byteLane(off uint32) uint32 {
	if h.dap.LittleEndian() {
		return 8 * (off & 3)
	}
	return 8 * (3 - off&3)
}

// ReadRegister reads a core or FPU register. The core must be halted.
func (h *Host) ReadRegister(reg Register) (uint32, error) {
	halted, err := h.Halted()
	if err != nil {
		return 0, err
	}
	if !halted {
		return 0, ErrNotHalted
	}
	if err := h.WriteWord(regDCRSR, reg.regsel()); err != nil {
		return 0, err
	}
	if err := h.waitRegReady(); err != nil {
		return 0, err
	}
	return h.ReadWord(regDCRDR)
}

// WriteRegister writes a core or FPU register. The core must be halted.
func (h *Host) WriteRegister(reg Register, data uint32) error {
	halted, err := h.Halted()
	if err != nil {
		return err
	}
	if !halted {
		return ErrNotHalted
	}
	if err := h.WriteWord(regDCRDR, data); err != nil {
		return err
	}
	if err := h.WriteWord(regDCRSR, reg.regsel()|regSelWrite); err != nil {
		return err
	}
	return h.waitRegReady()
}

// waitRegReady polls DHCSR until the register transfer posted through
// DCRSR completes.
func (h *Host) waitRegReady() error {
	for retry := 0; retry < regRdyRetries; retry++ {
		dhcsr, err := h.ReadWord(regDHCSR)
		if err != nil {
			return err
		}
		if dhcsr&sRegRdy != 0 {
			return nil
		}
	}
	return fmt.Errorf("cortexm: register transfer did not complete")
}
