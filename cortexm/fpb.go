// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Flash Patch and Breakpoint unit management, ARMv7-M C1.11.
//
// The unit provides a small bank of code comparators; an armed comparator
// halts the core when the instruction at its address issues. The host keeps
// a mirror of the comparator bank so slot allocation and duplicate checks
// never need wire traffic; the mirror is only updated once the matching
// write succeeded, so a failed write leaves host and target agreeing.

package cortexm

import "fmt"

// FPBVersion is the revision of the target's flash patch unit, from
// FP_CTRL bits 31:28.
type FPBVersion uint8

const (
	// FPBVersionUnknown marks a unit this package cannot program.
	FPBVersionUnknown FPBVersion = iota
	// FPBv1 comparators only cover the code region and encode the matched
	// halfword in REPLACE.
	FPBv1
	// FPBv2 comparators hold the full breakpoint address directly.
	FPBv2
)

func (v FPBVersion) String() string {
	switch v {
	case FPBv1:
		return "FPBv1"
	case FPBv2:
		return "FPBv2"
	}
	return "unknown"
}

// maxCodeComparators is the architectural ceiling of NUM_CODE.
const maxCodeComparators = 127

// FPBv1 FP_COMP fields.
const (
	fpCompReplaceLo   = 0x40000000 // match the halfword with address bit 1 clear
	fpCompReplaceHi   = 0x80000000 // match the halfword with address bit 1 set
	fpCompReplaceBoth = 0xC0000000
	fpCompReplaceMask = 0xC0000000
	fpCompAddrMask    = 0x1FFFFFFC
)

type fpb struct {
	version FPBVersion
	numCode uint8
	numLit  uint8
	mirror  []uint32
}

func fpCompAddr(slot int) uint32 {
	return regFPComp0 + 4*uint32(slot)
}

// fpbInit probes FP_CTRL, enables the unit and loads the comparator mirror.
// An unknown unit version is reported but does not fail Start; breakpoint
// operations will refuse to arm anything.
func (h *Host) fpbInit() error {
	ctrl, err := h.ReadWord(regFPCtrl)
	if err != nil {
		return err
	}
	switch ctrl >> 28 {
	case 0:
		h.fpb.version = FPBv1
	case 1:
		h.fpb.version = FPBv2
	default:
		h.fpb = fpb{version: FPBVersionUnknown}
		logf("cortexm: unknown flash patch unit version %d, breakpoints disabled", ctrl>>28)
		return nil
	}
	numCode := (ctrl>>12&0x7)<<4 | ctrl>>4&0xF
	if numCode > maxCodeComparators {
		numCode = maxCodeComparators
	}
	h.fpb.numCode = uint8(numCode)
	h.fpb.numLit = uint8(ctrl >> 8 & 0xF)
	logf("cortexm: %s, %d code and %d literal comparators", h.fpb.version, h.fpb.numCode, h.fpb.numLit)

	if err := h.WriteWord(regFPCtrl, ctrl&^(fpKey|fpEnable)|fpKey|fpEnable); err != nil {
		return err
	}

	h.fpb.mirror = make([]uint32, numCode)
	for i := range h.fpb.mirror {
		comp, err := h.ReadWord(fpCompAddr(i))
		if err != nil {
			return err
		}
		h.fpb.mirror[i] = comp
	}
	return nil
}

// fpbEnable arms or disarms the whole unit without touching the
// comparators. Used to step over an armed breakpoint.
func (h *Host) fpbEnable(on bool) error {
	if h.fpb.version == FPBVersionUnknown {
		return nil
	}
	ctrl, err := h.ReadWord(regFPCtrl)
	if err != nil {
		return err
	}
	ctrl &^= fpKey | fpEnable
	if on {
		ctrl |= fpEnable
	}
	return h.WriteWord(regFPCtrl, ctrl|fpKey)
}

// FPB reports the flash patch unit version detected at Start.
func (h *Host) FPB() FPBVersion {
	return h.fpb.version
}

// BreakpointCount returns the number of code comparators, the upper bound
// on concurrently armed breakpoints.
func (h *Host) BreakpointCount() uint8 {
	return h.fpb.numCode
}

// LiteralCount returns the number of literal (remap) comparators.
func (h *Host) LiteralCount() uint8 {
	return h.fpb.numLit
}

// AddBreakpoint arms a hardware breakpoint at addr. Adding an address that
// is already armed with the same comparator value is a no-op; an address
// covered only by a v1 comparator armed for both halfwords gets a slot of
// its own. When every comparator is in use it returns ErrNoFreeComparator.
func (h *Host) AddBreakpoint(addr uint32) error {
	if err := h.started(); err != nil {
		return err
	}
	if h.fpb.version == FPBVersionUnknown {
		return ErrNoFPB
	}
	enc, err := encodeComparator(h.fpb.version, addr)
	if err != nil {
		return err
	}
	for _, m := range h.fpb.mirror {
		if m == enc {
			return nil
		}
	}
	for i, m := range h.fpb.mirror {
		if m&fpEnable != 0 {
			continue
		}
		if err := h.WriteWord(fpCompAddr(i), enc); err != nil {
			return err
		}
		h.fpb.mirror[i] = enc
		return nil
	}
	return ErrNoFreeComparator
}

// RemoveBreakpoint disarms the breakpoint at addr. A v1 comparator armed
// for both halfwords of its word is disarmed as a whole.
func (h *Host) RemoveBreakpoint(addr uint32) error {
	if err := h.started(); err != nil {
		return err
	}
	if h.fpb.version == FPBVersionUnknown {
		return ErrNoFPB
	}
	for i, m := range h.fpb.mirror {
		if !comparatorMatches(h.fpb.version, m, addr) {
			continue
		}
		if err := h.WriteWord(fpCompAddr(i), 0); err != nil {
			return err
		}
		h.fpb.mirror[i] = 0
		return nil
	}
	return fmt.Errorf("%w: no breakpoint at %#08x", ErrInvalidAddr, addr)
}

// ClearBreakpoints disarms every code comparator, best effort: slots that
// fail to clear are logged and skipped, not reported.
func (h *Host) ClearBreakpoints() error {
	if err := h.started(); err != nil {
		return err
	}
	for i := range h.fpb.mirror {
		if err := h.WriteWord(fpCompAddr(i), 0); err != nil {
			logf("cortexm: could not clear comparator %d: %v", i, err)
			continue
		}
		h.fpb.mirror[i] = 0
	}
	return nil
}

// ContainsBreakpoint reports whether a breakpoint is armed at addr, from
// the mirror alone.
func (h *Host) ContainsBreakpoint(addr uint32) bool {
	for _, m := range h.fpb.mirror {
		if comparatorMatches(h.fpb.version, m, addr) {
			return true
		}
	}
	return false
}

// Breakpoints reads the comparator bank back from the target and returns
// every armed breakpoint address. A v1 comparator armed for both halfwords
// contributes two addresses.
func (h *Host) Breakpoints() ([]uint32, error) {
	if err := h.started(); err != nil {
		return nil, err
	}
	var addrs []uint32
	for i := range h.fpb.mirror {
		comp, err := h.ReadWord(fpCompAddr(i))
		if err != nil {
			return addrs, err
		}
		addrs = append(addrs, comparatorAddrs(h.fpb.version, comp)...)
	}
	return addrs, nil
}

// encodeComparator translates a breakpoint address into its FP_COMP value.
func encodeComparator(v FPBVersion, addr uint32) (uint32, error) {
	if addr&1 != 0 {
		return 0, fmt.Errorf("%w: %#08x is not halfword aligned", ErrInvalidAddr, addr)
	}
	if v == FPBv2 {
		return addr | fpEnable, nil
	}
	if addr > codeEndAddr {
		return 0, fmt.Errorf("%w: %#08x is outside the code region", ErrInvalidAddr, addr)
	}
	enc := addr &^ (fpCompReplaceMask | 0x3)
	if addr&2 != 0 {
		enc |= fpCompReplaceHi
	} else {
		enc |= fpCompReplaceLo
	}
	return enc | fpEnable, nil
}

// comparatorAddrs decodes an FP_COMP value into the breakpoint addresses it
// matches. Disabled and remap comparators decode to nothing.
func comparatorAddrs(v FPBVersion, comp uint32) []uint32 {
	if comp&fpEnable == 0 {
		return nil
	}
	if v == FPBv2 {
		return []uint32{comp &^ fpEnable}
	}
	base := comp & fpCompAddrMask
	switch comp & fpCompReplaceMask {
	case fpCompReplaceLo:
		return []uint32{base}
	case fpCompReplaceHi:
		return []uint32{base | 2}
	case fpCompReplaceBoth:
		return []uint32{base, base | 2}
	}
	// REPLACE 0b00 is a literal remap entry, not a breakpoint.
	return nil
}

func comparatorMatches(v FPBVersion, comp, addr uint32) bool {
	for _, a := range comparatorAddrs(v, comp) {
		if a == addr {
			return true
		}
	}
	return false
}
