// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package swdtest is meant to be used to test SWD hosts against a fake
// target.
//
// Target implements swd.Driver as a behavioral simulation of an ADIv5
// SW-DP, a memory access port and the ARMv7-M debug registers, so the full
// stack from packet framing to breakpoint management can be exercised
// bit-exactly without hardware. Modify the exported members to script
// hardware events and inspect them to assert on wire traffic.
package swdtest

import (
	"math/bits"

	"periph.io/x/swd"
)

// ACK values as they appear on the wire.
const (
	ackOK    = 0b001
	ackWait  = 0b010
	ackFault = 0b100
)

// Debug register addresses decoded by the simulated memory bus.
const (
	addrAIRCR  = 0xE000ED0C
	addrDHCSR  = 0xE000EDF0
	addrDCRSR  = 0xE000EDF4
	addrDCRDR  = 0xE000EDF8
	addrDEMCR  = 0xE000EDFC
	addrFPCtrl = 0xE0002000
	addrFPComp = 0xE0002008
)

const (
	ctrlWDATAERR  = 0x80
	ctrlSTICKYERR = 0x20
)

// MemWrite is one word that went over the simulated memory bus through
// DRW.
type MemWrite struct {
	Addr uint32
	Data uint32
}

// request is a decoded host request packet.
type request struct {
	ap   bool
	read bool
	a    uint32 // A[3:2]
}

// Target simulates one SWD target.
//
// The zero value is not usable; call New.
type Target struct {
	// Identity and capabilities.
	IDCode         uint32
	CFG            uint32 // AP CFG; bit 0 set means big endian
	Base           uint32 // AP BASE
	IDR            uint32 // AP IDR
	FPBVersionBits uint32 // FP_CTRL bits 31:28; 0 is v1, 1 is v2
	NumCode        int
	NumLit         int
	ResetPC        uint32

	// Core and memory state.
	Mem        map[uint32]uint32 // word addressed
	Regs       map[uint32]uint32 // by REGSEL index; 15 is the debug return address
	Comps      []uint32
	FPBEnabled bool
	DebugEn    bool
	Halted     bool
	DCRDR      uint32
	DEMCR      uint32
	RegRdy     bool

	// Fault injection.
	WaitACKs           int      // respond WAIT to this many requests
	ForceACKs          []uint32 // forced ACK values, consumed one per request
	CorruptReadParity  int      // corrupt the parity of this many data reads
	CorruptWriteParity int      // treat this many write data phases as parity errors

	// Observability.
	Packets      []byte     // every request packet received, in order
	MemWrites    []MemWrite // every DRW-mediated bus write
	LineResets   int
	JTAGSwitches int
	SelectWrites int
	Resets       int // AIRCR system reset requests

	// DP/AP register state, exported so tests can assert on it.
	CtrlStat uint32
	Select   uint32
	CSW      uint32
	TAR      uint32
	WCR      uint32

	posted uint32

	// Wire decode state.
	req         request
	haveReq     bool
	awaitData   bool
	awaitParity bool
	readData    uint32
	resetOnes   int
	resetSeen   bool
}

// New returns a target with a Cortex-M4-ish DAP: little endian, FPBv1 with
// 4 code and 2 literal comparators.
func New() *Target {
	t := &Target{
		IDCode:  0x2BA01477,
		NumCode: 4,
		NumLit:  2,
		Mem:     map[uint32]uint32{},
		Regs:    map[uint32]uint32{},
	}
	t.Comps = make([]uint32, t.NumCode)
	return t
}

// WriteBits implements swd.Driver.
func (t *Target) WriteBits(data uint32, n int) {
	switch {
	case t.awaitData && n == 32:
		t.awaitData = false
		t.awaitParity = true
		t.readData = data // stash write data
		return
	case t.awaitParity && n == 1:
		t.awaitParity = false
		bad := dataParity(t.readData) != data&1
		if t.CorruptWriteParity > 0 {
			t.CorruptWriteParity--
			bad = true
		}
		if bad {
			t.CtrlStat |= ctrlWDATAERR
		} else {
			t.applyWrite(t.req, t.readData)
		}
		return
	case n == 32 && data == 0xFFFFFFFF:
		t.resetOnes += 32
		if t.resetOnes >= 50 && !t.resetSeen {
			t.resetSeen = true
			t.lineReset()
		}
		return
	case n == 16 && data == 0xE79E:
		t.JTAGSwitches++
	case n == 8 && data&1 != 0:
		t.decodePacket(uint8(data))
	}
	t.resetOnes = 0
	t.resetSeen = false
}

// ReadBits implements swd.Driver.
func (t *Target) ReadBits(n int) uint32 {
	switch n {
	case 3:
		return t.ack()
	case 32:
		return t.readData
	case 1:
		p := dataParity(t.readData)
		if t.CorruptReadParity > 0 {
			t.CorruptReadParity--
			p ^= 1
		}
		return p
	}
	return 0
}

// Turnaround implements swd.Driver.
func (t *Target) Turnaround() {
}

// IdleShort implements swd.Driver.
func (t *Target) IdleShort() {
	t.WriteBits(0, 2)
}

// IdleLong implements swd.Driver.
func (t *Target) IdleLong() {
	t.WriteBits(0, 8)
}

// LineReset implements swd.Driver.
func (t *Target) LineReset() {
	t.WriteBits(0xFFFFFFFF, 32)
	t.WriteBits(0xFFFFFFFF, 32)
}

// JTAGToSWD implements swd.Driver.
func (t *Target) JTAGToSWD() {
	t.LineReset()
	t.WriteBits(0xE79E, 16)
	t.LineReset()
	t.IdleShort()
}

// lineReset is the target side effect of >=50 high bits: the DP returns to
// its known reset state and the power-up acknowledges drop.
func (t *Target) lineReset() {
	t.LineResets++
	t.Select = 0
	t.posted = 0
	t.CtrlStat &^= 0xF0000000
	t.haveReq = false
	t.awaitData = false
	t.awaitParity = false
}

func (t *Target) decodePacket(pkt uint8) {
	t.Packets = append(t.Packets, pkt)
	// Park must be set, stop clear and the request parity consistent;
	// anything else desyncs the exchange and nothing will answer.
	var parity uint8
	for i := 1; i <= 4; i++ {
		parity ^= pkt >> i
	}
	if pkt&0x80 == 0 || pkt&0x40 != 0 || parity&1 != pkt>>5&1 {
		t.haveReq = false
		return
	}
	t.req = request{
		ap:   pkt&0x02 != 0,
		read: pkt&0x04 != 0,
		a:    uint32(pkt >> 3 & 3),
	}
	t.haveReq = true
}

// ack decides the 3-bit response for the pending request and, on OK,
// prepares the data phase.
func (t *Target) ack() uint32 {
	if !t.haveReq {
		return 0b111
	}
	t.haveReq = false
	if len(t.ForceACKs) > 0 {
		forced := t.ForceACKs[0]
		t.ForceACKs = t.ForceACKs[1:]
		if forced != ackOK {
			return forced
		}
	} else if t.WaitACKs > 0 {
		t.WaitACKs--
		return ackWait
	}
	if t.CtrlStat&(ctrlWDATAERR|ctrlSTICKYERR) != 0 && !t.stickyExempt(t.req) {
		return ackFault
	}
	if t.req.read {
		t.readData = t.resolveRead(t.req)
	} else {
		t.awaitData = true
	}
	return ackOK
}

// stickyExempt reports requests that must keep working while a sticky
// error flag is set, so the host can diagnose and clear it.
func (t *Target) stickyExempt(r request) bool {
	if r.ap {
		return false
	}
	if r.read {
		// IDCODE and CTRL/STAT reads.
		return r.a == 0 || r.a == 1
	}
	// ABORT writes.
	return r.a == 0
}

func (t *Target) resolveRead(r request) uint32 {
	if !r.ap {
		switch r.a {
		case 0:
			return t.IDCode
		case 1:
			if t.Select&1 != 0 {
				return t.WCR
			}
			return t.CtrlStat
		case 2:
			return t.posted // RESEND
		default:
			return t.posted // RDBUFF
		}
	}
	// AP reads are posted: this transaction returns the previous result and
	// the fresh value lands in RDBUFF.
	prev := t.posted
	t.posted = t.apRead(r.a)
	return prev
}

func (t *Target) apRead(a uint32) uint32 {
	switch bank := t.Select & 0xF0; bank {
	case 0x00:
		switch a {
		case 0:
			return t.CSW
		case 1:
			return t.TAR
		case 3:
			return t.drwRead()
		}
	case 0x10:
		return t.busRead(t.TAR&^0xF + 4*a)
	case 0xF0:
		switch a {
		case 1:
			return t.CFG
		case 2:
			return t.Base
		case 3:
			return t.IDR
		}
	}
	return 0
}

func (t *Target) applyWrite(r request, v uint32) {
	if !r.ap {
		switch r.a {
		case 0: // ABORT
			if v&0x08 != 0 {
				t.CtrlStat &^= ctrlWDATAERR
			}
			if v&0x04 != 0 {
				t.CtrlStat &^= ctrlSTICKYERR
			}
		case 1:
			if t.Select&1 != 0 {
				t.WCR = v
				return
			}
			// CTRL/STAT: power requests acknowledge immediately.
			t.CtrlStat = t.CtrlStat&^0x50000000 | v&0x50000000
			if v&0x50000000 == 0x50000000 {
				t.CtrlStat |= 0xA0000000
			}
		case 2:
			t.SelectWrites++
			t.Select = v
		}
		return
	}
	switch bank := t.Select & 0xF0; bank {
	case 0x00:
		switch r.a {
		case 0:
			t.CSW = v
		case 1:
			t.TAR = v
		case 3:
			t.drwWrite(v)
		}
	case 0x10:
		t.busWrite(t.TAR&^0xF+4*r.a, v)
	}
}

// drwRead performs the memory access behind a DRW read, honoring CSW size
// and auto-increment.
func (t *Target) drwRead() uint32 {
	v := t.busRead(t.TAR &^ 3)
	if t.CSW&0x7 == 0 { // byte size
		v = v >> (8 * (t.TAR & 3)) & 0xFF
	}
	t.autoInc()
	return v
}

func (t *Target) drwWrite(v uint32) {
	if t.CSW&0x7 == 0 { // byte size
		sh := 8 * (t.TAR & 3)
		cur := t.busRead(t.TAR &^ 3)
		v = cur&^(0xFF<<sh) | (v&0xFF)<<sh
	}
	t.MemWrites = append(t.MemWrites, MemWrite{t.TAR, v})
	t.busWrite(t.TAR&^3, v)
	t.autoInc()
}

func (t *Target) autoInc() {
	if t.CSW&0x30 != 0x10 {
		return
	}
	if t.CSW&0x7 == 0 {
		t.TAR++
	} else {
		t.TAR += 4
	}
}

// busRead reads the simulated memory bus, intercepting the debug
// registers.
func (t *Target) busRead(addr uint32) uint32 {
	switch addr {
	case addrDHCSR:
		var s uint32
		if t.DebugEn {
			s |= 0x1
		}
		if t.RegRdy {
			s |= 0x10000
		}
		if t.Halted {
			s |= 0x20000
		}
		return s
	case addrDCRDR:
		return t.DCRDR
	case addrDEMCR:
		return t.DEMCR
	case addrFPCtrl:
		n := uint32(t.NumCode)
		ctrl := t.FPBVersionBits<<28 | (n>>4&0x7)<<12 | (n&0xF)<<4 | uint32(t.NumLit&0xF)<<8
		if t.FPBEnabled {
			ctrl |= 1
		}
		return ctrl
	}
	if addr >= addrFPComp && addr < addrFPComp+4*uint32(len(t.Comps)) {
		return t.Comps[(addr-addrFPComp)/4]
	}
	return t.Mem[addr&^3]
}

func (t *Target) busWrite(addr, v uint32) {
	switch addr {
	case addrDHCSR:
		if v>>16&0xFFFF != 0xA05F {
			return
		}
		t.DebugEn = v&0x1 != 0
		switch {
		case v&0x2 != 0:
			t.Halted = t.DebugEn
		case v&0x4 != 0:
			t.step()
		default:
			t.Halted = false
		}
		return
	case addrDCRSR:
		sel := v & 0x7F
		if v&0x10000 != 0 {
			t.Regs[sel] = t.DCRDR
		} else {
			t.DCRDR = t.Regs[sel]
		}
		t.RegRdy = true
		return
	case addrDCRDR:
		t.DCRDR = v
		return
	case addrDEMCR:
		t.DEMCR = v
		return
	case addrAIRCR:
		if v&0xFFFF0000 == 0x05FA0000 && v&0x4 != 0 {
			t.Resets++
			t.Regs[15] = t.ResetPC
			t.Halted = t.DEMCR&0x1 != 0
		}
		return
	case addrFPCtrl:
		if v&0x2 != 0 {
			t.FPBEnabled = v&0x1 != 0
		}
		return
	}
	if addr >= addrFPComp && addr < addrFPComp+4*uint32(len(t.Comps)) {
		t.Comps[(addr-addrFPComp)/4] = v
		return
	}
	t.Mem[addr&^3] = v
}

// step retires one instruction, unless an armed comparator pins the core
// to the current debug return address.
func (t *Target) step() {
	if !t.DebugEn {
		return
	}
	pc := t.Regs[15]
	if !(t.FPBEnabled && t.comparatorHit(pc)) {
		t.Regs[15] = pc + 2
	}
	t.Halted = true
}

func (t *Target) comparatorHit(pc uint32) bool {
	for _, c := range t.Comps {
		if c&1 == 0 {
			continue
		}
		if t.FPBVersionBits == 1 {
			if c&^1 == pc {
				return true
			}
			continue
		}
		base := c & 0x1FFFFFFC
		switch c & 0xC0000000 {
		case 0x40000000:
			if pc == base {
				return true
			}
		case 0x80000000:
			if pc == base|2 {
				return true
			}
		case 0xC0000000:
			if pc == base || pc == base|2 {
				return true
			}
		}
	}
	return false
}

func dataParity(v uint32) uint32 {
	return uint32(bits.OnesCount32(v) & 1)
}

var _ swd.Driver = &Target{}
