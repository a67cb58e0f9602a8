// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import (
	"fmt"
	"strings"
)

// Register identifies a core or FPU register reachable through the
// DCRSR/DCRDR window while the target is halted.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	// DebugReturnAddress is the address of the first instruction to execute
	// on exit from debug state; what a debugger displays as the PC.
	DebugReturnAddress
	XPSR
	MSP
	PSP
	// CFBP packs CONTROL, FAULTMASK, BASEPRI and PRIMASK in one word.
	CFBP
	FPSCR
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	S12
	S13
	S14
	S15
	S16
	S17
	S18
	S19
	S20
	S21
	S22
	S23
	S24
	S25
	S26
	S27
	S28
	S29
	S30
	S31
)

const registerCount = int(S31) + 1

// DCRSR.REGSEL encodings, ARMv7-M C1.6.3.
func (r Register) regsel() uint32 {
	switch {
	case r <= DebugReturnAddress:
		// R0..R12, SP, LR, DebugReturnAddress are their own index.
		return uint32(r)
	case r == XPSR:
		return 0b0010000
	case r == MSP:
		return 0b0010001
	case r == PSP:
		return 0b0010010
	case r == CFBP:
		return 0b0010100
	case r == FPSCR:
		return 0b0100001
	default:
		// S0 starts at 0b1000000 and the bank is contiguous.
		return 0b1000000 + uint32(r-S0)
	}
}

func (r Register) String() string {
	switch r {
	case SP:
		return "SP"
	case LR:
		return "LR"
	case DebugReturnAddress:
		return "PC"
	case XPSR:
		return "xPSR"
	case MSP:
		return "MSP"
	case PSP:
		return "PSP"
	case CFBP:
		return "CFBP"
	case FPSCR:
		return "FPSCR"
	}
	if r <= R12 {
		return fmt.Sprintf("R%d", uint8(r))
	}
	if r >= S0 && r <= S31 {
		return fmt.Sprintf("S%d", uint8(r-S0))
	}
	return "INVALID"
}

// RegisterByName parses a register name, case-insensitively. "PC" and
// "CFBP" are accepted as the usual shorthands for the debug return address
// and the packed special register.
func RegisterByName(name string) (Register, bool) {
	for i := 0; i < registerCount; i++ {
		if strings.EqualFold(Register(i).String(), name) {
			return Register(i), true
		}
	}
	return 0, false
}
