// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

// System Control Space registers used for debugging, per the ARMv7-M
// Architecture Reference Manual (DDI0403), chapters B3, C1.
const (
	regAIRCR = 0xE000ED0C // Application Interrupt and Reset Control Register
	regDFSR  = 0xE000ED30 // Debug Fault Status Register
	regDHCSR = 0xE000EDF0 // Debug Halting Control and Status Register
	regDCRSR = 0xE000EDF4 // Debug Core Register Selector Register
	regDCRDR = 0xE000EDF8 // Debug Core Register Data Register
	regDEMCR = 0xE000EDFC // Debug Event and Monitor Control Register

	// Flash Patch and Breakpoint unit.
	regFPCtrl  = 0xE0002000
	regFPRemap = 0xE0002004
	regFPComp0 = 0xE0002008 // comparator n is at regFPComp0 + 4n
)

// DHCSR fields.
const (
	dbgKey    = 0xA05F0000 // write key, mandatory in bits 31:16
	cDebugEn  = 0x1
	cHalt     = 0x2
	cStep     = 0x4
	cMaskInts = 0x8
	sRegRdy   = 0x10000
	sHalted   = 0x20000
)

// DCRSR fields.
const regSelWrite = 0x10000 // transfer DCRDR into the selected register

// DEMCR fields.
const vcCoreReset = 0x1 // vector catch on core reset

// AIRCR fields.
const (
	vectKey     = 0x05FA0000 // write key, mandatory in bits 31:16
	sysResetReq = 0x4
	vectReset   = 0x1
)

// FP_CTRL fields.
const (
	fpKey    = 0x2 // must be set on every FP_CTRL write
	fpEnable = 0x1
)

// FP_REMAP fields.
const fpRemapSupported = 0x20000000

// ARMv7-M memory map regions relevant to the FPB.
const (
	codeEndAddr  = 0x1FFFFFFF
	sramBaseAddr = 0x20000000
)
