// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd

import (
	"math/bits"
	"strings"
)

// Port is one of the Debug Port or Access Port registers reachable through a
// SWD request packet.
//
// DP registers are decoded by the wire interface itself; AP registers are
// windowed through SELECT.APBANKSEL and live behind the posted-read
// mechanism (see DAP.ReadPort).
type Port uint8

const (
	DPAbort Port = iota
	DPIDCode
	DPCtrlStat
	DPWCR
	DPResend
	DPSelect
	DPRDBuff
	DPRouteSel

	APCSW
	APTAR
	APDRW
	APDB0
	APDB1
	APDB2
	APDB3
	APCFG
	APBase
	APIDR
)

// portCount is the size of the closed enumeration.
const portCount = int(APIDR) + 1

// SWD request packet bit assignment.
//
// bit 0: start (always 1)    bit 4: A[3]
// bit 1: APnDP               bit 5: parity over bits 1..4
// bit 2: RnW                 bit 6: stop (always 0)
// bit 3: A[2]                bit 7: park (always 1)
const (
	packetBase = 0x81 // start | park
	packetAP   = 0x02
	packetRead = 0x04
	packetAx0  = 0x00
	packetAx4  = 0x08
	packetAx8  = 0x10
	packetAxC  = 0x18
)

// AP register banks as APBANKSEL values, already shifted into SELECT bit
// positions 7:4.
const (
	bankData = 0x00 // CSW, TAR, DRW
	bankBD   = 0x10 // DB0..DB3
	bankID   = 0xF0 // CFG, BASE, IDR
	bankNone = 0xFF // DP register, no bank
)

var portDetails = [portCount]struct {
	name        string
	ap          bool
	offset      uint8 // A[3:2] pre-shifted into packet bit positions
	read, write bool
	bank        uint8
}{
	DPAbort:    {"ABORT", false, packetAx0, false, true, bankNone},
	DPIDCode:   {"IDCODE", false, packetAx0, true, false, bankNone},
	DPCtrlStat: {"CTRL/STAT", false, packetAx4, true, true, bankNone},
	DPWCR:      {"WCR", false, packetAx4, true, true, bankNone},
	DPResend:   {"RESEND", false, packetAx8, true, false, bankNone},
	DPSelect:   {"SELECT", false, packetAx8, false, true, bankNone},
	DPRDBuff:   {"RDBUFF", false, packetAxC, true, false, bankNone},
	DPRouteSel: {"ROUTESEL", false, packetAxC, false, true, bankNone},

	APCSW:  {"CSW", true, packetAx0, true, true, bankData},
	APTAR:  {"TAR", true, packetAx4, true, true, bankData},
	APDRW:  {"DRW", true, packetAxC, true, true, bankData},
	APDB0:  {"DB0", true, packetAx0, true, true, bankBD},
	APDB1:  {"DB1", true, packetAx4, true, true, bankBD},
	APDB2:  {"DB2", true, packetAx8, true, true, bankBD},
	APDB3:  {"DB3", true, packetAxC, true, true, bankBD},
	APCFG:  {"CFG", true, packetAx4, true, false, bankID},
	APBase: {"BASE", true, packetAx8, true, false, bankID},
	APIDR:  {"IDR", true, packetAxC, true, false, bankID},
}

func (p Port) String() string {
	if int(p) >= portCount {
		return "INVALID"
	}
	return portDetails[p].name
}

// IsAP returns true for Access Port registers.
func (p Port) IsAP() bool {
	return int(p) < portCount && portDetails[p].ap
}

// IsDP returns true for Debug Port registers.
func (p Port) IsDP() bool {
	return int(p) < portCount && !portDetails[p].ap
}

// CanRead returns whether the port supports read requests.
func (p Port) CanRead() bool {
	return int(p) < portCount && portDetails[p].read
}

// CanWrite returns whether the port supports write requests.
func (p Port) CanWrite() bool {
	return int(p) < portCount && portDetails[p].write
}

// bank returns the APBANKSEL value required before accessing an AP port.
func (p Port) bank() uint8 {
	return portDetails[p].bank
}

// PortByName returns the port with the given register name,
// case-insensitively. It returns false for unknown names.
func PortByName(name string) (Port, bool) {
	for i := 0; i < portCount; i++ {
		if strings.EqualFold(portDetails[i].name, name) {
			return Port(i), true
		}
	}
	return 0, false
}

// packet assembles the 8-bit host-to-target request for a port access.
// APBANKSEL is not part of the packet; it is set out of band via SELECT.
func packet(p Port, read bool) uint8 {
	pkt := uint8(packetBase)
	if portDetails[p].ap {
		pkt |= packetAP
	}
	if read {
		pkt |= packetRead
	}
	pkt |= portDetails[p].offset
	return pkt | packetParity(pkt)<<5
}

// packetParity computes the request parity over APnDP, RnW, A[2] and A[3].
func packetParity(pkt uint8) uint8 {
	var parity uint8
	for i := 1; i <= 4; i++ {
		parity ^= pkt >> i
	}
	return parity & 1
}

// dataParity returns the even parity bit of a 32-bit data phase.
func dataParity(v uint32) uint32 {
	return uint32(bits.OnesCount32(v) & 1)
}
