// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd

import "testing"

func TestPacketKnownValues(t *testing.T) {
	// Request bytes as they appear in the ADIv5 examples; any SWD probe on
	// the planet emits these exact values.
	data := []struct {
		p    Port
		read bool
		want uint8
	}{
		{DPIDCode, true, 0xA5},
		{DPAbort, false, 0x81},
		{DPCtrlStat, true, 0x8D},
		{DPCtrlStat, false, 0xA9},
		{DPSelect, false, 0xB1},
		{DPRDBuff, true, 0xBD},
		{APCSW, true, 0x87},
		{APCSW, false, 0xA3},
		{APTAR, false, 0x8B},
		{APDRW, true, 0x9F},
		{APDRW, false, 0xBB},
	}
	for _, line := range data {
		if got := packet(line.p, line.read); got != line.want {
			t.Errorf("packet(%s, read=%t) = %#02x, want %#02x", line.p, line.read, got, line.want)
		}
	}
}

func TestPacketParity(t *testing.T) {
	// The parity bit must equal the XOR of APnDP, RnW, A[2] and A[3] for
	// every encodable request.
	for p := Port(0); int(p) < portCount; p++ {
		for _, read := range []bool{false, true} {
			pkt := packet(p, read)
			want := pkt>>1&1 ^ pkt>>2&1 ^ pkt>>3&1 ^ pkt>>4&1
			if got := pkt >> 5 & 1; got != want {
				t.Errorf("packet(%s, read=%t) = %#02x: parity %d, want %d", p, read, pkt, got, want)
			}
			if pkt&0x81 != 0x81 {
				t.Errorf("packet(%s, read=%t) = %#02x: start/park not set", p, read, pkt)
			}
			if pkt&0x40 != 0 {
				t.Errorf("packet(%s, read=%t) = %#02x: stop bit set", p, read, pkt)
			}
		}
	}
}

func TestDataParity(t *testing.T) {
	data := []struct {
		v    uint32
		want uint32
	}{
		{0x00000000, 0},
		{0x00000001, 1},
		{0x12345678, 1},
		{0xFFFFFFFF, 0},
		{0xA05F0003, 0},
		{0x80000001, 0},
	}
	for _, line := range data {
		if got := dataParity(line.v); got != line.want {
			t.Errorf("dataParity(%#08x) = %d, want %d", line.v, got, line.want)
		}
	}
}

func TestPortMetadata(t *testing.T) {
	for p := Port(0); int(p) < portCount; p++ {
		if p.IsDP() == p.IsAP() {
			t.Errorf("%s: must be exactly one of DP and AP", p)
		}
		if !p.CanRead() && !p.CanWrite() {
			t.Errorf("%s: unreachable in both directions", p)
		}
	}
	if !DPIDCode.CanRead() || DPIDCode.CanWrite() {
		t.Error("IDCODE must be read-only")
	}
	if DPAbort.CanRead() || !DPAbort.CanWrite() {
		t.Error("ABORT must be write-only")
	}
	if !APCSW.CanRead() || !APCSW.CanWrite() {
		t.Error("CSW must be read-write")
	}
}

func TestPortBanks(t *testing.T) {
	data := []struct {
		p    Port
		want uint8
	}{
		{APCSW, 0x00},
		{APTAR, 0x00},
		{APDRW, 0x00},
		{APDB0, 0x10},
		{APDB3, 0x10},
		{APCFG, 0xF0},
		{APBase, 0xF0},
		{APIDR, 0xF0},
	}
	for _, line := range data {
		if got := line.p.bank(); got != line.want {
			t.Errorf("%s.bank() = %#02x, want %#02x", line.p, got, line.want)
		}
	}
}

func TestPortByName(t *testing.T) {
	for p := Port(0); int(p) < portCount; p++ {
		got, ok := PortByName(p.String())
		if !ok || got != p {
			t.Errorf("PortByName(%q) = %s, %t", p.String(), got, ok)
		}
	}
	if _, ok := PortByName("NOSUCH"); ok {
		t.Error("PortByName accepted an unknown name")
	}
	if p, ok := PortByName("rdbuff"); !ok || p != DPRDBuff {
		t.Error("PortByName must be case-insensitive")
	}
}
