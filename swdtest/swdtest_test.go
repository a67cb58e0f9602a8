// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swdtest

import "testing"

func TestRawIDCodeRead(t *testing.T) {
	tgt := New()
	tgt.IDCode = 0x2BA01477
	tgt.WriteBits(0xA5, 8) // IDCODE read request
	tgt.Turnaround()
	if ack := tgt.ReadBits(3); ack != 0b001 {
		t.Fatalf("ack = %#b, want OK", ack)
	}
	if data := tgt.ReadBits(32); data != 0x2BA01477 {
		t.Fatalf("data = %#08x", data)
	}
	if parity := tgt.ReadBits(1); parity != dataParity(0x2BA01477) {
		t.Fatalf("parity = %d", parity)
	}
	if len(tgt.Packets) != 1 || tgt.Packets[0] != 0xA5 {
		t.Fatalf("recorded packets = %#v", tgt.Packets)
	}
}

func TestCorruptPacketGetsNoACK(t *testing.T) {
	tgt := New()
	tgt.WriteBits(0xA5^0x20, 8) // parity bit flipped
	tgt.Turnaround()
	if ack := tgt.ReadBits(3); ack == 0b001 {
		t.Fatal("a corrupt request must not be acknowledged")
	}
}

func TestLineResetRestoresSelect(t *testing.T) {
	tgt := New()
	tgt.Select = 0xF1
	tgt.LineReset()
	if tgt.Select != 0 {
		t.Fatalf("SELECT = %#x after line reset, want 0", tgt.Select)
	}
	if tgt.LineResets != 1 {
		t.Fatalf("LineResets = %d, want 1", tgt.LineResets)
	}
}
