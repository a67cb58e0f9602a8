// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import "testing"

func TestRegisterSelectors(t *testing.T) {
	data := []struct {
		r    Register
		want uint32
	}{
		{R0, 0b0000000},
		{R7, 0b0000111},
		{R12, 0b0001100},
		{SP, 0b0001101},
		{LR, 0b0001110},
		{DebugReturnAddress, 0b0001111},
		{XPSR, 0b0010000},
		{MSP, 0b0010001},
		{PSP, 0b0010010},
		{CFBP, 0b0010100},
		{FPSCR, 0b0100001},
		{S0, 0b1000000},
		{S15, 0b1001111},
		{S31, 0b1011111},
	}
	for _, line := range data {
		if got := line.r.regsel(); got != line.want {
			t.Errorf("%s.regsel() = %#07b, want %#07b", line.r, got, line.want)
		}
	}
}

func TestRegisterNames(t *testing.T) {
	data := []struct {
		r    Register
		want string
	}{
		{R0, "R0"},
		{R12, "R12"},
		{SP, "SP"},
		{LR, "LR"},
		{DebugReturnAddress, "PC"},
		{XPSR, "xPSR"},
		{CFBP, "CFBP"},
		{FPSCR, "FPSCR"},
		{S0, "S0"},
		{S31, "S31"},
	}
	for _, line := range data {
		if got := line.r.String(); got != line.want {
			t.Errorf("%s.String() = %q, want %q", line.want, got, line.want)
		}
	}
}

func TestRegisterByName(t *testing.T) {
	for r := Register(0); int(r) < registerCount; r++ {
		got, ok := RegisterByName(r.String())
		if !ok || got != r {
			t.Errorf("RegisterByName(%q) = %s, %t", r.String(), got, ok)
		}
	}
	if r, ok := RegisterByName("pc"); !ok || r != DebugReturnAddress {
		t.Error("RegisterByName must accept the PC alias case-insensitively")
	}
	if _, ok := RegisterByName("R13"); ok {
		t.Error("R13 is spelled SP")
	}
}
