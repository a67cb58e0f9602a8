// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd_test

import (
	"errors"
	"testing"

	"periph.io/x/swd"
	"periph.io/x/swd/swdtest"
)

func startedDAP(t *testing.T, opts *swd.Opts) (*swd.DAP, *swdtest.Target) {
	t.Helper()
	tgt := swdtest.New()
	d := swd.New(tgt, opts)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	return d, tgt
}

func countPackets(tgt *swdtest.Target, pkt byte) int {
	n := 0
	for _, p := range tgt.Packets {
		if p == pkt {
			n++
		}
	}
	return n
}

func TestStartSequence(t *testing.T) {
	tgt := swdtest.New()
	tgt.IDCode = 0x0BB11477
	d := swd.New(tgt, nil)
	if !d.Stopped() {
		t.Fatal("a fresh DAP must be stopped")
	}
	if _, err := d.ReadPort(swd.DPIDCode); !errors.Is(err, swd.ErrNotStarted) {
		t.Fatalf("read before Start = %v, want ErrNotStarted", err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	// The very first request on the wire must be the IDCODE read, 0xA5.
	if len(tgt.Packets) == 0 {
		t.Fatal("no packets on the wire")
	}
	if tgt.Packets[0] != 0xA5 {
		t.Fatalf("first packet = %#02x, want 0xA5", tgt.Packets[0])
	}
	if d.IDCode() != 0x0BB11477 {
		t.Fatalf("IDCode() = %#08x, want 0x0BB11477", d.IDCode())
	}
	if tgt.JTAGSwitches != 1 {
		t.Fatalf("JTAG-to-SWD sequences = %d, want 1", tgt.JTAGSwitches)
	}
	// Power-up request acknowledged.
	if tgt.CtrlStat&0xA0000000 != 0xA0000000 {
		t.Fatalf("CTRL/STAT = %#08x, power-up not acknowledged", tgt.CtrlStat)
	}
	if !d.LittleEndian() {
		t.Fatal("default target must read back little endian")
	}
}

func TestStartNoJTAGSwitch(t *testing.T) {
	tgt := swdtest.New()
	d := swd.New(tgt, &swd.Opts{NoJTAGSwitch: true})
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if tgt.JTAGSwitches != 0 {
		t.Fatalf("JTAG-to-SWD sequences = %d, want 0", tgt.JTAGSwitches)
	}
	if tgt.LineResets == 0 {
		t.Fatal("expected a plain line reset")
	}
}

func TestStopRefusesOperations(t *testing.T) {
	d, _ := startedDAP(t, nil)
	d.Stop()
	if _, err := d.ReadPort(swd.DPIDCode); !errors.Is(err, swd.ErrNotStarted) {
		t.Fatalf("read after Stop = %v, want ErrNotStarted", err)
	}
	if err := d.WritePort(swd.DPAbort, 0x1F); !errors.Is(err, swd.ErrNotStarted) {
		t.Fatalf("write after Stop = %v, want ErrNotStarted", err)
	}
	// A second Start revives it.
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadPort(swd.DPIDCode); err != nil {
		t.Fatal(err)
	}
}

func TestPortDirectionEnforcement(t *testing.T) {
	d, _ := startedDAP(t, nil)
	if _, err := d.ReadPort(swd.DPSelect); !errors.Is(err, swd.ErrInvalidPortOp) {
		t.Fatalf("reading SELECT = %v, want ErrInvalidPortOp", err)
	}
	if err := d.WritePort(swd.DPIDCode, 0); !errors.Is(err, swd.ErrInvalidPortOp) {
		t.Fatalf("writing IDCODE = %v, want ErrInvalidPortOp", err)
	}
	if err := d.WritePort(swd.APCFG, 0); !errors.Is(err, swd.ErrInvalidPortOp) {
		t.Fatalf("writing CFG = %v, want ErrInvalidPortOp", err)
	}
}

func TestBlockedPorts(t *testing.T) {
	d, _ := startedDAP(t, &swd.Opts{BlockUndefinedPorts: true})
	for _, p := range []swd.Port{swd.APDB0, swd.APDB1, swd.APDB2, swd.APDB3, swd.APBase} {
		if _, err := d.ReadPort(p); !errors.Is(err, swd.ErrUndefinedPort) {
			t.Errorf("reading %s = %v, want ErrUndefinedPort", p, err)
		}
	}
	// CSW stays reachable.
	if _, err := d.ReadPort(swd.APCSW); err != nil {
		t.Fatal(err)
	}
}

func TestWaitRetry(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.IDCode = 0x12345678
	tgt.WaitACKs = 2
	before := countPackets(tgt, 0xA5)
	got, err := d.ReadPort(swd.DPIDCode)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x12345678 {
		t.Fatalf("IDCODE = %#08x, want 0x12345678", got)
	}
	// Two WAITed attempts plus the final one.
	if n := countPackets(tgt, 0xA5) - before; n != 3 {
		t.Fatalf("IDCODE requests = %d, want 3", n)
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	d, tgt := startedDAP(t, &swd.Opts{RetryCount: 4})
	tgt.WaitACKs = 100
	before := countPackets(tgt, 0xA5)
	if _, err := d.ReadPort(swd.DPIDCode); !errors.Is(err, swd.ErrTransfer) {
		t.Fatalf("endless WAIT = %v, want ErrTransfer", err)
	}
	if n := countPackets(tgt, 0xA5) - before; n != 4 {
		t.Fatalf("IDCODE requests = %d, want 4", n)
	}
	if d.Stopped() {
		t.Fatal("WAIT exhaustion must not stop the DAP")
	}
}

func TestReadParityRetry(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.CorruptReadParity = 1
	before := countPackets(tgt, 0xA5)
	if _, err := d.ReadPort(swd.DPIDCode); err != nil {
		t.Fatal(err)
	}
	if n := countPackets(tgt, 0xA5) - before; n != 2 {
		t.Fatalf("IDCODE requests = %d, want 2 (one corrupted)", n)
	}
}

func TestErrorRecoveryResyncs(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.IDCode = 0x2BA01477
	resets := tgt.LineResets
	tgt.ForceACKs = []uint32{0b000}
	got, err := d.ReadPort(swd.DPIDCode)
	if err != nil {
		t.Fatalf("read after recoverable desync = %v", err)
	}
	if got != 0x2BA01477 {
		t.Fatalf("IDCODE = %#08x", got)
	}
	if tgt.LineResets <= resets {
		t.Fatal("expected a line reset during recovery")
	}
	if d.Stopped() {
		t.Fatal("recovered DAP must keep running")
	}
}

func TestErrorRecoveryFailureStops(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	// Desync the operation, then fail the recovery's IDCODE read too.
	tgt.ForceACKs = []uint32{0b000, 0b000}
	if _, err := d.ReadPort(swd.DPIDCode); err == nil {
		t.Fatal("expected an error when resync fails")
	}
	if !d.Stopped() {
		t.Fatal("failed recovery must stop the DAP")
	}
	if _, err := d.ReadPort(swd.DPIDCode); !errors.Is(err, swd.ErrNotStarted) {
		t.Fatalf("read after self-stop = %v, want ErrNotStarted", err)
	}
}

func TestBankSelectCaching(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	// Start leaves APBANKSEL on the ID bank after the CFG read.
	before := tgt.SelectWrites
	if _, err := d.ReadPort(swd.APCSW); err != nil {
		t.Fatal(err)
	}
	if tgt.SelectWrites != before+1 {
		t.Fatalf("SELECT writes = %d, want %d", tgt.SelectWrites, before+1)
	}
	// Same bank: no SELECT traffic.
	if _, err := d.ReadPort(swd.APTAR); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadPort(swd.APCSW); err != nil {
		t.Fatal(err)
	}
	if tgt.SelectWrites != before+1 {
		t.Fatalf("SELECT writes = %d, want %d (cache must elide)", tgt.SelectWrites, before+1)
	}
	// Different bank: one more.
	if _, err := d.ReadPort(swd.APIDR); err != nil {
		t.Fatal(err)
	}
	if tgt.SelectWrites != before+2 {
		t.Fatalf("SELECT writes = %d, want %d", tgt.SelectWrites, before+2)
	}
}

func TestWCRCtrlSelDance(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.WCR = 0x00000040
	got, err := d.ReadPort(swd.DPWCR)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x00000040 {
		t.Fatalf("WCR = %#08x, want 0x00000040", got)
	}
	if tgt.Select&1 != 0 {
		t.Fatal("CTRLSEL must be restored to 0 after a WCR access")
	}
	if err := d.WritePort(swd.DPWCR, 0x00000100); err != nil {
		t.Fatal(err)
	}
	if tgt.WCR != 0x00000100 {
		t.Fatalf("target WCR = %#08x, want 0x00000100", tgt.WCR)
	}
	if tgt.Select&1 != 0 {
		t.Fatal("CTRLSEL must be restored to 0 after a WCR write")
	}
	// CTRL/STAT reads keep hitting CTRL/STAT, not WCR.
	stat, err := d.ReadPort(swd.DPCtrlStat)
	if err != nil {
		t.Fatal(err)
	}
	if stat == 0x00000100 {
		t.Fatal("CTRL/STAT read returned WCR contents")
	}
}

func TestStickyErrorSurfacesOnce(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.CtrlStat |= 0x20 // STICKYERR
	if _, err := d.ReadPort(swd.APCSW); !errors.Is(err, swd.ErrAPFault) {
		t.Fatalf("AP read with sticky error = %v, want ErrAPFault", err)
	}
	if tgt.CtrlStat&0x20 != 0 {
		t.Fatal("fault handler must clear STICKYERR")
	}
	// The flag was consumed; the next AP access is clean.
	if _, err := d.ReadPort(swd.APCSW); err != nil {
		t.Fatal(err)
	}
}

func TestWriteParityErrorRecovers(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	tgt.CorruptWriteParity = 1
	if err := d.WritePort(swd.DPSelect, 0x10); err != nil {
		t.Fatal(err)
	}
	if tgt.Select != 0x10 {
		t.Fatalf("target SELECT = %#02x, want 0x10", tgt.Select)
	}
	if tgt.CtrlStat&0x80 != 0 {
		t.Fatal("WDATAERR must be cleared by the fault handler")
	}
}

func TestCSWCaching(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	if err := d.SetDataSize(swd.SizeWord); err != nil {
		t.Fatal(err)
	}
	writes := countPackets(tgt, 0xA3) // CSW write requests
	if err := d.SetDataSize(swd.SizeWord); err != nil {
		t.Fatal(err)
	}
	if got := countPackets(tgt, 0xA3); got != writes {
		t.Fatalf("CSW writes went from %d to %d on a cached no-op", writes, got)
	}
	if err := d.SetDataSize(swd.SizeByte); err != nil {
		t.Fatal(err)
	}
	if got := countPackets(tgt, 0xA3); got != writes+1 {
		t.Fatalf("CSW writes = %d, want %d", countPackets(tgt, 0xA3), writes+1)
	}
	if tgt.CSW&0x7 != 0 {
		t.Fatalf("target CSW size = %#x, want byte", tgt.CSW&0x7)
	}
}

func TestAPPowerRestoredAfterRecovery(t *testing.T) {
	d, tgt := startedDAP(t, nil)
	// Desync once; recovery line-resets the target, dropping AP power, and
	// its post-line-reset init powers the port back up.
	tgt.ForceACKs = []uint32{0b000}
	if _, err := d.ReadPort(swd.DPIDCode); err != nil {
		t.Fatal(err)
	}
	// The next AP access must find the port powered.
	if _, err := d.ReadPort(swd.APCSW); err != nil {
		t.Fatal(err)
	}
	if tgt.CtrlStat&0xA0000000 != 0xA0000000 {
		t.Fatal("access port not re-powered after recovery")
	}
}
