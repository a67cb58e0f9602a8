// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd

import "fmt"

// Target acknowledge values, one-hot, LSB first on the wire. Anything else
// means the host and target lost packet synchronization.
const (
	ackOK    = 0b001
	ackWait  = 0b010
	ackFault = 0b100
)

// DP register field values used by the engine.
const (
	// ABORT
	abortAllClear  = 0x1F // ORUNERRCLR | WDERRCLR | STKERRCLR | STKCMPCLR | DAPABORT
	abortWDERRCLR  = 0x08
	abortSTKERRCLR = 0x04

	// CTRL/STAT
	ctrlStatPowerReq  = 0x50000000 // CDBGPWRUPREQ | CSYSPWRUPREQ
	ctrlStatPowerAck  = 0xA0000000 // CDBGPWRUPACK | CSYSPWRUPACK
	ctrlStatWDATAERR  = 0x80
	ctrlStatSTICKYERR = 0x20

	// SELECT
	selectCtrlSel    = 0x01
	selectAPBankMask = 0xF0

	// CSW
	cswSizeMask = 0x7
	cswIncMask  = 0x30
	cswIncOn    = 0x10

	// CFG
	cfgBigEndian = 0x1
)

// DataSize is a CSW.Size transfer width.
type DataSize uint32

const (
	// SizeByte selects 8-bit DRW transfers.
	SizeByte DataSize = 0b000
	// SizeWord selects 32-bit DRW transfers.
	SizeWord DataSize = 0b010
)

// cacheUnknown marks a SELECT or CSW field whose on-target value has not
// been observed since the last reset. The first use always writes.
const cacheUnknown = 0xFFFFFFFF

// DefaultRetryCount bounds the WAIT/FAULT retries of a single port
// operation.
const DefaultRetryCount = 10

// Opts configures a DAP.
//
// The zero value is the default configuration.
type Opts struct {
	// NoJTAGSwitch skips the JTAG-to-SWD selection sequence during line
	// resets. Only set it for targets with a pure SW-DP that misparses the
	// key.
	NoJTAGSwitch bool
	// BlockUndefinedPorts refuses access to AP_DB0..3 and AP_BASE. On some
	// memory systems a stray banked-data access faults the bus matrix, so
	// cautious callers can fence them off.
	BlockUndefinedPorts bool
	// RetryCount overrides DefaultRetryCount when at least 1.
	RetryCount int
}

func (o *Opts) retries() int {
	if o.RetryCount >= 1 {
		return o.RetryCount
	}
	return DefaultRetryCount
}

// DAP drives the Debug Access Port of one SWD target.
//
// A DAP owns its Driver for the whole Start..Stop window and is not safe for
// concurrent use; the wire has a single owner by construction.
type DAP struct {
	drv  Driver
	opts Opts

	stopped    bool
	recovering bool
	inFault    bool

	idcode       uint32
	apPowered    bool
	apErr        bool
	littleEndian bool

	// Write-through caches of the SELECT and CSW fields, used to elide
	// redundant writes. cacheUnknown until first written.
	banksel uint32
	ctrlsel uint32
	cswSize uint32
	cswInc  uint32
}

// New returns a stopped DAP using drv. Call Start before any port
// operation.
func New(drv Driver, opts *Opts) *DAP {
	if drv == nil {
		panic("swd: nil driver passed to New")
	}
	d := &DAP{drv: drv, stopped: true, littleEndian: true}
	if opts != nil {
		d.opts = *opts
	}
	d.invalidate()
	return d
}

// invalidate forgets everything known about on-target register state. Must
// be called whenever the target may have reset.
func (d *DAP) invalidate() {
	d.apPowered = false
	d.banksel = cacheUnknown
	d.ctrlsel = cacheUnknown
	d.cswSize = cacheUnknown
	d.cswInc = cacheUnknown
}

// Stopped reports whether the DAP refuses port operations, either because
// Start was never called or because an unrecoverable wire error stopped it.
func (d *DAP) Stopped() bool {
	return d.stopped
}

// IDCode returns the DPIDR value read during the last successful Start or
// line-reset resynchronization.
func (d *DAP) IDCode() uint32 {
	return d.idcode
}

// LittleEndian reports the data endianness of the memory system behind the
// access port, from AP CFG.
func (d *DAP) LittleEndian() bool {
	return d.littleEndian
}

// Start brings the wire up: line reset (with the JTAG-to-SWD key unless
// disabled), mandatory IDCODE read, access port power-up and sticky error
// clearing. The DAP accepts port operations once Start returns nil.
func (d *DAP) Start() error {
	logf("swd: starting DAP")
	d.stopped = false
	d.invalidate()
	d.resetLine()
	if err := d.setup(); err != nil {
		d.stopped = true
		return err
	}
	// CFG is read-only; a failure here is survivable and almost always means
	// little endian anyway.
	if cfg, err := d.ReadPort(APCFG); err == nil {
		d.littleEndian = cfg&cfgBigEndian == 0
	} else {
		logf("swd: CFG unreadable, assuming little endian: %v", err)
		d.littleEndian = true
	}
	return nil
}

// Stop detaches from the target. The target keeps running (or stays
// halted); only the host side shuts down.
func (d *DAP) Stop() {
	d.stopped = true
}

// resetLine replays the hardware reset sequence and forgets all cached
// target state.
func (d *DAP) resetLine() {
	if d.opts.NoJTAGSwitch {
		d.drv.LineReset()
		d.drv.IdleShort()
	} else {
		d.drv.JTAGToSWD()
	}
	d.invalidate()
}

// setup performs the post-line-reset initialization: the IDCODE read that
// every reset must be followed by, then access port power-up.
func (d *DAP) setup() error {
	// The IDCODE read is done with raw wire operations: no retry, no
	// recovery. At this point there may be nothing on the other end of the
	// wire at all.
	d.drv.WriteBits(uint32(packet(DPIDCode, true)), 8)
	d.drv.Turnaround()
	ack := d.drv.ReadBits(3)
	data := d.drv.ReadBits(32)
	parity := d.drv.ReadBits(1)
	d.drv.Turnaround()
	if ack != ackOK {
		return fmt.Errorf("%w: IDCODE not acknowledged (ack %#b)", ErrStart, ack)
	}
	if dataParity(data) != parity {
		return fmt.Errorf("%w: IDCODE parity mismatch", ErrStart)
	}
	d.idcode = data
	logf("swd: IDCODE = %#08x", data)

	if err := d.powerUpAP(); err != nil {
		return err
	}

	// Start from a clean sticky error state.
	if err := d.WritePort(DPAbort, abortAllClear); err != nil {
		logf("swd: could not clear sticky errors: %v", err)
	}
	return nil
}

// powerUpAP requests debug and system power and waits for both
// acknowledges.
func (d *DAP) powerUpAP() error {
	logf("swd: powering up access port")
	if err := d.WritePort(DPCtrlStat, ctrlStatPowerReq); err != nil {
		return fmt.Errorf("%w: access port power request failed", ErrStart)
	}
	d.drv.IdleShort()
	stat, err := d.ReadPort(DPCtrlStat)
	if err != nil {
		return fmt.Errorf("%w: access port power status unreadable", ErrStart)
	}
	if stat&ctrlStatPowerAck != ctrlStatPowerAck {
		return fmt.Errorf("%w: access port power-up not acknowledged (CTRL/STAT %#08x)", ErrStart, stat)
	}
	d.apPowered = true
	return nil
}

// ReadPort reads a DP or AP register.
//
// AP reads are posted: the engine issues the AP request, discards the stale
// result and collects the real value through RDBUFF, so one ReadPort is one
// complete transaction from the caller's point of view.
func (d *DAP) ReadPort(p Port) (uint32, error) {
	if d.stopped {
		return 0, ErrNotStarted
	}
	if !p.CanRead() {
		return 0, fmt.Errorf("%w: %s is write-only", ErrInvalidPortOp, p)
	}
	if err := d.checkBlocked(p); err != nil {
		return 0, err
	}
	if p.IsDP() {
		return d.readDP(p)
	}
	return d.readAP(p)
}

// WritePort writes a DP or AP register.
func (d *DAP) WritePort(p Port, data uint32) error {
	if d.stopped {
		return ErrNotStarted
	}
	if !p.CanWrite() {
		return fmt.Errorf("%w: %s is read-only", ErrInvalidPortOp, p)
	}
	if err := d.checkBlocked(p); err != nil {
		return err
	}
	if p.IsDP() {
		return d.writeDP(p, data)
	}
	return d.writeAP(p, data)
}

func (d *DAP) checkBlocked(p Port) error {
	if !d.opts.BlockUndefinedPorts {
		return nil
	}
	switch p {
	case APDB0, APDB1, APDB2, APDB3, APBase:
		return fmt.Errorf("%w: %s", ErrUndefinedPort, p)
	}
	return nil
}

// readDP handles the CTRLSEL overlay: WCR shares DP offset 0x4 with
// CTRL/STAT and is only visible while SELECT.CTRLSEL is 1. CTRL/STAT is
// always restored, even when the inner transfer fails, so the fault paths
// keep working.
func (d *DAP) readDP(p Port) (uint32, error) {
	if p == DPWCR {
		if err := d.setCtrlSel(1); err != nil {
			return 0, err
		}
		defer func() {
			if err := d.setCtrlSel(0); err != nil {
				logf("swd: could not restore CTRLSEL: %v", err)
			}
		}()
	}
	return d.readPacket(packet(p, true))
}

func (d *DAP) writeDP(p Port, data uint32) error {
	if p == DPWCR {
		if err := d.setCtrlSel(1); err != nil {
			return err
		}
		defer func() {
			if err := d.setCtrlSel(0); err != nil {
				logf("swd: could not restore CTRLSEL: %v", err)
			}
		}()
	}
	return d.writePacket(packet(p, false), data)
}

func (d *DAP) readAP(p Port) (uint32, error) {
	if err := d.prepareAP(p); err != nil {
		return 0, err
	}
	// First result is whatever the previous AP transaction posted; throw it
	// away and collect the real value from RDBUFF.
	if _, err := d.readPacket(packet(p, true)); err != nil {
		return 0, err
	}
	data, err := d.readPacket(packet(DPRDBuff, true))
	if err != nil {
		return 0, err
	}
	if d.apErr {
		// A sticky error was caught while this transaction was in flight;
		// RDBUFF contents are not trustworthy.
		d.apErr = false
		return 0, ErrAPFault
	}
	return data, nil
}

func (d *DAP) writeAP(p Port, data uint32) error {
	if err := d.prepareAP(p); err != nil {
		return err
	}
	if err := d.writePacket(packet(p, false), data); err != nil {
		return err
	}
	if d.apErr {
		d.apErr = false
		return ErrAPFault
	}
	// The AP needs a few clocks after the ACK to commit the transfer; two
	// short idle periods are enough in practice.
	d.drv.IdleShort()
	d.drv.IdleShort()
	return nil
}

// prepareAP makes sure the access port is powered and the right register
// bank is selected.
func (d *DAP) prepareAP(p Port) error {
	if !d.apPowered {
		// The AP loses power on line reset; re-arm it transparently.
		if err := d.powerUpAP(); err != nil {
			return err
		}
	}
	return d.setBankSel(uint32(p.bank()))
}

// setBankSel updates SELECT.APBANKSEL, skipping the write when the cached
// value already matches.
func (d *DAP) setBankSel(bank uint32) error {
	if bank == d.banksel {
		return nil
	}
	prev := d.banksel
	d.banksel = bank
	if err := d.updateSelect(); err != nil {
		d.banksel = prev
		return err
	}
	return nil
}

// setCtrlSel updates SELECT.CTRLSEL, skipping the write when the cached
// value already matches.
func (d *DAP) setCtrlSel(sel uint32) error {
	if sel == d.ctrlsel {
		return nil
	}
	prev := d.ctrlsel
	d.ctrlsel = sel
	if err := d.updateSelect(); err != nil {
		d.ctrlsel = prev
		return err
	}
	return nil
}

func (d *DAP) updateSelect() error {
	var sel uint32
	if d.banksel != cacheUnknown {
		sel |= d.banksel & selectAPBankMask
	}
	if d.ctrlsel != cacheUnknown {
		sel |= d.ctrlsel & selectCtrlSel
	}
	return d.writePacket(packet(DPSelect, false), sel)
}

// SetDataSize configures CSW for the given DRW transfer width. Redundant
// calls are elided through the cache.
func (d *DAP) SetDataSize(sz DataSize) error {
	if uint32(sz) == d.cswSize {
		return nil
	}
	if err := d.writeCSW(uint32(sz), cswSizeMask); err != nil {
		return err
	}
	d.cswSize = uint32(sz)
	return nil
}

// SetAutoIncrement configures CSW single auto-increment of TAR after each
// DRW access. Redundant calls are elided through the cache.
func (d *DAP) SetAutoIncrement(on bool) error {
	var bits uint32
	if on {
		bits = cswIncOn
	}
	if bits == d.cswInc {
		return nil
	}
	if err := d.writeCSW(bits, cswIncMask); err != nil {
		return err
	}
	d.cswInc = bits
	return nil
}

// writeCSW read-modify-writes the masked CSW field.
func (d *DAP) writeCSW(bits, mask uint32) error {
	csw, err := d.ReadPort(APCSW)
	if err != nil {
		return err
	}
	return d.WritePort(APCSW, csw&^mask|bits)
}

// readPacket runs one read transaction with the full WAIT/FAULT/error
// recovery choreography, bounded by the retry budget.
func (d *DAP) readPacket(pkt uint8) (uint32, error) {
	for retry := d.opts.retries(); retry > 0; retry-- {
		if d.stopped {
			return 0, ErrNotStarted
		}
		d.drv.WriteBits(uint32(pkt), 8)
		d.drv.Turnaround()
		switch ack := d.drv.ReadBits(3); ack {
		case ackOK:
			data := d.drv.ReadBits(32)
			parity := d.drv.ReadBits(1)
			d.drv.Turnaround()
			if dataParity(data) != parity {
				logf("swd: read parity mismatch on %#02x, retrying", pkt)
				continue
			}
			return data, nil
		case ackWait:
			logf("swd: WAIT on %#02x, retrying", pkt)
			d.drv.Turnaround()
		case ackFault:
			logf("swd: FAULT on %#02x", pkt)
			d.drv.Turnaround()
			d.handleFault()
		default:
			logf("swd: illegal ACK %#b on %#02x", ack, pkt)
			if err := d.handleError(); err != nil {
				return 0, err
			}
		}
	}
	return 0, fmt.Errorf("%w: read %#02x retry budget exhausted", ErrTransfer, pkt)
}

// writePacket runs one write transaction. After an acknowledged data phase
// the engine reads CTRL/STAT back and retries if the target flagged a write
// parity error.
func (d *DAP) writePacket(pkt uint8, data uint32) error {
	for retry := d.opts.retries(); retry > 0; retry-- {
		if d.stopped {
			return ErrNotStarted
		}
		d.drv.WriteBits(uint32(pkt), 8)
		d.drv.Turnaround()
		ack := d.drv.ReadBits(3)
		d.drv.Turnaround()
		switch ack {
		case ackOK:
			d.drv.WriteBits(data, 32)
			d.drv.WriteBits(dataParity(data), 1)
			stat, _, ok := d.transferRead(packet(DPCtrlStat, true))
			if !ok {
				// Cannot tell whether the write landed; retry is the safe
				// option for every idempotent DP/AP register write.
				continue
			}
			if stat&ctrlStatWDATAERR != 0 {
				logf("swd: WDATAERR after write %#02x, retrying", pkt)
				continue
			}
			return nil
		case ackWait:
			logf("swd: WAIT on %#02x, retrying", pkt)
		case ackFault:
			logf("swd: FAULT on %#02x", pkt)
			d.handleFault()
		default:
			logf("swd: illegal ACK %#b on %#02x", ack, pkt)
			if err := d.handleError(); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: write %#02x retry budget exhausted", ErrTransfer, pkt)
}

// transferRead is a single read attempt with no retry and no recovery. The
// fault and error handlers are built on it so they cannot re-enter
// themselves through the regular packet paths.
func (d *DAP) transferRead(pkt uint8) (data uint32, ack uint32, ok bool) {
	d.drv.WriteBits(uint32(pkt), 8)
	d.drv.Turnaround()
	ack = d.drv.ReadBits(3)
	if ack != ackOK {
		d.drv.Turnaround()
		return 0, ack, false
	}
	data = d.drv.ReadBits(32)
	parity := d.drv.ReadBits(1)
	d.drv.Turnaround()
	if dataParity(data) != parity {
		return 0, ack, false
	}
	return data, ack, true
}

// transferWrite is a single write attempt with no retry, no recovery and no
// WDATAERR readback.
func (d *DAP) transferWrite(pkt uint8, data uint32) bool {
	d.drv.WriteBits(uint32(pkt), 8)
	d.drv.Turnaround()
	ack := d.drv.ReadBits(3)
	d.drv.Turnaround()
	if ack != ackOK {
		return false
	}
	d.drv.WriteBits(data, 32)
	d.drv.WriteBits(dataParity(data), 1)
	return true
}

// handleFault inspects CTRL/STAT and clears whichever sticky flag caused
// the FAULT. A sticky AP error is remembered so the enclosing AP operation
// reports it.
func (d *DAP) handleFault() {
	if d.inFault {
		return
	}
	d.inFault = true
	defer func() { d.inFault = false }()

	stat, _, ok := d.transferRead(packet(DPCtrlStat, true))
	if !ok {
		logf("swd: CTRL/STAT unreadable in fault handler")
		return
	}
	switch {
	case stat&ctrlStatWDATAERR != 0:
		logf("swd: fault cause: write data parity error")
		d.transferWrite(packet(DPAbort, false), abortWDERRCLR)
	case stat&ctrlStatSTICKYERR != 0:
		logf("swd: fault cause: access port transaction error")
		d.transferWrite(packet(DPAbort, false), abortSTKERRCLR)
		d.apErr = true
	default:
		logf("swd: fault cause unknown (CTRL/STAT %#08x)", stat)
	}
}

// handleError recovers from a loss of packet synchronization: line reset,
// then the post-line-reset initialization. On success the caller retries
// the original transfer; on failure the DAP stops itself for good.
func (d *DAP) handleError() error {
	if d.recovering {
		// Desynced again while resynchronizing; the target is gone.
		d.stopped = true
		return fmt.Errorf("%w: target lost during resync", ErrTransfer)
	}
	d.recovering = true
	defer func() { d.recovering = false }()

	logf("swd: protocol error, resetting line")
	d.resetLine()
	if err := d.setup(); err != nil {
		logf("swd: resync failed, stopping: %v", err)
		d.stopped = true
		return fmt.Errorf("%w: resync failed", ErrTransfer)
	}
	logf("swd: target resynced, retrying dropped packet")
	return nil
}
