// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Wire signalling:
// ARM Debug Interface Architecture Specification ADIv5.0 to ADIv5.2,
// IHI0031, chapter B4 (Serial Wire Debug protocol).

package swd

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/cpu"
)

// Driver is the bit-serial transport capability the DAP is built on.
//
// All operations are synchronous and infallible; the underlying pin driver
// is assumed to always complete. Bits travel least significant bit first in
// both directions.
type Driver interface {
	// WriteBits shifts out the low n bits of data on SWDIO, n in [1, 32].
	WriteBits(data uint32, n int)
	// ReadBits samples n bits from SWDIO, n in [1, 32]. The bit sampled on
	// cycle i lands at position i; the remaining high bits are zero.
	ReadBits(n int) uint32
	// Turnaround runs one dummy clock cycle to reverse the SWDIO driver
	// between host-drive and target-drive phases.
	Turnaround()
	// IdleShort clocks two zero bits with the host driving.
	IdleShort()
	// IdleLong clocks eight zero bits with the host driving.
	IdleLong()
	// LineReset holds SWDIO high for 64 clock cycles, forcing the target DAP
	// into the known line-reset state.
	LineReset()
	// JTAGToSWD sends the JTAG-to-SWD selection sequence: line reset, the
	// 16-bit 0xE79E key, another line reset and an idle period.
	JTAGToSWD()
}

// jtagToSWDKey is the 16-bit selection sequence that switches a SWJ-DP from
// its JTAG to its SWD interface, sent LSB first.
const jtagToSWDKey = 0xE79E

// LineDriver implements Driver by bit-banging two GPIO lines.
//
// The clock is driven for every bit in both directions; data is launched
// while SWCLK is high and sampled after the falling edge, with a
// programmable half-cycle hold in between. ADIv5 allows half-periods
// anywhere between 10ns and 500µs, so any frequency a GPIO driver can
// sustain is acceptable.
type LineDriver struct {
	clk       gpio.PinOut
	dio       gpio.PinIO
	halfCycle time.Duration
}

// NewLineDriver returns a Driver bit-banging clk and dio at roughly f.
//
// dio must support both directions; a pull-down is requested whenever it is
// configured as an input, per the SWD electrical requirements.
func NewLineDriver(clk gpio.PinOut, dio gpio.PinIO, f physic.Frequency) (*LineDriver, error) {
	if clk == nil || dio == nil {
		panic("swd: nil pin passed to NewLineDriver")
	}
	if f <= 0 {
		return nil, errors.New("swd: clock frequency must be positive")
	}
	if err := clk.Out(gpio.Low); err != nil {
		return nil, err
	}
	if err := dio.Out(gpio.High); err != nil {
		return nil, err
	}
	return &LineDriver{
		clk:       clk,
		dio:       dio,
		// f is in micro-hertz.
		halfCycle: time.Duration(int64(physic.Hertz) * int64(time.Second) / int64(f) / 2),
	}, nil
}

// WriteBits implements Driver.
func (l *LineDriver) WriteBits(data uint32, n int) {
	// Take the line back as an output. High is the bus idle level.
	_ = l.dio.Out(gpio.High)
	for i := 0; i < n; i++ {
		_ = l.clk.Out(gpio.High)
		l.hold()
		_ = l.dio.Out(gpio.Level(data>>uint(i)&1 != 0))
		_ = l.clk.Out(gpio.Low)
		l.hold()
	}
}

// ReadBits implements Driver.
func (l *LineDriver) ReadBits(n int) uint32 {
	_ = l.dio.In(gpio.PullDown, gpio.NoEdge)
	var data uint32
	for i := 0; i < n; i++ {
		_ = l.clk.Out(gpio.High)
		l.hold()
		_ = l.clk.Out(gpio.Low)
		l.hold()
		if l.dio.Read() {
			data |= 1 << uint(i)
		}
	}
	return data
}

// Turnaround implements Driver.
func (l *LineDriver) Turnaround() {
	_ = l.clk.Out(gpio.High)
	l.hold()
	_ = l.clk.Out(gpio.Low)
	l.hold()
}

// IdleShort implements Driver.
func (l *LineDriver) IdleShort() {
	l.WriteBits(0, 2)
}

// IdleLong implements Driver.
func (l *LineDriver) IdleLong() {
	l.WriteBits(0, 8)
}

// LineReset implements Driver.
//
// The protocol asks for at least 50 consecutive high bits; two full 32-bit
// runs keep the loop trivial.
func (l *LineDriver) LineReset() {
	l.WriteBits(0xFFFFFFFF, 32)
	l.WriteBits(0xFFFFFFFF, 32)
}

// JTAGToSWD implements Driver.
func (l *LineDriver) JTAGToSWD() {
	l.LineReset()
	l.WriteBits(jtagToSWDKey, 16)
	l.LineReset()
	l.IdleShort()
}

// hold busy-waits half a clock period. Sleeping would blow way past the
// 500µs ceiling on slow schedulers.
func (l *LineDriver) hold() {
	cpu.Nanospin(l.halfCycle)
}

var _ Driver = &LineDriver{}
