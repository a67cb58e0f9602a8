// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ftdi exposes the DBus pins of an FTDI device as SWD wires.
//
// An FT232H or FT232R in asynchronous bit-bang mode makes a serviceable
// low-speed SWD probe: any two DBus pins can be SWCLK and SWDIO. The
// package requires the FTDI D2XX proprietary driver; see periph.io/x/d2xx
// for the installation story.
package ftdi

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"
)

// bitModeAsyncBitbang sets the DBus to asynchronous bit-bang, where writes
// drive the output pins immediately and the instantaneous pin state can be
// read back at any time.
const bitModeAsyncBitbang = 0x01

// bitModeReset returns all pins to their default function.
const bitModeReset = 0x00

// Dev is an FTDI device in bit-bang mode.
//
// It hands out its DBus lines as gpio pins; driving them from multiple
// goroutines is not supported, which matches the single-owner model of a
// SWD wire.
type Dev struct {
	h    d2xx.Handle
	name string
	dirs byte // per-pin direction, 1 is output
	vals byte // last driven levels
}

// Open opens the i-th FTDI device on the system and puts it in bit-bang
// mode.
func Open(i int) (*Dev, error) {
	if !d2xx.Available {
		return nil, errors.New("ftdi: d2xx driver not available on this system")
	}
	h, e := d2xx.Open(i)
	if e != 0 {
		return nil, toErr("Open", e)
	}
	d := &Dev{h: h, name: fmt.Sprintf("ftdi(%d)", i)}
	if e := h.ResetDevice(); e != 0 {
		_ = d.Close()
		return nil, toErr("ResetDevice", e)
	}
	// Aggressive latency so single-byte reads do not stall a bit cycle.
	if e := h.SetLatencyTimer(1); e != 0 {
		_ = d.Close()
		return nil, toErr("SetLatencyTimer", e)
	}
	if e := h.SetTimeouts(1000, 1000); e != 0 {
		_ = d.Close()
		return nil, toErr("SetTimeouts", e)
	}
	// Everything starts as an input; pins switch to output on first Out.
	if e := h.SetBitMode(0, bitModeAsyncBitbang); e != 0 {
		_ = d.Close()
		return nil, toErr("SetBitMode", e)
	}
	return d, nil
}

func (d *Dev) String() string {
	return d.name
}

// Close resets the pins to their default function and releases the device.
func (d *Dev) Close() error {
	_ = d.h.SetBitMode(0, bitModeReset)
	return toErr("Close", d.h.Close())
}

// Pin returns DBus line n, in [0, 7], as a gpio pin.
func (d *Dev) Pin(n int) gpio.PinIO {
	if n < 0 || n > 7 {
		return gpio.INVALID
	}
	return &devPin{d: d, num: n, mask: 1 << uint(n)}
}

// setDirections pushes the direction mask to the device.
func (d *Dev) setDirections() error {
	return toErr("SetBitMode", d.h.SetBitMode(d.dirs, bitModeAsyncBitbang))
}

// flush drives the current output levels.
func (d *Dev) flush() error {
	var b [1]byte
	b[0] = d.vals
	if _, e := d.h.Write(b[:]); e != 0 {
		return toErr("Write", e)
	}
	return nil
}

// readPins samples the instantaneous level of all 8 lines.
func (d *Dev) readPins() (byte, error) {
	v, e := d.h.GetBitMode()
	if e != 0 {
		return 0, toErr("GetBitMode", e)
	}
	return v, nil
}

// devPin is one DBus line.
type devPin struct {
	d    *Dev
	num  int
	mask byte
}

// String implements conn.Resource.
func (p *devPin) String() string {
	return p.Name()
}

// Halt implements conn.Resource.
func (p *devPin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *devPin) Name() string {
	return fmt.Sprintf("%s.D%d", p.d.name, p.num)
}

// Number implements pin.Pin.
func (p *devPin) Number() int {
	return p.num
}

// Function implements pin.Pin.
func (p *devPin) Function() string {
	if p.d.dirs&p.mask != 0 {
		return "Out"
	}
	return "In"
}

// In implements gpio.PinIn.
//
// The DBus has no configurable pull resistors; pull requests are accepted
// and ignored, which is adequate for SWD where the target keeps the line
// defined during its drive phases.
func (p *devPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("ftdi: edge detection is not supported")
	}
	if p.d.dirs&p.mask == 0 {
		return nil
	}
	p.d.dirs &^= p.mask
	return p.d.setDirections()
}

// Read implements gpio.PinIn.
func (p *devPin) Read() gpio.Level {
	v, err := p.d.readPins()
	if err != nil {
		return gpio.Low
	}
	return gpio.Level(v&p.mask != 0)
}

// WaitForEdge implements gpio.PinIn.
func (p *devPin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *devPin) Pull() gpio.Pull {
	return gpio.Float
}

// DefaultPull implements gpio.PinIn.
func (p *devPin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out implements gpio.PinOut.
func (p *devPin) Out(l gpio.Level) error {
	if l {
		p.d.vals |= p.mask
	} else {
		p.d.vals &^= p.mask
	}
	if p.d.dirs&p.mask == 0 {
		p.d.dirs |= p.mask
		if err := p.d.setDirections(); err != nil {
			return err
		}
	}
	return p.d.flush()
}

// PWM implements gpio.PinOut.
func (p *devPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("ftdi: PWM is not supported")
}

func toErr(s string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return errors.New("ftdi: " + s + ": " + e.String())
}

var _ gpio.PinIO = &devPin{}
