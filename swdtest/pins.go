// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swdtest

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin implements gpio.PinIO as a recording fake for line driver tests.
//
// Every Out level is appended to Outs; Read pops from ReadSeq and returns
// Low once the script runs dry. Modify the exported members to script
// hardware behavior.
type Pin struct {
	N   string
	Num int

	L       gpio.Level   // current output level
	P       gpio.Pull    // last pull requested by In
	Outs    []gpio.Level // all levels ever driven
	ReadSeq []gpio.Level // levels returned by successive Reads
	Ins     int          // number of In calls
}

// String implements conn.Resource.
func (p *Pin) String() string {
	return p.N
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.N
}

// Number implements pin.Pin.
func (p *Pin) Number() int {
	return p.Num
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "SWD"
}

// In implements gpio.PinIn.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.P = pull
	p.Ins++
	return nil
}

// Read implements gpio.PinIn.
func (p *Pin) Read() gpio.Level {
	if len(p.ReadSeq) == 0 {
		return gpio.Low
	}
	l := p.ReadSeq[0]
	p.ReadSeq = p.ReadSeq[1:]
	return l
}

// WaitForEdge implements gpio.PinIn.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	return false
}

// Pull implements gpio.PinIn.
func (p *Pin) Pull() gpio.Pull {
	return p.P
}

// DefaultPull implements gpio.PinIn.
func (p *Pin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	p.L = l
	p.Outs = append(p.Outs, l)
	return nil
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(d gpio.Duty, f physic.Frequency) error {
	return nil
}

var _ gpio.PinIO = &Pin{}
