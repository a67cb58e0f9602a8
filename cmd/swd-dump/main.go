// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// swd-dump halts a SWD target and hex-dumps a range of its memory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/swd"
	"periph.io/x/swd/cortexm"
	"periph.io/x/swd/ftdi"
)

func dump(w *os.File, base uint32, b []byte) {
	for i := 0; i < len(b); i += 16 {
		end := i + 16
		if end > len(b) {
			end = len(b)
		}
		fmt.Fprintf(w, "%08x ", base+uint32(i))
		for j := i; j < end; j++ {
			fmt.Fprintf(w, " %02x", b[j])
		}
		fmt.Fprintf(w, "\n")
	}
}

func mainImpl() error {
	clkName := flag.String("clk", "", "GPIO pin name for SWCLK")
	dioName := flag.String("dio", "", "GPIO pin name for SWDIO")
	ftdiIndex := flag.Int("ftdi", -1, "use the i-th FTDI device instead of named GPIOs")
	ftdiClk := flag.Int("ftdi-clk", 0, "FTDI DBus line for SWCLK")
	ftdiDio := flag.Int("ftdi-dio", 1, "FTDI DBus line for SWDIO")
	f := 100 * physic.KiloHertz
	flag.Var(&f, "f", "SWCLK frequency")
	run := flag.Bool("run", false, "leave the core running instead of halting around the dump")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 2 {
		return errors.New("specify the base address and the length in bytes")
	}
	base, err := strconv.ParseUint(flag.Args()[0], 0, 32)
	if err != nil {
		return err
	}
	length, err := strconv.ParseUint(flag.Args()[1], 0, 32)
	if err != nil {
		return err
	}

	var clk gpio.PinOut
	var dio gpio.PinIO
	if *ftdiIndex >= 0 {
		d, err := ftdi.Open(*ftdiIndex)
		if err != nil {
			return err
		}
		defer d.Close()
		clk = d.Pin(*ftdiClk)
		dio = d.Pin(*ftdiDio)
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		if *clkName == "" || *dioName == "" {
			return errors.New("specify both -clk and -dio, or -ftdi")
		}
		if clk = gpioreg.ByName(*clkName); clk == nil {
			return fmt.Errorf("no such pin %q", *clkName)
		}
		if dio = gpioreg.ByName(*dioName); dio == nil {
			return fmt.Errorf("no such pin %q", *dioName)
		}
	}

	ld, err := swd.NewLineDriver(clk, dio, f)
	if err != nil {
		return err
	}
	h := cortexm.New(swd.New(ld, nil))
	if err := h.Start(); err != nil {
		return err
	}
	defer h.Stop()

	if !*run {
		if err := h.Halt(); err != nil {
			return err
		}
		defer func() {
			if err := h.Continue(); err != nil {
				log.Printf("could not resume the core: %s", err)
			}
		}()
	}

	b := make([]byte, length)
	n, err := h.ReadBytes(uint32(base), b)
	dump(os.Stdout, uint32(base), b[:n])
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "swd-dump: %s.\n", err)
		os.Exit(1)
	}
}
