// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// swd-info attaches to a SWD target and prints what it finds.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/swd"
	"periph.io/x/swd/cortexm"
	"periph.io/x/swd/ftdi"
)

func mainImpl() error {
	clkName := flag.String("clk", "", "GPIO pin name for SWCLK")
	dioName := flag.String("dio", "", "GPIO pin name for SWDIO")
	ftdiIndex := flag.Int("ftdi", -1, "use the i-th FTDI device instead of named GPIOs")
	ftdiClk := flag.Int("ftdi-clk", 0, "FTDI DBus line for SWCLK")
	ftdiDio := flag.Int("ftdi-dio", 1, "FTDI DBus line for SWDIO")
	f := 100 * physic.KiloHertz
	flag.Var(&f, "f", "SWCLK frequency")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, use -help")
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

	fmt.Printf("IDCODE:      %#08x\n", h.DAP().IDCode())
	stat, err := h.DAP().ReadPort(swd.DPCtrlStat)
	if err != nil {
		return err
	}
	fmt.Printf("CTRL/STAT:   %#08x\n", stat)
	if h.DAP().LittleEndian() {
		fmt.Printf("Endianness:  little\n")
	} else {
		fmt.Printf("Endianness:  big\n")
	}
	halted, err := h.Halted()
	if err != nil {
		return err
	}
	fmt.Printf("Halted:      %t\n", halted)
	fmt.Printf("FPB:         %s, %d code + %d literal comparators\n", h.FPB(), h.BreakpointCount(), h.LiteralCount())
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "swd-info: %s.\n", err)
		os.Exit(1)
	}
}
