// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// swd-dbg is a minimal interactive debugger for a SWD target.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"periph.io/x/swd"
	"periph.io/x/swd/cortexm"
	"periph.io/x/swd/ftdi"
)

const usage = `commands:
  halt              halt the core
  go                resume the core
  step [n]          single-step n instructions (default 1)
  s                 interactive stepping: space steps, q leaves
  regs              print R0..R12, SP, LR, PC, xPSR
  r <reg>           read one register
  w <reg> <val>     write one register
  rd <addr> [n]     read n words (default 1)
  wr <addr> <val>   write one word
  bp <addr>         set a hardware breakpoint
  bd <addr>         delete a hardware breakpoint
  bl                list hardware breakpoints
  bc                clear all hardware breakpoints
  reset             system reset, core running
  reset-halt        system reset, halted on the first instruction
  q                 quit`

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

func printPC(h *cortexm.Host) {
	pc, err := h.ReadRegister(cortexm.DebugReturnAddress)
	if err != nil {
		fmt.Printf("pc: %s\n", err)
		return
	}
	fmt.Printf("pc=%#08x\n", pc)
}

// interactiveStep owns the terminal in raw mode and steps on every space.
func interactiveStep(h *cortexm.Host) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, old)
	fmt.Printf("space or s steps, q leaves\r\n")
	var b [1]byte
	for {
		if _, err := os.Stdin.Read(b[:]); err != nil {
			return err
		}
		switch b[0] {
		case ' ', 's':
			if err := h.Step(); err != nil {
				fmt.Printf("step: %s\r\n", err)
				continue
			}
			pc, err := h.ReadRegister(cortexm.DebugReturnAddress)
			if err != nil {
				fmt.Printf("pc: %s\r\n", err)
				continue
			}
			fmt.Printf("pc=%#08x\r\n", pc)
		case 'q', 3, 27: // q, ctrl-c, esc
			return nil
		}
	}
}

func run(h *cortexm.Host, line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "q", "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Println(usage)
	case "halt":
		if err := h.Halt(); err != nil {
			return false, err
		}
		printPC(h)
	case "go", "c", "continue":
		return false, h.Continue()
	case "step":
		n := 1
		if len(args) == 2 {
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return false, err
			}
			n = v
		}
		for i := 0; i < n; i++ {
			if err := h.Step(); err != nil {
				return false, err
			}
		}
		printPC(h)
	case "s":
		return false, interactiveStep(h)
	case "regs":
		for r := cortexm.R0; r <= cortexm.XPSR; r++ {
			v, err := h.ReadRegister(r)
			if err != nil {
				return false, err
			}
			fmt.Printf("%-4s %#08x\n", r, v)
		}
	case "r":
		if len(args) != 2 {
			return false, errors.New("usage: r <reg>")
		}
		reg, ok := cortexm.RegisterByName(args[1])
		if !ok {
			return false, fmt.Errorf("unknown register %q", args[1])
		}
		v, err := h.ReadRegister(reg)
		if err != nil {
			return false, err
		}
		fmt.Printf("%s = %#08x\n", reg, v)
	case "w":
		if len(args) != 3 {
			return false, errors.New("usage: w <reg> <val>")
		}
		reg, ok := cortexm.RegisterByName(args[1])
		if !ok {
			return false, fmt.Errorf("unknown register %q", args[1])
		}
		v, err := parseU32(args[2])
		if err != nil {
			return false, err
		}
		return false, h.WriteRegister(reg, v)
	case "rd":
		if len(args) < 2 || len(args) > 3 {
			return false, errors.New("usage: rd <addr> [n]")
		}
		addr, err := parseU32(args[1])
		if err != nil {
			return false, err
		}
		n := 1
		if len(args) == 3 {
			if n, err = strconv.Atoi(args[2]); err != nil {
				return false, err
			}
		}
		buf := make([]uint32, n)
		read, err := h.ReadWords(addr, buf)
		for i := 0; i < read; i++ {
			fmt.Printf("%08x  %08x\n", addr+4*uint32(i), buf[i])
		}
		return false, err
	case "wr":
		if len(args) != 3 {
			return false, errors.New("usage: wr <addr> <val>")
		}
		addr, err := parseU32(args[1])
		if err != nil {
			return false, err
		}
		v, err := parseU32(args[2])
		if err != nil {
			return false, err
		}
		return false, h.WriteWord(addr, v)
	case "bp":
		if len(args) != 2 {
			return false, errors.New("usage: bp <addr>")
		}
		addr, err := parseU32(args[1])
		if err != nil {
			return false, err
		}
		return false, h.AddBreakpoint(addr)
	case "bd":
		if len(args) != 2 {
			return false, errors.New("usage: bd <addr>")
		}
		addr, err := parseU32(args[1])
		if err != nil {
			return false, err
		}
		return false, h.RemoveBreakpoint(addr)
	case "bl":
		addrs, err := h.Breakpoints()
		for _, a := range addrs {
			fmt.Printf("%#08x\n", a)
		}
		return false, err
	case "bc":
		return false, h.ClearBreakpoints()
	case "reset":
		return false, h.Reset()
	case "reset-halt":
		if err := h.ResetHalt(); err != nil {
			return false, err
		}
		printPC(h)
	default:
		fmt.Printf("unknown command %q, try help\n", args[0])
	}
	return false, nil
}

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
	fmt.Printf("attached, IDCODE %#08x; try help\n", h.DAP().IDCode())

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("swd> ")
		if !in.Scan() {
			return in.Err()
		}
		done, err := run(h, in.Text())
		if err != nil {
			fmt.Printf("error: %s\n", err)
		}
		if done {
			return nil
		}
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "swd-dbg: %s.\n", err)
		os.Exit(1)
	}
}
