// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package swd drives the ARM Serial Wire Debug protocol over two GPIO lines.
//
// SWD is the 2-wire debug transport defined by the ARM Debug Interface
// Architecture (ADIv5). The package is split in two layers: LineDriver turns
// a pair of gpio pins (SWCLK, SWDIO) into a bit-serial transport, and DAP
// implements the Debug Access Port on top of it: packet framing, ACK
// handling, WAIT/FAULT retries, line-reset resynchronization and the
// SELECT/CSW register bookkeeping needed for Access Port transfers.
//
// Higher level ARMv7-M debugging (halt, step, memory, core registers,
// hardware breakpoints) lives in package cortexm.
//
// # Wiring
//
// SWCLK is an output driven by the host. SWDIO is bidirectional: the host
// drives it when sending a request or write data, and samples it during
// acknowledge and read data phases. A pull-down on SWDIO while configured as
// input is requested from the gpio driver; see the ADIv5 specification for
// the electrical requirements.
package swd
