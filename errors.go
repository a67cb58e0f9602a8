// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package swd

import "errors"

// Errors returned by the DAP. Match with errors.Is; transfer errors may be
// wrapped with additional context.
var (
	// ErrNotStarted is returned by port operations before Start, after Stop,
	// or after the DAP stopped itself on an unrecoverable wire error.
	ErrNotStarted = errors.New("swd: dap not started")
	// ErrStart is returned when the target cannot be brought up: IDCODE is
	// unreadable or the access port does not acknowledge power-up.
	ErrStart = errors.New("swd: start failed")
	// ErrInvalidPortOp is returned when reading a write-only port or writing
	// a read-only port.
	ErrInvalidPortOp = errors.New("swd: operation not supported by port")
	// ErrUndefinedPort is returned for ports blocked by
	// Opts.BlockUndefinedPorts.
	ErrUndefinedPort = errors.New("swd: port disabled by configuration")
	// ErrTransfer is returned when a transfer still fails after the retry
	// budget is exhausted.
	ErrTransfer = errors.New("swd: transfer failed")
	// ErrAPFault is returned on the access port operation following a sticky
	// error; the sticky flag is cleared in the process.
	ErrAPFault = errors.New("swd: access port transaction faulted")
)
