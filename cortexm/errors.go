// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cortexm

import "errors"

// Errors returned by the Host. Match with errors.Is.
var (
	// ErrNotStarted is returned by every target operation before Start or
	// after Stop.
	ErrNotStarted = errors.New("cortexm: host not started")
	// ErrStart is returned when the debug connection cannot be established.
	ErrStart = errors.New("cortexm: start failed")
	// ErrNotHalted is returned by operations that require the core to be in
	// debug state.
	ErrNotHalted = errors.New("cortexm: target not halted")
	// ErrInvalidAddr is returned for misaligned or out-of-range addresses.
	ErrInvalidAddr = errors.New("cortexm: invalid address")
	// ErrNoFreeComparator is returned by AddBreakpoint when every code
	// comparator is armed.
	ErrNoFreeComparator = errors.New("cortexm: no free breakpoint comparator")
	// ErrNoFPB is returned by breakpoint operations when the flash patch
	// unit is missing or its version is unknown.
	ErrNoFPB = errors.New("cortexm: flash patch unit unavailable")
)
