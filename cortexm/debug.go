// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build periph_swd_debug
// +build periph_swd_debug

package cortexm

import "log"

// logf is enabled when the build tag periph_swd_debug is specified.
func logf(fmt string, v ...interface{}) {
	log.Printf(fmt, v...)
}
