// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions for the tracing
// engine. The engine targets x86-64 user-mode only; the trap byte below is
// inlined rather than abstracted since no second architecture is planned.
package arch

import (
	"encoding/binary"
)

// BreakpointSize is the size, in bytes, of a software breakpoint trap
// instruction on AMD64: the single-byte INT3 opcode.
const BreakpointSize = 1

// BreakpointInstr is the INT3 encoding.
const BreakpointInstr = byte(0xCC)

// AMD64 describes the one architecture the tracing engine supports.
var AMD64 = Architecture{
	IntSize:     8,
	PointerSize: 8,
	ByteOrder:   binary.LittleEndian,
}

// Architecture holds the architecture-specific details needed to decode
// register-width values read out of a tracee.
type Architecture struct {
	IntSize     int
	PointerSize int
	ByteOrder   binary.ByteOrder
}

func (a *Architecture) Uint(buf []byte) uint64 {
	if len(buf) != a.PointerSize {
		panic("rekit/arch: bad word size")
	}
	return a.ByteOrder.Uint64(buf)
}

func (a *Architecture) PutUint(buf []byte, v uint64) {
	if len(buf) != a.PointerSize {
		panic("rekit/arch: bad word size")
	}
	a.ByteOrder.PutUint64(buf, v)
}
