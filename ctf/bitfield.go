// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"errors"
)

var errPastEOF = errors.New("read past end of packet content")

// readBits extracts an n-bit (n ≤ 64) unsigned field starting at the
// given bit offset (0 = first bit of buf) from buf, honoring order.
//
// Bits within a byte are numbered most-significant first, the
// convention every CTF reader this package's authors have seen uses.
// For a byte-aligned, whole-byte-width field declared little-endian,
// the covered bytes are byte-swapped before extraction so multi-byte
// integers read the way encoding/binary.LittleEndian would decode
// them; every other case (big-endian fields, and the rare sub-byte
// field) extracts directly as a single big MSB-first bitstream.
func readBits(buf []byte, bitOffset, n int, order binary.ByteOrder) uint64 {
	byteOff := bitOffset / 8
	bitShift := bitOffset % 8
	nbytes := (bitShift + n + 7) / 8
	window := buf[byteOff : byteOff+nbytes]

	if order == binary.LittleEndian && bitShift == 0 && n%8 == 0 {
		var v uint64
		for i := len(window) - 1; i >= 0; i-- {
			v = v<<8 | uint64(window[i])
		}
		return v
	}

	var v uint64
	for _, b := range window {
		v = v<<8 | uint64(b)
	}
	total := nbytes * 8
	v >>= uint(total - bitShift - n)
	if n < 64 {
		v &= (uint64(1) << uint(n)) - 1
	}
	return v
}

// signExtend sign-extends the low n bits of v.
func signExtend(v uint64, n int) int64 {
	if n >= 64 {
		return int64(v)
	}
	shift := uint(64 - n)
	return int64(v<<shift) >> shift
}
