// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import "testing"

func TestReconstructTimestampNoWrap(t *testing.T) {
	// 8-bit field, no wrap: the new low bits are larger than the old.
	prev := uint64(0x1234)
	got := reconstructTimestamp(prev, 0x50, 8)
	want := uint64(0x1250)
	if got != want {
		t.Errorf("reconstructTimestamp(%#x, 0x50, 8) = %#x, want %#x", prev, got, want)
	}
}

func TestReconstructTimestampWrap(t *testing.T) {
	// 8-bit field: old low byte is 0xF0, new raw is 0x10 < 0xF0, so the
	// field wrapped once and the high bits must carry.
	prev := uint64(0x12F0)
	got := reconstructTimestamp(prev, 0x10, 8)
	want := uint64(0x1310)
	if got != want {
		t.Errorf("reconstructTimestamp(%#x, 0x10, 8) = %#x, want %#x", prev, got, want)
	}
}

func TestReconstructTimestampFullWidth(t *testing.T) {
	// A 64-bit field is already a full value; no reconstruction needed.
	if got := reconstructTimestamp(0xDEADBEEF, 0x42, 64); got != 0x42 {
		t.Errorf("reconstructTimestamp with a 64-bit field = %#x, want 0x42", got)
	}
}
