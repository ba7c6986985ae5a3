// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// cursorMode selects the protection used for a Cursor's mapping.
type cursorMode uint8

const (
	cursorRead cursorMode = iota
	cursorWrite
)

// eofOffset is the sentinel value of Cursor.offset once a cursor has
// run off the end of its content.
const eofOffset = -1

// A Cursor tracks a bit-offset position into a memory-mapped region.
// Exactly one mapping is live per Cursor at a time.
type Cursor struct {
	fd   *os.File
	mode cursorMode

	// staticData backs a cursor built over memory the caller already
	// mapped (OpenMmapTrace), instead of one this package mmaps and
	// munmaps itself. nil for every file-backed cursor.
	staticData []byte

	mm         mmap.MMap // current mapping, nil when unmapped
	mmapOffset int64     // mapping's byte offset in the file or staticData

	packetBits  int64
	contentBits int64
	offset      int64 // current bit offset within the mapped packet, or eofOffset
	lastOffset  int64 // restore point set by alignToEvent

	packetIndex int
}

func newCursor(fd *os.File, mode cursorMode) *Cursor {
	return &Cursor{fd: fd, mode: mode, offset: eofOffset}
}

// newStaticCursor wraps data, a buffer the caller has already mapped
// into memory, as a read-only cursor: mapPacket reslices data instead
// of issuing mmap/munmap syscalls.
func newStaticCursor(data []byte) *Cursor {
	return &Cursor{mode: cursorRead, staticData: data, offset: eofOffset}
}

// mapPacket maps packetBits (rounded up to whole bytes) starting at
// byteOffset, replacing any existing mapping.
func (c *Cursor) mapPacket(byteOffset int64, packetBits int64) error {
	if err := c.unmap(); err != nil {
		return err
	}
	nbytes := int((packetBits + 7) / 8)
	if c.staticData != nil {
		if byteOffset < 0 || byteOffset+int64(nbytes) > int64(len(c.staticData)) {
			return errorf(ErrIO, "mapPacket", "window [%d,%d) out of range for %d-byte buffer", byteOffset, byteOffset+int64(nbytes), len(c.staticData))
		}
		c.mm = mmap.MMap(c.staticData[byteOffset : byteOffset+int64(nbytes)])
		c.mmapOffset = byteOffset
		c.packetBits = packetBits
		c.contentBits = int64(nbytes) * 8
		c.offset = 0
		return nil
	}
	if nbytes == 0 {
		c.mmapOffset = byteOffset
		c.packetBits = 0
		c.contentBits = 0
		c.offset = 0
		return nil
	}
	prot := mmap.RDONLY
	if c.mode == cursorWrite {
		prot = mmap.RDWR
	}
	m, err := mmap.MapRegion(c.fd, nbytes, prot, 0, byteOffset)
	if err != nil {
		return newError(ErrIO, "mmap", c.fd.Name(), err)
	}
	// Hint the kernel that the indexer walks packets sequentially
	// from the start of the file; a no-op on platforms without
	// madvise, and harmless if the hint is ignored.
	_ = unix.Madvise(m, unix.MADV_SEQUENTIAL)

	c.mm = m
	c.mmapOffset = byteOffset
	c.packetBits = packetBits
	c.contentBits = int64(nbytes) * 8
	c.offset = 0
	return nil
}

// setContentBits narrows the cursor's content_size once the packet
// indexer or seek iterator has learned the packet's real content
// size, without changing the underlying mapping.
func (c *Cursor) setContentBits(bits int64) {
	c.contentBits = bits
}

// unmap releases the current mapping, if any. For a static cursor
// this just drops the slice reference; the caller owns the backing
// memory and munmaps it, if at all, on its own schedule.
func (c *Cursor) unmap() error {
	if c.mm == nil {
		return nil
	}
	if c.staticData != nil {
		c.mm = nil
		return nil
	}
	err := c.mm.Unmap()
	c.mm = nil
	if err != nil {
		return newError(ErrIO, "munmap", c.fd.Name(), err)
	}
	return nil
}

// finalize releases the cursor's resources. In write mode it first
// writes the final content size back into contentSizeLoc (a byte
// offset within the mapping where the content_size field lives),
// patching in the true size just before unmapping.
func (c *Cursor) finalize(contentSizeLoc int64) error {
	if c.mode == cursorWrite && c.mm != nil && contentSizeLoc >= 0 {
		binary.LittleEndian.PutUint64(c.mm[contentSizeLoc:], uint64(c.contentBits))
	}
	return c.unmap()
}

// align rounds the cursor's bit offset up to the next multiple of
// bits, failing if that would run past the packet's content.
func (c *Cursor) align(bits int) error {
	if c.offset == eofOffset {
		return newError(ErrIO, "align", "", errPastEOF)
	}
	rem := c.offset % int64(bits)
	if rem != 0 {
		c.offset += int64(bits) - rem
	}
	if c.offset > c.contentBits {
		c.offset = eofOffset
		return newError(ErrIO, "align", "", errPastEOF)
	}
	return nil
}

// alignToEvent aligns to the start of the next event and records the
// restore point an event reader can roll back to on a partial read.
func (c *Cursor) alignToEvent() {
	c.lastOffset = c.offset
	if c.offset == eofOffset {
		return
	}
	// Events are byte-aligned in every CTF trace this package has
	// encountered; the metadata model has no separate "event
	// alignment" declaration, so 8 bits is the fixed event boundary.
	_ = c.align(8)
	c.lastOffset = c.offset
}

// bitsLeft reports how many content bits remain unread.
func (c *Cursor) bitsLeft() int64 {
	if c.offset == eofOffset {
		return 0
	}
	return c.contentBits - c.offset
}

// advance moves the cursor forward by n bits without reading,
// signalling EOF if that would run past the packet's content.
func (c *Cursor) advance(n int) error {
	if c.offset == eofOffset {
		return newError(ErrIO, "advance", "", errPastEOF)
	}
	next := c.offset + int64(n)
	if next > c.contentBits {
		return newError(ErrIO, "advance", "", errPastEOF)
	}
	c.offset = next
	if c.offset == c.contentBits {
		// Leave offset at content_size; callers decide whether
		// that means EOF (event reader) or simply "packet done"
		// (indexer, which still wants data_offset).
	}
	return nil
}

// readRaw returns the n-bit (n ≤ 64) unsigned value starting at the
// cursor's current offset, interpreted with the given byte order, and
// advances the cursor by n bits.
func (c *Cursor) readRaw(n int, order binary.ByteOrder) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, errorf(ErrIO, "readRaw", "bad field width %d", n)
	}
	if c.offset == eofOffset || c.offset+int64(n) > c.contentBits {
		return 0, newError(ErrIO, "readRaw", "", errPastEOF)
	}
	v := readBits(c.mm, int(c.offset), n, order)
	c.offset += int64(n)
	return v, nil
}
