// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import "os"

// packetIndexEntry is one immutable row of a file stream's packet
// index: built once at open by the packet indexer, consumed by the
// packet seek/iterator.
type packetIndexEntry struct {
	FileOffset                int64 // byte offset of the packet in the file
	ContentBits               int64
	PacketBits                int64
	TimestampBegin            uint64
	TimestampEnd              uint64
	DataOffsetBits            int64
	EventsDiscardedCumulative uint64
}

// eventDefs holds the materialized, reused-across-reads definitions
// for one event class: its optional context and its fields.
type eventDefs struct {
	context Definition
	fields  Definition
}

// FileStream is one non-metadata regular file in the trace directory,
// or one caller-supplied mapped buffer passed to OpenMmapTrace: either
// way, one stream source maps to one FileStream.
type FileStream struct {
	trace *Trace
	class *StreamClass

	f    *os.File // nil for a stream opened via OpenMmapTrace
	name string
	size int64
	cur  *Cursor

	index    []packetIndexEntry
	curIndex int

	streamID uint64

	// Materialized, mutated-in-place definitions cloned from the
	// stream class's declarations into this stream's own scope.
	packetHeaderDef  Definition
	packetContextDef Definition
	eventHeaderDef   Definition
	eventContextDef  Definition
	eventsByID       map[uint64]*eventDefs

	// Mutable per-stream clock and accounting state.
	timestamp        uint64
	prevTimestamp    uint64
	prevTimestampEnd uint64
	eventsDiscarded  uint64
	lastEventID      uint64
	tsFieldLen       int // width in bits of the most recently seen timestamp field; 0 until known
}

// openFileStream opens path, builds its packet index, and positions
// it at packet 0.
func openFileStream(tr *Trace, path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrNotFound, "open stream file", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(ErrIO, "stat stream file", path, err)
	}
	fs := newFileStream(tr, f.Name(), fi.Size(), f, newCursor(f, cursorRead))
	if err := buildIndex(fs); err != nil {
		fs.Close()
		return nil, err
	}
	if len(fs.index) > 0 {
		if err := fs.seek(0, seekSet); err != nil {
			fs.Close()
			return nil, err
		}
	}
	return fs, nil
}

// openMmapFileStream builds a FileStream over data, a buffer the
// caller has already mapped into memory, instead of a regular file
// this package opens and mmaps itself (OpenMmapTrace).
func openMmapFileStream(tr *Trace, name string, data []byte) (*FileStream, error) {
	fs := newFileStream(tr, name, int64(len(data)), nil, newStaticCursor(data))
	if err := buildIndex(fs); err != nil {
		return nil, err
	}
	if len(fs.index) > 0 {
		if err := fs.seek(0, seekSet); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func newFileStream(tr *Trace, name string, size int64, f *os.File, cur *Cursor) *FileStream {
	fs := &FileStream{
		trace: tr,
		f:     f,
		name:  name,
		size:  size,
		cur:   cur,
	}
	if tr.PacketHeader != nil {
		fs.packetHeaderDef = tr.PacketHeader.NewDefinition(nil, "trace.packet.header")
	}
	return fs
}

// Class returns the stream-class descriptor this file stream belongs
// to, or nil if the packet indexer hasn't resolved one yet (an empty
// file has no packets and therefore no class).
func (fs *FileStream) Class() *StreamClass { return fs.class }

// PacketCount returns the number of packets indexed in this file.
func (fs *FileStream) PacketCount() int { return len(fs.index) }

// Close unmaps and, for a file-backed stream, closes the underlying
// file. A stream opened via OpenMmapTrace has no file descriptor to
// close; the caller owns the mapped buffer's lifetime.
func (fs *FileStream) Close() error {
	if fs.cur != nil {
		fs.cur.unmap()
	}
	if fs.f == nil {
		return nil
	}
	return fs.f.Close()
}
