// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import "io"

// whence values for FileStream.seek, mirroring os.File.Seek's.
const (
	seekSet = iota
	seekCur
)

// seek positions fs at the packet named by index (interpreted per
// whence), remaps that packet's content, re-decodes the trace packet
// header and stream packet context against the new mapping, and
// resets the per-packet decode state the event reader depends on. On
// return the cursor sits at the packet's data_offset, ready to decode
// the first event header.
//
// seekCur advances by index packets from the current one, accumulating
// the events-discarded delta attributable to the boundary crossed and
// recording the [prev_timestamp, prev_timestamp_end] window a
// subsequent end-of-stream warning reports. seekSet jumps to an
// absolute packet index (used only to prime packet 0) and resets that
// window.
func (fs *FileStream) seek(index int, whence int) error {
	switch whence {
	case seekSet:
		fs.prevTimestamp = 0
		fs.prevTimestampEnd = 0
	case seekCur:
		if fs.curIndex >= 0 && fs.curIndex < len(fs.index) {
			cur := fs.index[fs.curIndex]
			if target := fs.curIndex + index; target >= 0 && target < len(fs.index) {
				next := fs.index[target]
				if next.EventsDiscardedCumulative > cur.EventsDiscardedCumulative {
					fs.eventsDiscarded += next.EventsDiscardedCumulative - cur.EventsDiscardedCumulative
				}
			}
			fs.prevTimestamp = fs.timestamp
			fs.prevTimestampEnd = cur.TimestampEnd
		}
		index += fs.curIndex
	default:
		return errorf(ErrIO, "seek", "bad whence %d", whence)
	}

	if index < 0 || index >= len(fs.index) {
		fs.warnDiscardedEvents()
		return newError(ErrIO, "seek", fs.name, io.EOF)
	}

	entry := fs.index[index]
	if err := fs.cur.mapPacket(entry.FileOffset, entry.PacketBits); err != nil {
		return err
	}
	fs.cur.setContentBits(entry.ContentBits)

	if fs.packetHeaderDef != nil {
		if err := decodeDefinition(fs.cur, fs.packetHeaderDef); err != nil {
			return newError(ErrIO, "decode packet header", fs.name, err)
		}
	}
	if fs.packetContextDef != nil {
		if err := decodeDefinition(fs.cur, fs.packetContextDef); err != nil {
			return newError(ErrIO, "decode packet context", fs.name, err)
		}
	}
	fs.cur.offset = entry.DataOffsetBits
	fs.curIndex = index

	fs.timestamp = entry.TimestampBegin
	fs.tsFieldLen = 0
	fs.lastEventID = 0
	return nil
}

// advancePacket moves to the packet after the current one. It returns
// an *Error wrapping io.EOF once the file stream's last packet has
// been consumed, which ReadEvent treats as "this file stream is done"
// rather than a decode failure.
func (fs *FileStream) advancePacket() error {
	return fs.seek(1, seekCur)
}

// warnDiscardedEvents reports, exactly once per run of exhausted
// packets, any events-discarded delta this file stream accumulated
// crossing packet boundaries. Pending discards are cleared after the
// warning so repeated reads past end-of-stream don't repeat it.
func (fs *FileStream) warnDiscardedEvents() {
	if fs.eventsDiscarded == 0 {
		return
	}
	warnf("%s: %d event(s) discarded between %s and %s", fs.name, fs.eventsDiscarded,
		FormatTimestamp(fs.trace, fs.prevTimestamp, ClockOpts{}),
		FormatTimestamp(fs.trace, fs.prevTimestampEnd, ClockOpts{}))
	fs.eventsDiscarded = 0
}
