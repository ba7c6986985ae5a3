// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

// buildIndex implements the packet indexer: it walks
// every packet of fs's file once, validating and decoding each
// packet's header and context, and appends one packetIndexEntry per
// packet it finds. The first packet it sees also resolves fs's stream
// class and materializes the per-stream definitions derived from it
// (packet context, event header, event context).
func buildIndex(fs *FileStream) error {
	size := fs.size

	var offset int64
	for offset < size {
		headerWindow := size - offset
		if headerWindow > maxHeaderBytes {
			headerWindow = maxHeaderBytes
		}
		if err := fs.cur.mapPacket(offset, headerWindow*8); err != nil {
			return err
		}

		streamID, haveStreamID, err := readPacketHeader(fs, offset)
		if err != nil {
			return err
		}

		if len(fs.index) == 0 {
			if err := resolveStreamClass(fs, streamID, haveStreamID); err != nil {
				return err
			}
		} else if haveStreamID && streamID != fs.streamID {
			return errorf(ErrStreamIDChange, "index packet", "file %s: stream_id changed from %d to %d", fs.name, fs.streamID, streamID)
		}

		if fs.packetContextDef != nil {
			if err := decodeDefinition(fs.cur, fs.packetContextDef); err != nil {
				return newError(ErrIO, "decode packet context", fs.name, err)
			}
		}

		entry, err := buildIndexEntry(fs, offset, size)
		if err != nil {
			return err
		}
		fs.index = append(fs.index, entry)

		nbytes := entry.PacketBits / 8
		if entry.PacketBits%8 != 0 {
			nbytes++
		}
		offset += nbytes
	}

	return nil
}

// readPacketHeader decodes trace.packet.header (if the trace declares
// one) at the cursor's current position, validating the magic and
// trace UUID fields. It reports the packet's stream_id field, if any.
func readPacketHeader(fs *FileStream, offset int64) (streamID uint64, haveStreamID bool, err error) {
	hdr := fs.packetHeaderDef
	if hdr == nil {
		return 0, false, nil
	}

	if err := decodeDefinition(fs.cur, hdr); err != nil {
		return 0, false, newError(ErrIO, "decode packet header", fs.name, err)
	}

	if magic, ok := LookupInteger(hdr, "magic"); ok && uint32(magic) != ctfMagic {
		return 0, false, errorf(ErrBadMagic, "index packet", "packet at byte %d: magic %#x", offset, uint32(magic))
	}

	if fs.trace.hasUUID {
		if uuidField, ok := resolvePath(hdr, "uuid"); ok {
			if n, ok := ArrayLen(uuidField); ok && n == 16 {
				for i := 0; i < 16; i++ {
					elem, _ := ArrayIndex(uuidField, i)
					u, _ := GetUnsignedInt(elem)
					if byte(u) != fs.trace.UUID[i] {
						return 0, false, errorf(ErrUUIDMismatch, "index packet", "packet at byte %d: uuid differs from trace uuid", offset)
					}
				}
			}
		}
	}

	if id, ok := LookupInteger(hdr, "stream_id"); ok {
		return uint64(id), true, nil
	}
	return 0, false, nil
}

// resolveStreamClass binds fs's first packet to a stream class,
// materializing the definitions every later packet in the file
// reuses.
func resolveStreamClass(fs *FileStream, streamID uint64, haveStreamID bool) error {
	if !haveStreamID {
		if len(fs.trace.Streams) != 1 {
			return errorf(ErrUnknownStream, "index packet",
				"file %s declares no stream_id and the trace has %d stream classes", fs.name, len(fs.trace.Streams))
		}
		for id := range fs.trace.Streams {
			streamID = id
		}
	}
	cls, ok := fs.trace.Streams[streamID]
	if !ok {
		return errorf(ErrUnknownStream, "index packet", "unknown stream id %d in %s", streamID, fs.name)
	}

	fs.streamID = streamID
	fs.class = cls
	cls.streams = append(cls.streams, fs)

	if cls.PacketContext != nil {
		fs.packetContextDef = cls.PacketContext.NewDefinition(nil, "stream.packet.context")
	}
	if cls.EventHeader != nil {
		fs.eventHeaderDef = cls.EventHeader.NewDefinition(nil, "stream.event.header")
	}
	if cls.EventContext != nil {
		fs.eventContextDef = cls.EventContext.NewDefinition(nil, "stream.event.context")
	}
	fs.eventsByID = make(map[uint64]*eventDefs, len(cls.Events))
	return nil
}

// buildIndexEntry reads content_size, packet_size, the timestamp
// bounds, and events_discarded out of the just-decoded packet context
// (defaulting each per spec when the context doesn't declare it), and
// validates invariants 1 and 2: data_offset ≤ content_size ≤
// packet_size ≤ bytes remaining in the file.
func buildIndexEntry(fs *FileStream, offset, fileSize int64) (packetIndexEntry, error) {
	dataOffsetBits := fs.cur.offset
	remainingBits := (fileSize - offset) * 8

	packetBits := remainingBits
	if v, ok := LookupInteger(fs.packetContextDef, "packet_size"); ok {
		packetBits = v
	} else if v, ok := lookupUnsignedByPath(fs.packetContextDef, "packet_size"); ok {
		packetBits = int64(v)
	}

	contentBits := packetBits
	if v, ok := LookupInteger(fs.packetContextDef, "content_size"); ok {
		contentBits = v
	} else if v, ok := lookupUnsignedByPath(fs.packetContextDef, "content_size"); ok {
		contentBits = int64(v)
	}

	if dataOffsetBits > contentBits || contentBits > packetBits || packetBits > remainingBits {
		return packetIndexEntry{}, errorf(ErrBadPacketSize, "index packet",
			"file %s at byte %d: data_offset=%d content_size=%d packet_size=%d remaining=%d",
			fs.name, offset, dataOffsetBits, contentBits, packetBits, remainingBits)
	}

	var tsBegin, tsEnd uint64
	if v, ok := lookupUnsignedByPath(fs.packetContextDef, "timestamp_begin"); ok {
		tsBegin = v
	}
	if v, ok := lookupUnsignedByPath(fs.packetContextDef, "timestamp_end"); ok {
		tsEnd = v
	} else {
		tsEnd = tsBegin
	}

	discarded := uint64(0)
	if len(fs.index) > 0 {
		discarded = fs.index[len(fs.index)-1].EventsDiscardedCumulative
	}
	if v, ok := lookupUnsignedByPath(fs.packetContextDef, "events_discarded"); ok {
		discarded = v
	}

	return packetIndexEntry{
		FileOffset:                offset,
		ContentBits:               contentBits,
		PacketBits:                packetBits,
		TimestampBegin:            tsBegin,
		TimestampEnd:              tsEnd,
		DataOffsetBits:            dataOffsetBits,
		EventsDiscardedCumulative: discarded,
	}, nil
}
