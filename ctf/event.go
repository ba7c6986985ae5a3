// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import "io"

// Event is one decoded record yielded by (*FileStream).ReadEvent: the
// output of the generic event reader.
type Event struct {
	Stream    *FileStream
	Class     *EventClass
	Timestamp uint64
	Context   Definition // event.context, or nil
	Fields    Definition // event.fields, or nil
}

// ReadEvent decodes the next event on fs, crossing packet boundaries
// as needed, and resolves its class by event id and its timestamp by
// reconstructing a wrapped clock field against the stream's last seen
// value. It returns io.EOF once every indexed packet has been read.
func (fs *FileStream) ReadEvent() (*Event, error) {
	for fs.cur.offset == eofOffset || fs.cur.bitsLeft() <= 0 {
		if err := fs.advancePacket(); err != nil {
			return nil, eofOrErr(err)
		}
	}

	fs.cur.alignToEvent()
	if fs.cur.offset == eofOffset {
		if err := fs.advancePacket(); err != nil {
			return nil, eofOrErr(err)
		}
		fs.cur.alignToEvent()
	}

	if fs.eventHeaderDef != nil {
		if err := decodeDefinition(fs.cur, fs.eventHeaderDef); err != nil {
			return nil, newError(ErrIO, "decode event header", fs.name, err)
		}
	}

	id := resolveEventID(fs.eventHeaderDef, fs.class)

	if tsDef, ok := findTimestampField(fs.eventHeaderDef); ok {
		decl := tsDef.decl.(*IntegerDecl)
		prev := fs.timestamp
		fs.timestamp = reconstructTimestamp(fs.timestamp, tsDef.Unsigned, decl.Len)
		fs.prevTimestamp = prev
		fs.tsFieldLen = decl.Len
	}

	if fs.eventContextDef != nil {
		if err := decodeDefinition(fs.cur, fs.eventContextDef); err != nil {
			return nil, newError(ErrIO, "decode stream event context", fs.name, err)
		}
	}

	ec, ok := fs.class.Events[id]
	if !ok {
		return nil, errorf(ErrInvalidEventID, "decode event", "unknown event id %d in stream %d", id, fs.streamID)
	}
	fs.lastEventID = id

	defs := fs.definitionsFor(ec)

	if defs.context != nil {
		if err := decodeDefinition(fs.cur, defs.context); err != nil {
			return nil, newError(ErrIO, "decode event context", fs.name, err)
		}
	}
	if defs.fields != nil {
		if err := decodeDefinition(fs.cur, defs.fields); err != nil {
			return nil, newError(ErrIO, "decode event fields", fs.name, err)
		}
	}

	return &Event{
		Stream:    fs,
		Class:     ec,
		Timestamp: fs.timestamp,
		Context:   defs.context,
		Fields:    defs.fields,
	}, nil
}

// definitionsFor returns the definitions for ec's per-event context and
// fields, materializing and caching them the first time ec is seen on
// fs, lazily per event class rather than eagerly for every declared
// class.
func (fs *FileStream) definitionsFor(ec *EventClass) *eventDefs {
	if defs, ok := fs.eventsByID[ec.ID]; ok {
		return defs
	}
	defs := &eventDefs{}
	if ec.Context != nil {
		defs.context = ec.Context.NewDefinition(nil, "event.context")
	}
	if ec.Fields != nil {
		defs.fields = ec.Fields.NewDefinition(nil, "event.fields")
	}
	fs.eventsByID[ec.ID] = defs
	return defs
}

// findTimestampField locates the integer-valued "timestamp" field of
// an event header, descending one level into a selected variant arm
// (CTF's common compact/extended event header encoding) when the
// header doesn't carry the field directly.
func findTimestampField(hdr Definition) (*IntegerDefinition, bool) {
	if hdr == nil {
		return nil, false
	}
	if def, ok := resolvePath(hdr, "timestamp"); ok {
		if i, ok := def.(*IntegerDefinition); ok {
			return i, true
		}
	}
	if v, ok := LookupVariant(hdr, "v"); ok && v.Chosen != nil {
		if def, ok := resolvePath(v.Chosen, "timestamp"); ok {
			if i, ok := def.(*IntegerDefinition); ok {
				return i, true
			}
		}
	}
	return nil, false
}

// resolveEventID resolves an event's class id from its header: a
// top-level integer or enum "id" field, else one nested inside a
// variant "v" field (CTF's compact/extended header encoding), else the
// stream's only declared event class when it's the sole one, else 0.
func resolveEventID(hdr Definition, class *StreamClass) uint64 {
	if hdr != nil {
		if v, ok := LookupInteger(hdr, "id"); ok {
			return uint64(v)
		}
		if v, ok := LookupVariant(hdr, "v"); ok && v.Chosen != nil {
			if iv, ok := LookupInteger(v.Chosen, "id"); ok {
				return uint64(iv)
			}
		}
	}
	if len(class.Events) == 1 {
		for eid := range class.Events {
			return eid
		}
	}
	return 0
}

func eofOrErr(err error) error {
	if e, ok := err.(*Error); ok && e.Err == io.EOF {
		return io.EOF
	}
	return err
}
