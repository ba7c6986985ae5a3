// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctfmeta

import (
	"testing"

	"github.com/ctfreader/go-ctf/ctf"
)

func TestTokenize(t *testing.T) {
	toks, err := Tokenize([]byte(`struct { uint32_t x; } /* c */ name[4];`))
	if err != nil {
		t.Fatal(err)
	}
	want := []Tok{
		{TokIdent, "struct", 1},
		{TokOp, "{", 1},
		{TokIdent, "uint32_t", 1},
		{TokIdent, "x", 1},
		{TokOp, ";", 1},
		{TokOp, "}", 1},
		{TokIdent, "name", 1},
		{TokOp, "[", 1},
		{TokNumber, "4", 1},
		{TokOp, "]", 1},
		{TokOp, ";", 1},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i] != w {
			t.Errorf("token %d = %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize([]byte(`"a\"b"`))
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Kind != TokString || toks[0].Text != `a"b` {
		t.Fatalf("got %+v, want a single string token containing a\"b", toks)
	}
}

const sampleMetadata = `/* CTF 1.8 */

typealias integer { size = 8; signed = false; byte_order = le; } := uint8_t;
typealias integer { size = 32; signed = false; byte_order = le; } := uint32_t;

trace {
	byte_order = le;
	uuid = "2a6422d0-6cee-11e0-8c08-cb07d7b3a564";
};

clock {
	name = monotonic;
	freq = 1000000000;
	offset = 0;
};

stream {
	id = 0;
	packet.context := struct {
		uint32_t content_size;
		uint32_t packet_size;
	};
	event.header := struct { uint8_t id; };
};

event {
	stream_id = 0;
	id = 0;
	name = "wakeup";
	fields := struct {
		uint8_t prio;
		uint8_t reason;
	};
};

event {
	stream_id = 0;
	id = 1;
	name = "exit";
	fields := struct {
		enum : uint8_t { RUNNING = 0, STOPPED = 1, ZOMBIE = 2 ... 10 } state;
		uint8_t codes[2];
	};
};
`

func TestParseSampleMetadata(t *testing.T) {
	parsed, err := (Parser{}).Parse(sampleMetadata)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.UUID == nil {
		t.Fatal("expected trace UUID to be parsed")
	}
	if parsed.Clock == nil || parsed.Clock.Name != "monotonic" || parsed.Clock.FreqHz != 1000000000 {
		t.Fatalf("clock = %+v, want name=monotonic freq=1e9", parsed.Clock)
	}
	sc, ok := parsed.Streams[0]
	if !ok {
		t.Fatal("expected stream 0")
	}
	if sc.PacketContext == nil {
		t.Fatal("expected a packet.context declaration")
	}
	if len(sc.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(sc.Events))
	}

	wakeup, ok := sc.Events[0]
	if !ok || wakeup.Name != "wakeup" {
		t.Fatalf("event 0 = %+v, want name=wakeup", wakeup)
	}
	fields, ok := wakeup.Fields.(*ctf.StructDecl)
	if !ok || len(fields.FieldNames) != 2 {
		t.Fatalf("wakeup.Fields = %+v, want a 2-field struct", wakeup.Fields)
	}

	exitEv, ok := sc.Events[1]
	if !ok || exitEv.Name != "exit" {
		t.Fatalf("event 1 = %+v, want name=exit", exitEv)
	}
	exitFields := exitEv.Fields.(*ctf.StructDecl)
	enumDecl, ok := exitFields.FieldDecls[0].(*ctf.EnumDecl)
	if !ok {
		t.Fatalf("exit.state field = %T, want *ctf.EnumDecl", exitFields.FieldDecls[0])
	}
	if label, ok := enumDecl.Lookup(7); !ok || label != "ZOMBIE" {
		t.Errorf("enum lookup(7) = (%q, %v), want (ZOMBIE, true)", label, ok)
	}
	arr, ok := exitFields.FieldDecls[1].(*ctf.ArrayDecl)
	if !ok || arr.Length != 2 {
		t.Fatalf("exit.codes field = %+v, want a 2-element array", exitFields.FieldDecls[1])
	}
}

func TestParseTypealiasReuse(t *testing.T) {
	const text = `
typealias integer { size = 16; signed = true; byte_order = be; } := i16;
trace { packet.header := struct { i16 a; i16 b; }; };
`
	parsed, err := (Parser{}).Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hdr, ok := parsed.PacketHeader.(*ctf.StructDecl)
	if !ok || len(hdr.FieldNames) != 2 {
		t.Fatalf("PacketHeader = %+v, want a 2-field struct", parsed.PacketHeader)
	}
	for _, fd := range hdr.FieldDecls {
		id, ok := fd.(*ctf.IntegerDecl)
		if !ok || id.Len != 16 || !id.Signed {
			t.Errorf("field decl = %+v, want a signed 16-bit integer", fd)
		}
	}
}

func TestParseUnknownAttributeIsSkipped(t *testing.T) {
	const text = `
typealias integer { size = 8; signed = false; byte_order = le; } := uint8_t;
trace {
	byte_order = le;
	some_future_field = 123;
	packet.header := struct { uint8_t magic; };
};
`
	if _, err := (Parser{}).Parse(text); err != nil {
		t.Fatalf("Parse should tolerate an unrecognized trace attribute: %v", err)
	}
}
