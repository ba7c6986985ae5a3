// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctfreader/go-ctf/ctf"
	"github.com/ctfreader/go-ctf/ctfmeta"
)

const testMetadata = `/* CTF 1.8 */

typealias integer { size = 8; signed = false; byte_order = le; } := uint8_t;
typealias integer { size = 32; signed = false; byte_order = le; } := uint32_t;

trace {
	byte_order = le;
};

stream {
	id = 0;
	event.header := struct { uint8_t id; };
};

event {
	stream_id = 0;
	id = 0;
	name = "sample";
	fields := struct { uint32_t value; };
};
`

// writeTestTrace builds a minimal single-packet, single-stream trace
// directory with two "sample" events carrying value 42 and 100.
func writeTestTrace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata"), []byte(testMetadata), 0644); err != nil {
		t.Fatal(err)
	}
	// Two events, each: 1-byte id, 4-byte little-endian value.
	data := []byte{
		0x00, 0x2A, 0x00, 0x00, 0x00, // id=0, value=42
		0x00, 0x64, 0x00, 0x00, 0x00, // id=0, value=100
	}
	if err := os.WriteFile(filepath.Join(dir, "channel0"), data, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestOpenAndReadEvents(t *testing.T) {
	dir := writeTestTrace(t)

	tr, err := ctf.Open(dir, ctfmeta.Parser{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	streams := tr.FileStreams()
	if len(streams) != 1 {
		t.Fatalf("got %d file streams, want 1", len(streams))
	}
	fs := streams[0]
	if fs.PacketCount() != 1 {
		t.Fatalf("got %d packets, want 1", fs.PacketCount())
	}

	var values []int64
	for {
		ev, err := fs.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadEvent: %v", err)
		}
		if ev.Class.Name != "sample" {
			t.Errorf("event class = %q, want %q", ev.Class.Name, "sample")
		}
		v, ok := ctf.LookupInteger(ev.Fields, "value")
		if !ok {
			t.Fatalf("event has no 'value' field")
		}
		values = append(values, v)
	}

	want := []int64{42, 100}
	if len(values) != len(want) {
		t.Fatalf("got %d events, want %d", len(values), len(want))
	}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("event %d value = %d, want %d", i, values[i], v)
		}
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := ctf.Open(filepath.Join(t.TempDir(), "nope"), ctfmeta.Parser{})
	if err == nil {
		t.Fatal("Open of a missing directory succeeded")
	}
	var ctfErr *ctf.Error
	if e, ok := err.(*ctf.Error); ok {
		ctfErr = e
	}
	if ctfErr == nil || ctfErr.Kind != ctf.ErrNotFound {
		t.Errorf("Open error = %v, want Kind ErrNotFound", err)
	}
}
