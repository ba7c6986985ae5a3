// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"testing"

	mmap "github.com/edsrzf/mmap-go"
)

func cursorOver(buf []byte) *Cursor {
	return &Cursor{mm: mmap.MMap(buf), contentBits: int64(len(buf)) * 8}
}

func TestDecodeStruct(t *testing.T) {
	decl := &StructDecl{
		FieldNames: []string{"id", "value"},
		FieldDecls: []Declaration{
			&IntegerDecl{Len: 8, Order: binary.LittleEndian},
			&IntegerDecl{Len: 32, Order: binary.LittleEndian},
		},
	}
	def := decl.NewDefinition(nil, "root").(*StructDefinition)
	cur := cursorOver([]byte{0x07, 0x2A, 0x00, 0x00, 0x00})

	if err := decodeDefinition(cur, def); err != nil {
		t.Fatalf("decodeDefinition: %v", err)
	}
	if got := def.Fields["id"].(*IntegerDefinition).Value; got != 7 {
		t.Errorf("id = %d, want 7", got)
	}
	if got := def.Fields["value"].(*IntegerDefinition).Value; got != 42 {
		t.Errorf("value = %d, want 42", got)
	}
	if cur.offset != 40 {
		t.Errorf("cursor offset after decode = %d, want 40", cur.offset)
	}
}

func TestDecodeSignedInteger(t *testing.T) {
	decl := &IntegerDecl{Len: 8, Signed: true, Order: binary.LittleEndian}
	def := decl.NewDefinition(nil, "v").(*IntegerDefinition)
	cur := cursorOver([]byte{0xFF})
	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	if def.Value != -1 {
		t.Errorf("signed byte 0xFF decoded to %d, want -1", def.Value)
	}
}

func TestDecodeString(t *testing.T) {
	decl := &StringDecl{}
	def := decl.NewDefinition(nil, "s").(*StringDefinition)
	cur := cursorOver([]byte("hi\x00trailing"))
	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	if def.Value != "hi" {
		t.Errorf("string value = %q, want %q", def.Value, "hi")
	}
	if cur.offset != 3*8 {
		t.Errorf("cursor offset after string = %d, want %d", cur.offset, 3*8)
	}
}

func TestDecodeEnum(t *testing.T) {
	decl := &EnumDecl{
		Base: &IntegerDecl{Len: 8, Order: binary.LittleEndian},
		Ranges: []EnumRange{
			{Name: "RED", Low: 0, High: 0},
			{Name: "GREEN", Low: 1, High: 1},
		},
	}
	def := decl.NewDefinition(nil, "color").(*EnumDefinition)
	cur := cursorOver([]byte{0x01})
	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	if def.Label != "GREEN" {
		t.Errorf("enum label = %q, want GREEN", def.Label)
	}
}

func TestDecodeFixedArray(t *testing.T) {
	decl := &ArrayDecl{Length: 3, Elem: &IntegerDecl{Len: 8, Order: binary.LittleEndian}}
	def := decl.NewDefinition(nil, "arr").(*ArrayDefinition)
	cur := cursorOver([]byte{1, 2, 3})
	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	for i, want := range []int64{1, 2, 3} {
		if got := def.Elems[i].(*IntegerDefinition).Value; got != want {
			t.Errorf("element %d = %d, want %d", i, got, want)
		}
	}
}

func TestDecodeSequence(t *testing.T) {
	outer := &StructDecl{
		FieldNames: []string{"len", "data"},
		FieldDecls: []Declaration{
			&IntegerDecl{Len: 8, Order: binary.LittleEndian},
			&SequenceDecl{LengthField: "len", Elem: &IntegerDecl{Len: 8, Order: binary.LittleEndian}},
		},
	}
	def := outer.NewDefinition(nil, "root").(*StructDefinition)
	cur := cursorOver([]byte{3, 10, 20, 30})
	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	seq := def.Fields["data"].(*SequenceDefinition)
	if len(seq.Elems) != 3 {
		t.Fatalf("sequence length = %d, want 3", len(seq.Elems))
	}
	for i, want := range []int64{10, 20, 30} {
		if got := seq.Elems[i].(*IntegerDefinition).Value; got != want {
			t.Errorf("element %d = %d, want %d", i, got, want)
		}
	}
}

func TestDecodeVariantByEnumTag(t *testing.T) {
	tagDecl := &EnumDecl{
		Base:   &IntegerDecl{Len: 8, Order: binary.LittleEndian},
		Ranges: []EnumRange{{Name: "INT", Low: 0, High: 0}, {Name: "STR", Low: 1, High: 1}},
	}
	variantDecl := &VariantDecl{
		TagName:  "kind",
		ArmNames: []string{"INT", "STR"},
		ArmDecls: []Declaration{&IntegerDecl{Len: 32, Order: binary.LittleEndian}, &StringDecl{}},
	}
	root := &StructDecl{
		FieldNames: []string{"kind", "payload"},
		FieldDecls: []Declaration{tagDecl, variantDecl},
	}
	def := root.NewDefinition(nil, "root").(*StructDefinition)
	cur := cursorOver([]byte{0x01, 'o', 'k', 0x00})

	if err := decodeDefinition(cur, def); err != nil {
		t.Fatal(err)
	}
	variant := def.Fields["payload"].(*VariantDefinition)
	if variant.ArmName != "STR" {
		t.Fatalf("variant arm = %q, want STR", variant.ArmName)
	}
	str, ok := variant.Chosen.(*StringDefinition)
	if !ok || str.Value != "ok" {
		t.Errorf("variant payload = %+v, want string \"ok\"", variant.Chosen)
	}
}
