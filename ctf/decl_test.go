// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"testing"
)

func u32Decl() *IntegerDecl {
	return &IntegerDecl{Len: 32, Order: binary.LittleEndian}
}

func TestStructDeclFieldIndex(t *testing.T) {
	decl := &StructDecl{
		FieldNames: []string{"a", "b", "c"},
		FieldDecls: []Declaration{u32Decl(), u32Decl(), u32Decl()},
	}
	if i, ok := decl.FieldIndex("b"); !ok || i != 1 {
		t.Errorf("FieldIndex(b) = (%d, %v), want (1, true)", i, ok)
	}
	if _, ok := decl.FieldIndex("z"); ok {
		t.Error("FieldIndex(z) found a field that doesn't exist")
	}
}

func TestStructDefinitionFieldByIndex(t *testing.T) {
	decl := &StructDecl{
		FieldNames: []string{"a", "b"},
		FieldDecls: []Declaration{u32Decl(), u32Decl()},
	}
	def := decl.NewDefinition(nil, "root").(*StructDefinition)
	if def.FieldByIndex(1) != def.Fields["b"] {
		t.Error("FieldByIndex(1) didn't return the field named by FieldNames[1]")
	}
}

func TestResolvePathSibling(t *testing.T) {
	decl := &StructDecl{
		FieldNames: []string{"id", "payload"},
		FieldDecls: []Declaration{u32Decl(), u32Decl()},
	}
	def := decl.NewDefinition(nil, "root").(*StructDefinition)
	idDef := def.Fields["id"].(*IntegerDefinition)
	idDef.Value, idDef.Unsigned = 7, 7

	got, ok := LookupInteger(def.Fields["payload"], "id")
	if !ok || got != 7 {
		t.Errorf("LookupInteger from sibling = (%d, %v), want (7, true)", got, ok)
	}
}

func TestResolvePathNested(t *testing.T) {
	inner := &StructDecl{FieldNames: []string{"flags"}, FieldDecls: []Declaration{u32Decl()}}
	outer := &StructDecl{
		FieldNames: []string{"header", "body"},
		FieldDecls: []Declaration{inner, u32Decl()},
	}
	def := outer.NewDefinition(nil, "root").(*StructDefinition)
	header := def.Fields["header"].(*StructDefinition)
	flags := header.Fields["flags"].(*IntegerDefinition)
	flags.Value, flags.Unsigned = 3, 3

	got, ok := LookupInteger(def.Fields["body"], "header.flags")
	if !ok || got != 3 {
		t.Errorf("LookupInteger(header.flags) = (%d, %v), want (3, true)", got, ok)
	}
}

func TestEnumLookup(t *testing.T) {
	decl := &EnumDecl{
		Base: &IntegerDecl{Len: 8, Order: binary.LittleEndian},
		Ranges: []EnumRange{
			{Name: "LOW", Low: 0, High: 2},
			{Name: "HIGH", Low: 3, High: 10},
		},
	}
	if label, ok := decl.Lookup(1); !ok || label != "LOW" {
		t.Errorf("Lookup(1) = (%q, %v), want (LOW, true)", label, ok)
	}
	if label, ok := decl.Lookup(5); !ok || label != "HIGH" {
		t.Errorf("Lookup(5) = (%q, %v), want (HIGH, true)", label, ok)
	}
	if _, ok := decl.Lookup(99); ok {
		t.Error("Lookup(99) found a range that shouldn't match")
	}
}

func TestVariantArmLookup(t *testing.T) {
	decl := &VariantDecl{
		TagName:  "kind",
		ArmNames: []string{"a", "b"},
		ArmDecls: []Declaration{u32Decl(), &StringDecl{}},
	}
	if d, ok := decl.arm("b"); !ok || d.Class() != ClassString {
		t.Errorf("arm(b) = (%v, %v), want a string declaration", d, ok)
	}
	if _, ok := decl.arm("nope"); ok {
		t.Error("arm(nope) found an arm that doesn't exist")
	}
}

func TestArrayLenAndIndex(t *testing.T) {
	decl := &ArrayDecl{Length: 4, Elem: u32Decl()}
	def := decl.NewDefinition(nil, "arr")
	n, ok := ArrayLen(def)
	if !ok || n != 4 {
		t.Fatalf("ArrayLen = (%d, %v), want (4, true)", n, ok)
	}
	elem, ok := ArrayIndex(def, 2)
	if !ok || elem.Name() != "[2]" {
		t.Errorf("ArrayIndex(2) name = %q, want [2]", elem.Name())
	}
	if _, ok := ArrayIndex(def, 10); ok {
		t.Error("ArrayIndex(10) found an element out of bounds")
	}
}

func TestIndexName(t *testing.T) {
	tests := map[int]string{0: "[0]", 9: "[9]", 10: "[10]", 123: "[123]"}
	for i, want := range tests {
		if got := indexName(i); got != want {
			t.Errorf("indexName(%d) = %q, want %q", i, got, want)
		}
	}
}
