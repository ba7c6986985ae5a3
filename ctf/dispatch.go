// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"math"
)

// decodeDefinition is the generic read dispatcher: it
// decodes def from cur, recursing into compound declarations. This is
// the single entry point every other component uses to turn bits into
// values; nothing else in this package reads a Cursor directly except
// the packet- and event-header special cases in index.go and
// event.go, which call this for each declared field.
func decodeDefinition(cur *Cursor, def Definition) error {
	switch d := def.(type) {
	case *IntegerDefinition:
		return decodeInteger(cur, d)
	case *FloatDefinition:
		return decodeFloat(cur, d)
	case *EnumDefinition:
		return decodeEnum(cur, d)
	case *StringDefinition:
		return decodeString(cur, d)
	case *StructDefinition:
		return decodeStruct(cur, d)
	case *VariantDefinition:
		return decodeVariant(cur, d)
	case *ArrayDefinition:
		return decodeArray(cur, d)
	case *SequenceDefinition:
		return decodeSequence(cur, d)
	default:
		return errorf(ErrIO, "decode", "unhandled definition type %T", def)
	}
}

func decodeInteger(cur *Cursor, d *IntegerDefinition) error {
	decl := d.decl.(*IntegerDecl)
	raw, err := cur.readRaw(decl.Len, decl.Order)
	if err != nil {
		return err
	}
	d.Unsigned = raw
	if decl.Signed {
		d.Value = signExtend(raw, decl.Len)
	} else {
		d.Value = int64(raw)
	}
	return nil
}

func decodeFloat(cur *Cursor, d *FloatDefinition) error {
	decl := d.decl.(*FloatDecl)
	width := 1 + decl.ExpBits + (decl.MantBits - 1)
	raw, err := cur.readRaw(width, decl.Order)
	if err != nil {
		return err
	}
	switch width {
	case 32:
		d.Value = float64(math.Float32frombits(uint32(raw)))
	case 64:
		d.Value = math.Float64frombits(raw)
	default:
		return errorf(ErrIO, "decode", "unsupported float width %d", width)
	}
	return nil
}

func decodeEnum(cur *Cursor, d *EnumDefinition) error {
	decl := d.decl.(*EnumDecl)
	raw, err := cur.readRaw(decl.Base.Len, decl.Base.Order)
	if err != nil {
		return err
	}
	d.Unsigned = raw
	if decl.Base.Signed {
		d.IntValue = signExtend(raw, decl.Base.Len)
	} else {
		d.IntValue = int64(raw)
	}
	d.Label, _ = decl.Lookup(d.IntValue)
	return nil
}

func decodeString(cur *Cursor, d *StringDefinition) error {
	if err := cur.align(8); err != nil {
		return err
	}
	start := cur.offset / 8
	buf := cur.mm
	i := start
	for {
		if i >= int64(len(buf)) || i*8 >= cur.contentBits {
			return newError(ErrIO, "decode string", "", errPastEOF)
		}
		if buf[i] == 0 {
			break
		}
		i++
	}
	d.Value = string(buf[start:i])
	cur.offset = (i + 1) * 8
	return nil
}

func decodeStruct(cur *Cursor, d *StructDefinition) error {
	decl := d.decl.(*StructDecl)
	for _, name := range decl.FieldNames {
		if err := decodeDefinition(cur, d.Fields[name]); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

func decodeVariant(cur *Cursor, d *VariantDefinition) error {
	decl := d.decl.(*VariantDecl)
	label, ok := variantTagLabel(d, decl.TagName)
	if !ok {
		return errorf(ErrMetadataParse, "decode variant", "tag %q not found for variant %q", decl.TagName, d.Path())
	}
	armDecl, ok := decl.arm(label)
	if !ok {
		return errorf(ErrMetadataParse, "decode variant", "no arm %q in variant %q", label, d.Path())
	}
	if d.Chosen == nil || d.ArmName != label {
		d.Chosen = armDecl.NewDefinition(d, label)
		d.ArmName = label
	}
	return decodeDefinition(cur, d.Chosen)
}

// variantTagLabel resolves a variant's tag field to the arm name it
// selects: an enum's label directly, or an integer's decimal value as
// a string (for variants tagged by plain integers rather than enums).
func variantTagLabel(from Definition, tagName string) (string, bool) {
	if e, ok := LookupEnum(from, tagName); ok {
		return e.Label, true
	}
	if i, ok := LookupInteger(from, tagName); ok {
		return fmt.Sprintf("%d", i), true
	}
	return "", false
}

func decodeArray(cur *Cursor, d *ArrayDefinition) error {
	for i, elem := range d.Elems {
		if err := decodeDefinition(cur, elem); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return nil
}

func decodeSequence(cur *Cursor, d *SequenceDefinition) error {
	decl := d.decl.(*SequenceDecl)
	n, ok := LookupInteger(d, decl.LengthField)
	if !ok {
		if u, ok2 := lookupUnsignedByPath(d, decl.LengthField); ok2 {
			n = int64(u)
			ok = true
		}
	}
	if !ok || n < 0 {
		return errorf(ErrMetadataParse, "decode sequence", "length field %q not found for %q", decl.LengthField, d.Path())
	}
	d.Elems = make([]Definition, n)
	for i := range d.Elems {
		d.Elems[i] = decl.Elem.NewDefinition(d, indexName(i))
		if err := decodeDefinition(cur, d.Elems[i]); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return nil
}

func lookupUnsignedByPath(from Definition, name string) (uint64, bool) {
	def, ok := resolvePath(from, name)
	if !ok {
		return 0, false
	}
	return GetUnsignedInt(def)
}
