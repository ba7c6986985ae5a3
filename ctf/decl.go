// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"strings"
)

// A TypeClass selects which of the eight decoders in the dispatcher
// handles a Declaration.
type TypeClass uint8

const (
	ClassInteger TypeClass = iota
	ClassFloat
	ClassEnum
	ClassString
	ClassStruct
	ClassVariant
	ClassArray
	ClassSequence
)

func (c TypeClass) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassEnum:
		return "enum"
	case ClassString:
		return "string"
	case ClassStruct:
		return "struct"
	case ClassVariant:
		return "variant"
	case ClassArray:
		return "array"
	case ClassSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// A Declaration is a CTF type description: the metadata parser
// (e.g. ctfmeta) builds a tree of these from the textual metadata,
// and the core never constructs one itself except in tests. The
// metadata grammar that produces a tree of declarations is an
// external collaborator this package only consumes through this
// interface.
type Declaration interface {
	// Class selects the dispatcher entry that decodes values of
	// this declaration.
	Class() TypeClass

	// NewDefinition materializes a zero-valued Definition bound to
	// parent (nil for a root definition) under the given name. For
	// compound declarations this eagerly builds the full subtree
	// for statically-sized children (struct fields, fixed arrays)
	// so that sibling scope lookups work before the first decode;
	// variants and sequences fill in their dynamic part during
	// decode instead.
	NewDefinition(parent Definition, name string) Definition
}

// A Definition is a placed, decoded instance of a Declaration, bound
// to a scope chain. Path reports its qualified name, e.g.
// "stream.event.header.id"; the Lookup functions resolve names
// relative to a definition within its own root scope.
type Definition interface {
	Declaration() Declaration
	Name() string
	Path() string
	Parent() Definition
}

type scopeBase struct {
	decl   Declaration
	name   string
	path   string
	parent Definition
}

func newScope(decl Declaration, parent Definition, name string) scopeBase {
	path := name
	if parent != nil && parent.Path() != "" {
		path = parent.Path() + "." + name
	}
	return scopeBase{decl: decl, name: name, path: path, parent: parent}
}

func (s *scopeBase) Declaration() Declaration { return s.decl }
func (s *scopeBase) Name() string             { return s.name }
func (s *scopeBase) Path() string             { return s.path }
func (s *scopeBase) Parent() Definition        { return s.parent }

// --- integer ---

// IntegerDecl describes a fixed-width integer field: bit length,
// signedness, byte order, and display base (base is carried through
// only for pretty-printing and is not interpreted by this package).
type IntegerDecl struct {
	Len    int // bits, 1..64
	Signed bool
	Order  binary.ByteOrder
	Base   int // 2, 8, 10, or 16; 0 means unspecified (defaults to 10)
}

func (d *IntegerDecl) Class() TypeClass { return ClassInteger }

func (d *IntegerDecl) NewDefinition(parent Definition, name string) Definition {
	return &IntegerDefinition{scopeBase: newScope(d, parent, name)}
}

// IntegerDefinition holds the decoded value of an IntegerDecl. Value
// is sign-extended when the declaration is signed; Unsigned always
// holds the raw unsigned bit pattern.
type IntegerDefinition struct {
	scopeBase
	Value    int64
	Unsigned uint64
}

// --- float ---

// FloatDecl describes an IEEE-754 field split into exponent and
// mantissa (including the implicit bit) widths, as CTF metadata does;
// ExpBits+MantBits must be 32 or 64 for this package's float decoder.
type FloatDecl struct {
	ExpBits  int
	MantBits int
	Order    binary.ByteOrder
}

func (d *FloatDecl) Class() TypeClass { return ClassFloat }

func (d *FloatDecl) NewDefinition(parent Definition, name string) Definition {
	return &FloatDefinition{scopeBase: newScope(d, parent, name)}
}

type FloatDefinition struct {
	scopeBase
	Value float64
}

// --- enum ---

// EnumRange maps a closed integer range [Low, High] to a label. CTF
// enumerators may map single values (Low == High) or ranges.
type EnumRange struct {
	Name      string
	Low, High int64
}

// EnumDecl is an integer declaration with a name mapping.
type EnumDecl struct {
	Base   *IntegerDecl
	Ranges []EnumRange
}

func (d *EnumDecl) Class() TypeClass { return ClassEnum }

func (d *EnumDecl) NewDefinition(parent Definition, name string) Definition {
	return &EnumDefinition{scopeBase: newScope(d, parent, name)}
}

// Lookup returns the label for v, and whether one was found.
func (d *EnumDecl) Lookup(v int64) (string, bool) {
	for _, r := range d.Ranges {
		if v >= r.Low && v <= r.High {
			return r.Name, true
		}
	}
	return "", false
}

type EnumDefinition struct {
	scopeBase
	IntValue int64
	Unsigned uint64
	Label    string
}

// --- string ---

// StringDecl is a NUL-terminated byte sequence, 8-bit aligned before
// and after.
type StringDecl struct{}

func (d *StringDecl) Class() TypeClass { return ClassString }

func (d *StringDecl) NewDefinition(parent Definition, name string) Definition {
	return &StringDefinition{scopeBase: newScope(d, parent, name)}
}

type StringDefinition struct {
	scopeBase
	Value string
}

// --- struct ---

// StructDecl is an ordered list of named fields.
type StructDecl struct {
	FieldNames []string
	FieldDecls []Declaration
}

func (d *StructDecl) Class() TypeClass { return ClassStruct }

// FieldIndex returns the index of the named field.
func (d *StructDecl) FieldIndex(name string) (int, bool) {
	for i, n := range d.FieldNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (d *StructDecl) NewDefinition(parent Definition, name string) Definition {
	sd := &StructDefinition{
		scopeBase: newScope(d, parent, name),
		Fields:    make(map[string]Definition, len(d.FieldNames)),
	}
	for i, fname := range d.FieldNames {
		sd.Fields[fname] = d.FieldDecls[i].NewDefinition(sd, fname)
	}
	return sd
}

type StructDefinition struct {
	scopeBase
	Fields map[string]Definition
}

// FieldByIndex returns the definition of the i'th field in
// declaration order.
func (s *StructDefinition) FieldByIndex(i int) Definition {
	decl := s.decl.(*StructDecl)
	return s.Fields[decl.FieldNames[i]]
}

// --- variant ---

// VariantDecl selects one of several arms by the integer or enum
// value of a sibling field named by TagName.
type VariantDecl struct {
	TagName  string
	ArmNames []string
	ArmDecls []Declaration
}

func (d *VariantDecl) Class() TypeClass { return ClassVariant }

func (d *VariantDecl) arm(name string) (Declaration, bool) {
	for i, n := range d.ArmNames {
		if n == name {
			return d.ArmDecls[i], true
		}
	}
	return nil, false
}

func (d *VariantDecl) NewDefinition(parent Definition, name string) Definition {
	return &VariantDefinition{scopeBase: newScope(d, parent, name)}
}

// VariantDefinition holds the arm selected at decode time. Unlike
// struct and fixed-array fields, the arm isn't known until the tag
// field's sibling value is read, so Chosen is nil until then.
type VariantDefinition struct {
	scopeBase
	ArmName string
	Chosen  Definition
}

// --- array (fixed length) ---

// ArrayDecl is a fixed-length sequence of Elem.
type ArrayDecl struct {
	Length int
	Elem   Declaration
}

func (d *ArrayDecl) Class() TypeClass { return ClassArray }

func (d *ArrayDecl) NewDefinition(parent Definition, name string) Definition {
	ad := &ArrayDefinition{scopeBase: newScope(d, parent, name)}
	ad.Elems = make([]Definition, d.Length)
	for i := range ad.Elems {
		ad.Elems[i] = d.Elem.NewDefinition(ad, indexName(i))
	}
	return ad
}

type ArrayDefinition struct {
	scopeBase
	Elems []Definition
}

// --- sequence (length-prefixed) ---

// SequenceDecl is a runtime-length sequence of Elem, whose length is
// read from the sibling integer field named LengthField.
type SequenceDecl struct {
	LengthField string
	Elem        Declaration
}

func (d *SequenceDecl) Class() TypeClass { return ClassSequence }

func (d *SequenceDecl) NewDefinition(parent Definition, name string) Definition {
	return &SequenceDefinition{scopeBase: newScope(d, parent, name)}
}

type SequenceDefinition struct {
	scopeBase
	Elems []Definition
}

func indexName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "[" + string(digits[i]) + "]"
	}
	// Rare: arrays with ≥10 elements. Avoid strconv import for this
	// corner case by falling back to repeated division.
	var buf []byte
	n := i
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "[" + string(buf) + "]"
}

// --- scope lookups (definition-side lookups) ---

// resolvePath walks from `from` up through enclosing struct scopes
// looking for a field named by the first component of path, then
// descends through any remaining dotted components. This resolves
// the relative paths CTF metadata uses for variant tags and sequence
// length fields (e.g. "id" for a sibling, or "header.flags" for a
// field of a sibling struct). Absolute scope paths such as
// "stream.packet.context.flags" are not resolved: each root scope
// (packet header, packet context, event header, ...) is built with
// no parent, so the walk never leaves the scope it starts in.
func resolvePath(from Definition, path string) (Definition, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 {
		return nil, false
	}
	for cur := from; cur != nil; cur = cur.Parent() {
		sd, ok := cur.(*StructDefinition)
		if !ok {
			continue
		}
		child, ok := sd.Fields[parts[0]]
		if !ok {
			continue
		}
		for _, p := range parts[1:] {
			csd, ok := child.(*StructDefinition)
			if !ok {
				return nil, false
			}
			child, ok = csd.Fields[p]
			if !ok {
				return nil, false
			}
		}
		return child, true
	}
	return nil, false
}

// LookupInteger resolves name relative to from and returns its signed
// integer value (for enums, the enum's underlying integer value).
func LookupInteger(from Definition, name string) (int64, bool) {
	def, ok := resolvePath(from, name)
	if !ok {
		return 0, false
	}
	switch d := def.(type) {
	case *IntegerDefinition:
		return d.Value, true
	case *EnumDefinition:
		return d.IntValue, true
	default:
		return 0, false
	}
}

// LookupEnum resolves name relative to from and returns its
// EnumDefinition.
func LookupEnum(from Definition, name string) (*EnumDefinition, bool) {
	def, ok := resolvePath(from, name)
	if !ok {
		return nil, false
	}
	d, ok := def.(*EnumDefinition)
	return d, ok
}

// LookupVariant resolves name relative to from and returns its
// VariantDefinition.
func LookupVariant(from Definition, name string) (*VariantDefinition, bool) {
	def, ok := resolvePath(from, name)
	if !ok {
		return nil, false
	}
	d, ok := def.(*VariantDefinition)
	return d, ok
}

// GetUnsignedInt returns the raw unsigned bit pattern of an integer
// or enum definition.
func GetUnsignedInt(def Definition) (uint64, bool) {
	switch d := def.(type) {
	case *IntegerDefinition:
		return d.Unsigned, true
	case *EnumDefinition:
		return d.Unsigned, true
	default:
		return 0, false
	}
}

// arrayLike is implemented by ArrayDefinition and SequenceDefinition.
type arrayLike interface {
	elems() []Definition
}

func (a *ArrayDefinition) elems() []Definition    { return a.Elems }
func (s *SequenceDefinition) elems() []Definition { return s.Elems }

// ArrayLen returns the element count of an array or sequence
// definition.
func ArrayLen(def Definition) (int, bool) {
	a, ok := def.(arrayLike)
	if !ok {
		return 0, false
	}
	return len(a.elems()), true
}

// ArrayIndex returns the i'th element of an array or sequence
// definition.
func ArrayIndex(def Definition, i int) (Definition, bool) {
	a, ok := def.(arrayLike)
	if !ok {
		return nil, false
	}
	e := a.elems()
	if i < 0 || i >= len(e) {
		return nil, false
	}
	return e[i], true
}
