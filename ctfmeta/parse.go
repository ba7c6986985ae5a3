// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctfmeta

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ctfreader/go-ctf/ctf"
)

// Parser is a ctf.MetadataParser backed by a hand-written
// recursive-descent parser for the TSDL subset this package
// understands: integer, floating_point, string, struct, enum,
// variant and array/sequence field types; typealias bindings; and
// trace, stream, event, and clock top-level blocks. The zero value is
// ready to use.
type Parser struct{}

// Parse implements ctf.MetadataParser.
func (Parser) Parse(text string) (*ctf.ParsedMetadata, error) {
	tk, err := Tokenize([]byte(text))
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks:             toks(tk),
		aliases:          builtinAliases(),
		namedStructs:     map[string]ctf.Declaration{},
		namedEnums:       map[string]ctf.Declaration{},
		namedVariants:    map[string]ctf.Declaration{},
		defaultByteOrder: binary.LittleEndian,
	}
	result := &ctf.ParsedMetadata{Streams: map[uint64]*ctf.StreamClass{}}
	for len(p.toks) > 0 {
		if err := p.parseTopLevel(result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// parser holds the mutable state of one Parse call: the token cursor
// and the type registries typealias, and named struct/enum/variant
// definitions populate as they're encountered.
type parser struct {
	toks             toks
	aliases          map[string]ctf.Declaration
	namedStructs     map[string]ctf.Declaration
	namedEnums       map[string]ctf.Declaration
	namedVariants    map[string]ctf.Declaration
	defaultByteOrder binary.ByteOrder
	pendingStreamID  uint64
}

func builtinAliases() map[string]ctf.Declaration {
	mk := func(bits int, signed bool) *ctf.IntegerDecl {
		return &ctf.IntegerDecl{Len: bits, Signed: signed, Order: binary.LittleEndian, Base: 10}
	}
	return map[string]ctf.Declaration{
		"uint8_t":  mk(8, false),
		"uint16_t": mk(16, false),
		"uint32_t": mk(32, false),
		"uint64_t": mk(64, false),
		"int8_t":   mk(8, true),
		"int16_t":  mk(16, true),
		"int32_t":  mk(32, true),
		"int64_t":  mk(64, true),
	}
}

func (p *parser) parseTopLevel(result *ctf.ParsedMetadata) error {
	switch {
	case p.toks.Try(TokIdent, "typealias"):
		return p.parseTypealias()
	case p.toks.Try(TokIdent, "trace"):
		return p.parseTraceBlock(result)
	case p.toks.Try(TokIdent, "stream"):
		return p.parseStreamBlock(result)
	case p.toks.Try(TokIdent, "event"):
		return p.parseEventBlock(result)
	case p.toks.Try(TokIdent, "clock"):
		return p.parseClockBlock(result)
	case p.toks.Try(TokIdent, "env"):
		if err := p.skipBlock(); err != nil {
			return err
		}
		p.toks.Try(TokOp, ";")
		return nil
	default:
		if _, err := p.parseType(); err != nil {
			return err
		}
		if !p.toks.Try(TokOp, ";") {
			return fmt.Errorf("expected ';' after top-level type declaration")
		}
		return nil
	}
}

// parseTypealias handles "typealias <type> := name;".
func (p *parser) parseTypealias() error {
	decl, err := p.parseType()
	if err != nil {
		return err
	}
	if !p.toks.Try(TokOp, ":=") {
		return fmt.Errorf("expected ':=' in typealias")
	}
	name, ok := p.toks.TryIdent()
	if !ok {
		return fmt.Errorf("expected alias name")
	}
	if !p.toks.Try(TokOp, ";") {
		return fmt.Errorf("expected ';' after typealias")
	}
	p.aliases[name.Text] = decl
	return nil
}

// parseType parses one type specification: a primitive (integer,
// floating_point, string), a compound (struct, enum, variant), or a
// reference to a previously bound typealias.
func (p *parser) parseType() (ctf.Declaration, error) {
	t := p.toks.Next()
	switch {
	case t.Match(TokIdent, "integer"):
		p.toks.Skip(1)
		return p.parseIntegerBody()
	case t.Match(TokIdent, "floating_point"):
		p.toks.Skip(1)
		return p.parseFloatBody()
	case t.Match(TokIdent, "string"):
		p.toks.Skip(1)
		if p.toks.Peek(TokOp, "{") {
			if err := p.skipBlock(); err != nil {
				return nil, err
			}
		}
		return &ctf.StringDecl{}, nil
	case t.Match(TokIdent, "struct"):
		p.toks.Skip(1)
		return p.parseStructType()
	case t.Match(TokIdent, "enum"):
		p.toks.Skip(1)
		return p.parseEnumType()
	case t.Match(TokIdent, "variant"):
		p.toks.Skip(1)
		return p.parseVariantType()
	case t.Kind == TokIdent:
		p.toks.Skip(1)
		if decl, ok := p.aliases[t.Text]; ok {
			return decl, nil
		}
		return nil, fmt.Errorf("line %d: unknown type %q", t.Line, t.Text)
	default:
		return nil, fmt.Errorf("line %d: expected a type, got %q", t.Line, t.Text)
	}
}

func (p *parser) parseIntegerBody() (*ctf.IntegerDecl, error) {
	if !p.toks.Try(TokOp, "{") {
		return nil, fmt.Errorf("expected '{' after integer")
	}
	d := &ctf.IntegerDecl{Order: p.defaultByteOrder, Base: 10}
	for !p.toks.Try(TokOp, "}") {
		key, ok := p.toks.TryIdent()
		if !ok {
			return nil, fmt.Errorf("expected field name in integer body")
		}
		if !p.toks.Try(TokOp, "=") {
			return nil, fmt.Errorf("expected '=' after %q", key.Text)
		}
		switch key.Text {
		case "size":
			n, err := p.parseIntLit()
			if err != nil {
				return nil, err
			}
			d.Len = int(n)
		case "signed":
			v, err := p.parseBoolLit()
			if err != nil {
				return nil, err
			}
			d.Signed = v
		case "byte_order":
			order, err := p.parseByteOrder()
			if err != nil {
				return nil, err
			}
			d.Order = order
		case "base":
			n, err := p.parseIntLit()
			if err != nil {
				return nil, err
			}
			d.Base = int(n)
		default:
			if err := p.skipValue(); err != nil {
				return nil, err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return nil, fmt.Errorf("expected ';' after %q assignment", key.Text)
		}
	}
	return d, nil
}

func (p *parser) parseFloatBody() (*ctf.FloatDecl, error) {
	if !p.toks.Try(TokOp, "{") {
		return nil, fmt.Errorf("expected '{' after floating_point")
	}
	d := &ctf.FloatDecl{Order: p.defaultByteOrder}
	for !p.toks.Try(TokOp, "}") {
		key, ok := p.toks.TryIdent()
		if !ok {
			return nil, fmt.Errorf("expected field name in floating_point body")
		}
		if !p.toks.Try(TokOp, "=") {
			return nil, fmt.Errorf("expected '=' after %q", key.Text)
		}
		switch key.Text {
		case "exp_dig":
			n, err := p.parseIntLit()
			if err != nil {
				return nil, err
			}
			d.ExpBits = int(n)
		case "mant_dig":
			n, err := p.parseIntLit()
			if err != nil {
				return nil, err
			}
			d.MantBits = int(n)
		case "byte_order":
			order, err := p.parseByteOrder()
			if err != nil {
				return nil, err
			}
			d.Order = order
		default:
			if err := p.skipValue(); err != nil {
				return nil, err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return nil, fmt.Errorf("expected ';' after %q assignment", key.Text)
		}
	}
	return d, nil
}

func (p *parser) parseStructType() (ctf.Declaration, error) {
	var name string
	if t, ok := p.toks.TryIdent(); ok {
		name = t.Text
	}
	if !p.toks.Peek(TokOp, "{") {
		decl, ok := p.namedStructs[name]
		if !ok {
			return nil, fmt.Errorf("reference to undefined struct %q", name)
		}
		return decl, nil
	}
	p.toks.Skip(1)
	sd := &ctf.StructDecl{}
	for !p.toks.Try(TokOp, "}") {
		fname, fdecl, err := p.parseFieldDecl()
		if err != nil {
			return nil, err
		}
		sd.FieldNames = append(sd.FieldNames, fname)
		sd.FieldDecls = append(sd.FieldDecls, fdecl)
	}
	// A trailing "align(N)" attribute on the struct itself isn't
	// modeled: declarations carry no alignment (an "align" key inside
	// an integer or floating_point body is skipped too), and only
	// strings are aligned, to 8 bits, when decoded. Consume and
	// discard it.
	if p.toks.Peek(TokIdent, "align") {
		p.toks.Skip(1)
		if err := p.skipParens(); err != nil {
			return nil, err
		}
	}
	if name != "" {
		p.namedStructs[name] = sd
	}
	return sd, nil
}

// parseFieldDecl parses "<type> <name>[<len-or-field>]*;".
func (p *parser) parseFieldDecl() (string, ctf.Declaration, error) {
	decl, err := p.parseType()
	if err != nil {
		return "", nil, err
	}
	nameTok, ok := p.toks.TryIdent()
	if !ok {
		return "", nil, fmt.Errorf("expected field name")
	}
	name := nameTok.Text

	for p.toks.Try(TokOp, "[") {
		if n := p.toks.Next(); n.Kind == TokNumber {
			p.toks.Skip(1)
			ln, err := strconv.ParseInt(n.Text, 0, 64)
			if err != nil {
				return "", nil, fmt.Errorf("bad array length %q: %w", n.Text, err)
			}
			if !p.toks.Try(TokOp, "]") {
				return "", nil, fmt.Errorf("expected ']' closing array length")
			}
			decl = &ctf.ArrayDecl{Length: int(ln), Elem: decl}
		} else {
			lenName, ok := p.toks.TryIdent()
			if !ok {
				return "", nil, fmt.Errorf("expected array length or field name")
			}
			if !p.toks.Try(TokOp, "]") {
				return "", nil, fmt.Errorf("expected ']' closing sequence length field")
			}
			decl = &ctf.SequenceDecl{LengthField: lenName.Text, Elem: decl}
		}
	}

	if !p.toks.Try(TokOp, ";") {
		return "", nil, fmt.Errorf("expected ';' after field %q", name)
	}
	return name, decl, nil
}

func (p *parser) parseEnumType() (ctf.Declaration, error) {
	var name string
	if t, ok := p.toks.TryIdent(); ok {
		name = t.Text
	}
	var base *ctf.IntegerDecl
	if p.toks.Try(TokOp, ":") {
		d, err := p.parseType()
		if err != nil {
			return nil, err
		}
		id, ok := d.(*ctf.IntegerDecl)
		if !ok {
			return nil, fmt.Errorf("enum base type must be an integer")
		}
		base = id
	}
	if !p.toks.Peek(TokOp, "{") {
		decl, ok := p.namedEnums[name]
		if !ok {
			return nil, fmt.Errorf("reference to undefined enum %q", name)
		}
		return decl, nil
	}
	p.toks.Skip(1)
	if base == nil {
		base = &ctf.IntegerDecl{Len: 32, Order: p.defaultByteOrder, Base: 10}
	}

	ed := &ctf.EnumDecl{Base: base}
	next := int64(0)
	for !p.toks.Try(TokOp, "}") {
		label, ok := p.toks.TryIdent()
		if !ok {
			return nil, fmt.Errorf("expected enumerator name")
		}
		lo, hi := next, next
		if p.toks.Try(TokOp, "=") {
			n, err := p.parseIntLit()
			if err != nil {
				return nil, err
			}
			lo, hi = n, n
			if p.toks.Try(TokOp, "...") {
				n2, err := p.parseIntLit()
				if err != nil {
					return nil, err
				}
				hi = n2
			}
		}
		ed.Ranges = append(ed.Ranges, ctf.EnumRange{Name: label.Text, Low: lo, High: hi})
		next = hi + 1
		p.toks.Try(TokOp, ",")
	}
	if name != "" {
		p.namedEnums[name] = ed
	}
	return ed, nil
}

func (p *parser) parseVariantType() (ctf.Declaration, error) {
	var name string
	if t, ok := p.toks.TryIdent(); ok {
		name = t.Text
	}
	var tagName string
	if p.toks.Try(TokOp, "<") {
		t, ok := p.toks.TryIdent()
		if !ok {
			return nil, fmt.Errorf("expected tag field name in variant selector")
		}
		tagName = t.Text
		if !p.toks.Try(TokOp, ">") {
			return nil, fmt.Errorf("expected '>' closing variant selector")
		}
	}
	if !p.toks.Peek(TokOp, "{") {
		decl, ok := p.namedVariants[name]
		if !ok {
			return nil, fmt.Errorf("reference to undefined variant %q", name)
		}
		return decl, nil
	}
	p.toks.Skip(1)
	vd := &ctf.VariantDecl{TagName: tagName}
	for !p.toks.Try(TokOp, "}") {
		armName, armDecl, err := p.parseFieldDecl()
		if err != nil {
			return nil, err
		}
		vd.ArmNames = append(vd.ArmNames, armName)
		vd.ArmDecls = append(vd.ArmDecls, armDecl)
	}
	if name != "" {
		p.namedVariants[name] = vd
	}
	return vd, nil
}

func (p *parser) parseByteOrder() (binary.ByteOrder, error) {
	t, ok := p.toks.TryIdent()
	if !ok {
		return nil, fmt.Errorf("expected byte order identifier")
	}
	switch t.Text {
	case "le":
		return binary.LittleEndian, nil
	case "be", "network":
		return binary.BigEndian, nil
	case "native":
		return p.defaultByteOrder, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", t.Text)
	}
}

func (p *parser) parseIntLit() (int64, error) {
	neg := p.toks.Try(TokOp, "-")
	t := p.toks.Next()
	if t.Kind != TokNumber {
		return 0, fmt.Errorf("line %d: expected integer literal, got %q", t.Line, t.Text)
	}
	p.toks.Skip(1)
	n, err := strconv.ParseInt(t.Text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad integer literal %q: %w", t.Text, err)
	}
	if neg {
		n = -n
	}
	return n, nil
}

func (p *parser) parseBoolLit() (bool, error) {
	t := p.toks.Next()
	switch {
	case t.Match(TokIdent, "true"):
		p.toks.Skip(1)
		return true, nil
	case t.Match(TokIdent, "false"):
		p.toks.Skip(1)
		return false, nil
	case t.Kind == TokNumber:
		p.toks.Skip(1)
		return t.Text != "0", nil
	default:
		return false, fmt.Errorf("line %d: expected boolean literal, got %q", t.Line, t.Text)
	}
}

// skipValue consumes an unrecognized attribute's right-hand side, up
// to (but not including) its terminating ";", honoring nested
// brackets so a compound value doesn't confuse the caller's own ";"
// check.
func (p *parser) skipValue() error {
	depth := 0
	for {
		t := p.toks.Next()
		if t.Kind == TokEOF {
			return fmt.Errorf("unexpected end of metadata")
		}
		if depth == 0 && t.Match(TokOp, ";") {
			return nil
		}
		switch t.Text {
		case "{", "(", "[":
			depth++
		case "}", ")", "]":
			depth--
		}
		p.toks.Skip(1)
	}
}

func (p *parser) skipBlock() error {
	if !p.toks.Try(TokOp, "{") {
		return fmt.Errorf("expected '{'")
	}
	depth := 1
	for depth > 0 {
		t := p.toks.Next()
		if t.Kind == TokEOF {
			return fmt.Errorf("unterminated block")
		}
		p.toks.Skip(1)
		switch t.Text {
		case "{":
			depth++
		case "}":
			depth--
		}
	}
	return nil
}

func (p *parser) skipParens() error {
	if !p.toks.Try(TokOp, "(") {
		return fmt.Errorf("expected '('")
	}
	depth := 1
	for depth > 0 {
		t := p.toks.Next()
		if t.Kind == TokEOF {
			return fmt.Errorf("unterminated parens")
		}
		p.toks.Skip(1)
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
		}
	}
	return nil
}

func (p *parser) parseDottedKey() (string, error) {
	t, ok := p.toks.TryIdent()
	if !ok {
		return "", fmt.Errorf("expected identifier")
	}
	key := t.Text
	for p.toks.Try(TokOp, ".") {
		t2, ok := p.toks.TryIdent()
		if !ok {
			return "", fmt.Errorf("expected identifier after '.'")
		}
		key += "." + t2.Text
	}
	return key, nil
}

func (p *parser) parseTraceBlock(result *ctf.ParsedMetadata) error {
	if !p.toks.Try(TokOp, "{") {
		return fmt.Errorf("expected '{' after trace")
	}
	for !p.toks.Try(TokOp, "}") {
		key, err := p.parseDottedKey()
		if err != nil {
			return err
		}
		if !p.toks.Try(TokOp, "=") && !p.toks.Try(TokOp, ":=") {
			return fmt.Errorf("expected '=' or ':=' after %q", key)
		}
		switch key {
		case "byte_order":
			order, err := p.parseByteOrder()
			if err != nil {
				return err
			}
			result.ByteOrder = order
			p.defaultByteOrder = order
		case "uuid":
			t := p.toks.Next()
			if t.Kind != TokString {
				return fmt.Errorf("expected trace uuid string")
			}
			p.toks.Skip(1)
			id, err := uuid.Parse(t.Text)
			if err != nil {
				return fmt.Errorf("bad trace uuid %q: %w", t.Text, err)
			}
			result.UUID = &id
		case "packet.header":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			result.PacketHeader = decl
		default:
			if err := p.skipValue(); err != nil {
				return err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return fmt.Errorf("expected ';' after trace.%s", key)
		}
	}
	p.toks.Try(TokOp, ";")
	return nil
}

func (p *parser) parseStreamBlock(result *ctf.ParsedMetadata) error {
	if !p.toks.Try(TokOp, "{") {
		return fmt.Errorf("expected '{' after stream")
	}
	sc := &ctf.StreamClass{Events: map[uint64]*ctf.EventClass{}}
	var id uint64
	for !p.toks.Try(TokOp, "}") {
		key, err := p.parseDottedKey()
		if err != nil {
			return err
		}
		if !p.toks.Try(TokOp, "=") && !p.toks.Try(TokOp, ":=") {
			return fmt.Errorf("expected '=' or ':=' after %q", key)
		}
		switch key {
		case "id":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			id = uint64(n)
		case "packet.context":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			sc.PacketContext = decl
		case "event.header":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			sc.EventHeader = decl
		case "event.context":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			sc.EventContext = decl
		default:
			if err := p.skipValue(); err != nil {
				return err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return fmt.Errorf("expected ';' after stream.%s", key)
		}
	}
	p.toks.Try(TokOp, ";")

	sc.ID = id
	if existing, ok := result.Streams[id]; ok {
		mergeStreamClass(existing, sc)
	} else {
		result.Streams[id] = sc
	}
	p.pendingStreamID = id
	return nil
}

func (p *parser) parseEventBlock(result *ctf.ParsedMetadata) error {
	if !p.toks.Try(TokOp, "{") {
		return fmt.Errorf("expected '{' after event")
	}
	ec := &ctf.EventClass{}
	var streamID uint64
	haveStreamID := false
	for !p.toks.Try(TokOp, "}") {
		key, err := p.parseDottedKey()
		if err != nil {
			return err
		}
		if !p.toks.Try(TokOp, "=") && !p.toks.Try(TokOp, ":=") {
			return fmt.Errorf("expected '=' or ':=' after %q", key)
		}
		switch key {
		case "id":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			ec.ID = uint64(n)
		case "stream_id":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			streamID, haveStreamID = uint64(n), true
		case "name":
			t := p.toks.Next()
			if t.Kind != TokString && t.Kind != TokIdent {
				return fmt.Errorf("expected event name")
			}
			p.toks.Skip(1)
			ec.Name = t.Text
		case "context":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			ec.Context = decl
		case "fields":
			decl, err := p.parseType()
			if err != nil {
				return err
			}
			ec.Fields = decl
		default:
			if err := p.skipValue(); err != nil {
				return err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return fmt.Errorf("expected ';' after event.%s", key)
		}
	}
	p.toks.Try(TokOp, ";")

	if !haveStreamID {
		streamID = p.pendingStreamID
	}
	sc, ok := result.Streams[streamID]
	if !ok {
		sc = &ctf.StreamClass{ID: streamID, Events: map[uint64]*ctf.EventClass{}}
		result.Streams[streamID] = sc
	}
	if sc.Events == nil {
		sc.Events = map[uint64]*ctf.EventClass{}
	}
	sc.Events[ec.ID] = ec
	return nil
}

func (p *parser) parseClockBlock(result *ctf.ParsedMetadata) error {
	if !p.toks.Try(TokOp, "{") {
		return fmt.Errorf("expected '{' after clock")
	}
	cd := &ctf.ClockDecl{FreqHz: 1e9}
	for !p.toks.Try(TokOp, "}") {
		key, err := p.parseDottedKey()
		if err != nil {
			return err
		}
		if !p.toks.Try(TokOp, "=") && !p.toks.Try(TokOp, ":=") {
			return fmt.Errorf("expected '=' or ':=' after %q", key)
		}
		switch key {
		case "name":
			t := p.toks.Next()
			p.toks.Skip(1)
			cd.Name = t.Text
		case "uuid":
			t := p.toks.Next()
			if t.Kind != TokString {
				return fmt.Errorf("expected clock uuid string")
			}
			p.toks.Skip(1)
			id, err := uuid.Parse(t.Text)
			if err != nil {
				return fmt.Errorf("bad clock uuid %q: %w", t.Text, err)
			}
			cd.UUID = id
		case "freq":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			cd.FreqHz = uint64(n)
		case "offset":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			cd.Offset = n
		case "precision":
			n, err := p.parseIntLit()
			if err != nil {
				return err
			}
			cd.Precision = uint64(n)
		default:
			if err := p.skipValue(); err != nil {
				return err
			}
		}
		if !p.toks.Try(TokOp, ";") {
			return fmt.Errorf("expected ';' after clock.%s", key)
		}
	}
	p.toks.Try(TokOp, ";")
	result.Clock = cd
	return nil
}

func mergeStreamClass(dst, src *ctf.StreamClass) {
	if src.PacketContext != nil {
		dst.PacketContext = src.PacketContext
	}
	if src.EventHeader != nil {
		dst.EventHeader = src.EventHeader
	}
	if src.EventContext != nil {
		dst.EventContext = src.EventContext
	}
}
