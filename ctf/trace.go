// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// ClockDecl describes the trace's single clock descriptor. Only Name,
// FreqHz and Offset affect behavior exposed to callers (Offset through
// FormatTimestamp); the rest is carried for completeness.
type ClockDecl struct {
	Name      string
	UUID      uuid.UUID
	FreqHz    uint64
	Offset    int64
	Precision uint64
}

// EventClass is identified by event id within its stream class and
// holds the declarations for its event-level context and fields.
type EventClass struct {
	ID      uint64
	Name    string
	Context Declaration // may be nil
	Fields  Declaration // may be nil
}

// StreamClass holds the declarations shared by every file stream that
// belongs to it, and the set of file streams that do.
type StreamClass struct {
	ID            uint64
	PacketContext Declaration // may be nil
	EventHeader   Declaration // may be nil
	EventContext  Declaration // may be nil
	Events        map[uint64]*EventClass

	streams []*FileStream
}

// ParsedMetadata is what a MetadataParser produces from the
// concatenated metadata text: a fully resolved declaration tree. This
// is the boundary between the core and the metadata grammar, which is
// an external collaborator.
type ParsedMetadata struct {
	// UUID is the trace UUID declared in the metadata (env.uuid or
	// trace.uuid), or nil if the metadata doesn't declare one (in
	// which case the binary metadata framing's UUID, if any, is
	// authoritative).
	UUID *uuid.UUID

	// ByteOrder is the trace's declared byte order, or nil to defer
	// entirely to the metadata framing reader's determination.
	ByteOrder binary.ByteOrder

	// PacketHeader is the trace.packet.header declaration, or nil if
	// the metadata doesn't declare one.
	PacketHeader Declaration

	Clock *ClockDecl

	Streams map[uint64]*StreamClass
}

// A MetadataParser turns concatenated CTF metadata text into a
// ParsedMetadata. The grammar/scanner/AST behind an implementation is
// explicitly out of this package's scope; ctfmeta provides one.
type MetadataParser interface {
	Parse(text string) (*ParsedMetadata, error)
}

// Trace is the shared descriptor for one opened trace directory.
type Trace struct {
	Dir       string
	ByteOrder binary.ByteOrder
	UUID      uuid.UUID
	hasUUID   bool

	PacketHeader Declaration
	Clock        *ClockDecl
	Streams      map[uint64]*StreamClass

	fileStreams []*FileStream
}

// formatRegistry lets a containing framework dispatch by format name
// ("ctf") without hidden static initialization. Callers that need
// this call Register explicitly; this package does not register
// itself.
type formatRegistry interface {
	RegisterFormat(name string, open func(path string, parser MetadataParser) (*Trace, error))
}

// Register adds the "ctf" format to reg.
func Register(reg formatRegistry) {
	reg.RegisterFormat("ctf", Open)
}

// Open opens the CTF trace directory at path: it reads and frames the
// metadata file, hands the concatenated text to parser, and indexes
// every other regular file in the directory as a stream, leaving each
// one positioned at its first packet.
//
// The caller must call Close on the returned Trace when done; Open
// itself closes every resource it acquired if it returns an error.
func Open(path string, parser MetadataParser) (*Trace, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, newError(ErrNotFound, "open trace", path, err)
	}

	metaResult, err := readMetadata(filepath.Join(path, "metadata"))
	if err != nil {
		return nil, err
	}

	parsed, err := parser.Parse(metaResult.Text)
	if err != nil {
		return nil, newError(ErrMetadataParse, "parse metadata", path, err)
	}

	tr := &Trace{
		Dir:          path,
		PacketHeader: parsed.PacketHeader,
		Clock:        parsed.Clock,
		Streams:      parsed.Streams,
	}
	if tr.Streams == nil {
		tr.Streams = make(map[uint64]*StreamClass)
	}

	switch {
	case metaResult.ByteOrder != nil:
		tr.ByteOrder = metaResult.ByteOrder
	case parsed.ByteOrder != nil:
		tr.ByteOrder = parsed.ByteOrder
	default:
		tr.ByteOrder = binary.LittleEndian
	}
	if metaResult.ByteOrder != nil && parsed.ByteOrder != nil && !sameByteOrder(metaResult.ByteOrder, parsed.ByteOrder) {
		warnf("metadata framing and trace declaration disagree on byte order; using framing's")
	}

	if metaResult.UUID != nil {
		tr.UUID, tr.hasUUID = *metaResult.UUID, true
	}
	if parsed.UUID != nil {
		if tr.hasUUID && *parsed.UUID != tr.UUID {
			return nil, newError(ErrUUIDMismatch, "open trace", path, nil)
		}
		tr.UUID, tr.hasUUID = *parsed.UUID, true
	}

	// Enumerate stream files: every regular, non-hidden file other
	// than "metadata".
	var names []string
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if name == "metadata" || (len(name) > 0 && name[0] == '.') {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs, err := openFileStream(tr, filepath.Join(path, name))
		if err != nil {
			tr.Close()
			return nil, err
		}
		tr.fileStreams = append(tr.fileStreams, fs)
	}

	return tr, nil
}

// MmapStream names one caller-supplied mapped buffer to index as a
// file stream, for traces whose stream data is already resident in
// memory rather than sitting in regular files in a directory (a live
// or otherwise non-file-backed source).
type MmapStream struct {
	Name string
	Data []byte
}

// OpenMmapTrace builds a Trace the same way Open does, except that its
// metadata comes from metadataText (already read and concatenated by
// the caller, since there is no directory to frame a "metadata" file
// out of) and its stream data comes from streams instead of files
// discovered on disk. Each entry in streams is indexed in place: no
// copy of its bytes is made, and the caller must keep the backing
// memory alive and unchanged until the returned Trace is closed.
func OpenMmapTrace(metadataText string, streams []MmapStream, parser MetadataParser) (*Trace, error) {
	parsed, err := parser.Parse(metadataText)
	if err != nil {
		return nil, newError(ErrMetadataParse, "parse metadata", "", err)
	}

	tr := &Trace{
		PacketHeader: parsed.PacketHeader,
		Clock:        parsed.Clock,
		Streams:      parsed.Streams,
	}
	if tr.Streams == nil {
		tr.Streams = make(map[uint64]*StreamClass)
	}

	if parsed.ByteOrder != nil {
		tr.ByteOrder = parsed.ByteOrder
	} else {
		tr.ByteOrder = binary.LittleEndian
	}
	if parsed.UUID != nil {
		tr.UUID, tr.hasUUID = *parsed.UUID, true
	}

	for _, s := range streams {
		fs, err := openMmapFileStream(tr, s.Name, s.Data)
		if err != nil {
			tr.Close()
			return nil, err
		}
		tr.fileStreams = append(tr.fileStreams, fs)
	}

	return tr, nil
}

// FileStreams returns every file stream indexed when the trace was
// opened, in directory order.
func (tr *Trace) FileStreams() []*FileStream {
	return tr.fileStreams
}

// Close closes every file stream's descriptor and mapping.
func (tr *Trace) Close() error {
	var first error
	for _, fs := range tr.fileStreams {
		if err := fs.Close(); err != nil && first == nil {
			first = err
		}
	}
	tr.fileStreams = nil
	return first
}

func sameByteOrder(a, b binary.ByteOrder) bool {
	buf := [4]byte{0x01, 0x02, 0x03, 0x04}
	return a.Uint32(buf[:]) == b.Uint32(buf[:])
}
