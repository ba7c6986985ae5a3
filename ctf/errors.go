// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import "fmt"

// An ErrorKind classifies an Error. Callers match on it by comparing
// (*Error).Kind after an errors.As; an ErrorKind is not itself an
// error, so it cannot serve as an errors.Is target.
type ErrorKind uint8

const (
	_ ErrorKind = iota

	// ErrNotFound indicates a missing trace directory or metadata
	// file.
	ErrNotFound

	// ErrIO indicates a read or mmap failure.
	ErrIO

	// ErrUnsupportedFraming indicates a metadata packet declared
	// compression, encryption, or a non-zero checksum scheme.
	ErrUnsupportedFraming

	// ErrUnsupportedVersion indicates a metadata major.minor pair
	// other than 1.8. This is a warning kind: open does not fail
	// on it, but it is represented here so callers constructing an
	// Error for logging have a Kind to attach.
	ErrUnsupportedVersion

	// ErrBadMagic indicates a stream packet header whose magic field
	// differs from the CTF magic.
	ErrBadMagic

	// ErrUUIDMismatch indicates two packets, or a packet and the
	// trace, disagree on UUID.
	ErrUUIDMismatch

	// ErrStreamIDChange indicates a packet's stream_id differs from
	// the stream_id recorded on its file.
	ErrStreamIDChange

	// ErrUnknownStream indicates a packet names a stream id with no
	// corresponding stream-class descriptor.
	ErrUnknownStream

	// ErrInvalidEventID indicates a decoded event id has no
	// corresponding event-class descriptor.
	ErrInvalidEventID

	// ErrBadPacketSize indicates a packet's size fields are out of
	// order: data_offset ≤ content_size ≤ packet_size ≤ bytes
	// remaining in the file must hold and didn't.
	ErrBadPacketSize

	// ErrMetadataParse indicates the MetadataParser collaborator
	// failed on the concatenated metadata text.
	ErrMetadataParse
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "not found"
	case ErrIO:
		return "I/O error"
	case ErrUnsupportedFraming:
		return "unsupported framing"
	case ErrUnsupportedVersion:
		return "unsupported version"
	case ErrBadMagic:
		return "bad magic"
	case ErrUUIDMismatch:
		return "UUID mismatch"
	case ErrStreamIDChange:
		return "stream ID change"
	case ErrUnknownStream:
		return "unknown stream"
	case ErrInvalidEventID:
		return "invalid event ID"
	case ErrBadPacketSize:
		return "bad packet size"
	case ErrMetadataParse:
		return "metadata parse error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by this package's operations. It
// carries a Kind so callers can distinguish the error classes this
// package returns: fatal open errors and per-event decode failures.
// Version and checksum problems are logged as warnings, not returned.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "open", "index packet 3"
	Path string // file or directory involved, if any
	Err  error  // underlying error, if any
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = msg + ": " + e.Path
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
