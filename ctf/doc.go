// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctf reads Common Trace Format (CTF) traces.
//
// Opening a trace starts with a call to Open, which reads a trace
// directory's metadata (either packet-framed binary or plain text),
// hands the concatenated text to a MetadataParser to obtain the
// declaration tree, and indexes the packets of every stream file in
// the directory. The resulting *Trace exposes one *FileStream per
// stream file; each FileStream's ReadEvent method decodes events in
// file order, advancing across packet boundaries and reconstructing
// full 64-bit timestamps from narrower clock fields as it goes.
//
// This package does not parse the CTF metadata grammar itself — that
// is the job of a MetadataParser implementation such as
// github.com/ctfreader/go-ctf/ctfmeta. It does not interpret event
// payload semantics, order events across streams, or write traces.
package ctf // import "github.com/ctfreader/go-ctf/ctf"
