// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// metadataResult is what the metadata framing reader hands back to
// the trace opener: the concatenated metadata text plus
// whatever the binary framing itself revealed about byte order and
// trace UUID (nil fields mean "not revealed by framing — the metadata
// grammar, if it declares env.uuid or a trace byte_order, decides").
type metadataResult struct {
	Text      string
	ByteOrder binary.ByteOrder // nil in text mode
	UUID      *uuid.UUID       // nil unless a packet-framed file carried one
}

// readMetadata detects binary-packet vs. plain-text metadata framing,
// and in the binary case validates and strips each packet's header,
// concatenating the payloads into a single text buffer for the
// metadata parser.
func readMetadata(path string) (*metadataResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrNotFound, "open metadata", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64<<10)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, newError(ErrIO, "read metadata", path, err)
	}

	if len(magic) == 4 {
		if binary.LittleEndian.Uint32(magic) == tsdlMagic {
			return readMetadataPackets(path, br, binary.LittleEndian)
		}
		if binary.BigEndian.Uint32(magic) == tsdlMagic {
			return readMetadataPackets(path, br, binary.BigEndian)
		}
	}
	return readMetadataText(path, br)
}

func readMetadataPackets(path string, br *bufio.Reader, order binary.ByteOrder) (*metadataResult, error) {
	var buf bytes.Buffer
	var traceUUID *uuid.UUID

	const headerSize = metadataPacketHeaderBits / 8
	raw := make([]byte, headerSize)

	for packetNum := 0; ; packetNum++ {
		n, err := io.ReadFull(br, raw)
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil {
			return nil, newError(ErrIO, "read metadata packet header", path, err)
		}

		var hdr metadataPacketHeader
		hdr.Magic = order.Uint32(raw[0:4])
		copy(hdr.UUID[:], raw[4:20])
		hdr.Checksum = order.Uint32(raw[20:24])
		hdr.ContentSizeBits = order.Uint32(raw[24:28])
		hdr.PacketSizeBits = order.Uint32(raw[28:32])
		hdr.CompressionScheme = raw[32]
		hdr.EncryptionScheme = raw[33]
		hdr.ChecksumScheme = raw[34]
		hdr.Major = raw[35]
		hdr.Minor = raw[36]

		if hdr.CompressionScheme != 0 || hdr.EncryptionScheme != 0 || hdr.ChecksumScheme != 0 {
			return nil, newError(ErrUnsupportedFraming, "read metadata packet header", path,
				fmt.Errorf("packet %d: compression=%d encryption=%d checksum_scheme=%d",
					packetNum, hdr.CompressionScheme, hdr.EncryptionScheme, hdr.ChecksumScheme))
		}
		if hdr.Checksum != 0 {
			warnf("metadata packet %d has a non-zero checksum; not validated", packetNum)
		}
		if hdr.Major != metadataVersionMajor || hdr.Minor != metadataVersionMinor {
			warnf("metadata packet %d declares version %d.%d, expected %d.%d",
				packetNum, hdr.Major, hdr.Minor, metadataVersionMajor, metadataVersionMinor)
		}

		id, perr := uuid.FromBytes(hdr.UUID[:])
		if perr != nil {
			return nil, newError(ErrIO, "parse metadata UUID", path, perr)
		}
		if traceUUID == nil {
			traceUUID = &id
		} else if id != *traceUUID {
			return nil, newError(ErrUUIDMismatch, "read metadata packet header", path,
				fmt.Errorf("packet %d UUID %s != %s", packetNum, id, *traceUUID))
		}

		if hdr.ContentSizeBits < uint32(metadataPacketHeaderBits) || hdr.PacketSizeBits < hdr.ContentSizeBits {
			return nil, newError(ErrBadPacketSize, "read metadata packet header", path,
				fmt.Errorf("packet %d: content_size=%d packet_size=%d", packetNum, hdr.ContentSizeBits, hdr.PacketSizeBits))
		}

		payloadBytes := int64(hdr.ContentSizeBits)/8 - headerSize
		if payloadBytes < 0 {
			return nil, newError(ErrBadPacketSize, "read metadata packet header", path,
				fmt.Errorf("packet %d: content_size smaller than header", packetNum))
		}
		if _, err := io.CopyN(&buf, br, payloadBytes); err != nil {
			return nil, newError(ErrIO, "read metadata packet payload", path, err)
		}

		padBytes := int64(hdr.PacketSizeBits-hdr.ContentSizeBits) / 8
		if padBytes > 0 {
			if _, err := io.CopyN(io.Discard, br, padBytes); err != nil {
				return nil, newError(ErrIO, "skip metadata packet padding", path, err)
			}
		}
	}

	return &metadataResult{Text: buf.String(), ByteOrder: order, UUID: traceUUID}, nil
}

func readMetadataText(path string, br *bufio.Reader) (*metadataResult, error) {
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, newError(ErrIO, "read metadata", path, err)
	}
	text := string(data)

	major, minor, ok := parseTextMetadataHeader(text)
	if !ok {
		warnf("metadata file %s has no leading /* CTF x.y */ header", path)
	} else if major != metadataVersionMajor || minor != metadataVersionMinor {
		warnf("metadata file %s declares version %d.%d, expected %d.%d", path, major, minor, metadataVersionMajor, metadataVersionMinor)
	}

	return &metadataResult{Text: text, ByteOrder: nil, UUID: nil}, nil
}

// parseTextMetadataHeader looks for a leading "/* CTF major.minor" on
// the metadata file's first line.
func parseTextMetadataHeader(text string) (major, minor int, ok bool) {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	const prefix = "/* CTF "
	if !strings.HasPrefix(line, prefix) {
		return 0, 0, false
	}
	rest := strings.TrimPrefix(line, prefix)
	if n, err := fmt.Sscanf(rest, "%d.%d", &major, &minor); err != nil || n != 2 {
		return 0, 0, false
	}
	return major, minor, true
}

// diagLog is where warn-and-continue diagnostics go: malformed but
// recoverable metadata framing is logged and the read proceeds rather
// than aborting. Plain log.New(os.Stderr, ...), not a structured
// logging library.
var diagLog = log.New(os.Stderr, "", 0)

func warnf(format string, args ...interface{}) {
	diagLog.Printf("warning: "+format, args...)
}
