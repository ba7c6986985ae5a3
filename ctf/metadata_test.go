// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMetadataText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata")
	text := "/* CTF 1.8 */\n\ntrace { byte_order = le; };\n"
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := readMetadata(path)
	if err != nil {
		t.Fatalf("readMetadata: %v", err)
	}
	if res.Text != text {
		t.Errorf("Text = %q, want %q", res.Text, text)
	}
	if res.ByteOrder != nil {
		t.Errorf("ByteOrder = %v, want nil for text-mode metadata", res.ByteOrder)
	}
	if res.UUID != nil {
		t.Errorf("UUID = %v, want nil for text-mode metadata", res.UUID)
	}
}

func TestParseTextMetadataHeader(t *testing.T) {
	tests := []struct {
		text      string
		wantMajor int
		wantMinor int
		wantOK    bool
	}{
		{"/* CTF 1.8 */\ntrace {};", 1, 8, true},
		{"trace {};", 0, 0, false},
	}
	for _, tt := range tests {
		major, minor, ok := parseTextMetadataHeader(tt.text)
		if ok != tt.wantOK || major != tt.wantMajor || minor != tt.wantMinor {
			t.Errorf("parseTextMetadataHeader(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.text, major, minor, ok, tt.wantMajor, tt.wantMinor, tt.wantOK)
		}
	}
}
