// Copyright 2024 The go-ctf Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctf

import (
	"errors"
	"io"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	e := newError(ErrIO, "read", "/tmp/x", io.EOF)
	if !errors.Is(e, io.EOF) {
		t.Error("errors.Is(e, io.EOF) = false, want true")
	}
	var got *Error
	if !errors.As(e, &got) {
		t.Fatal("errors.As into *Error failed")
	}
	if got.Kind != ErrIO {
		t.Errorf("Kind = %v, want ErrIO", got.Kind)
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	e := newError(ErrNotFound, "open trace", "/tmp/missing", errors.New("no such file"))
	msg := e.Error()
	for _, want := range []string{"open trace", "/tmp/missing", "no such file"} {
		if !contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
