// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	// Repetitive text compresses under every codec.
	payload := []byte(strings.Repeat("coverage line 1 of many\n", 200))

	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		compressed, actualTag, err := Compress(payload, tag)
		if err != nil {
			t.Fatalf("Compress(%s): %v", tag, err)
		}
		if tag != CompressionNone && actualTag != tag {
			t.Errorf("Compress(%s) fell back to %s on compressible data", tag, actualTag)
		}
		restored, err := Decompress(compressed, actualTag, len(payload))
		if err != nil {
			t.Fatalf("Decompress(%s): %v", actualTag, err)
		}
		if !bytes.Equal(restored, payload) {
			t.Errorf("round trip through %s corrupted payload", actualTag)
		}
	}
}

func TestCompressIncompressibleFallsBackToNone(t *testing.T) {
	t.Parallel()

	// A short high-entropy payload cannot shrink.
	payload := []byte{0x01, 0xfe, 0x42, 0x99, 0x7a, 0x13, 0xd5, 0x60}
	compressed, tag, err := Compress(payload, CompressionZstd)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if tag != CompressionNone {
		t.Errorf("tag = %s, want none", tag)
	}
	if !bytes.Equal(compressed, payload) {
		t.Error("fallback should return the original bytes")
	}
}

func TestHashPayloadDeterministic(t *testing.T) {
	t.Parallel()

	first := HashPayload([]byte("hello"))
	second := HashPayload([]byte("hello"))
	other := HashPayload([]byte("world"))

	if first != second {
		t.Error("same payload hashed differently")
	}
	if first == other {
		t.Error("different payloads collided")
	}
	if len(first.String()) != 64 {
		t.Errorf("hex digest length = %d, want 64", len(first.String()))
	}
}

func TestStoreKeyedByInstance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()

	// Two sibling instances publish under the same declared name.
	first := Key{RunID: "run-1", InstanceID: "test/os=linux", Name: "coverage"}
	second := Key{RunID: "run-1", InstanceID: "test/os=macos", Name: "coverage"}

	if _, err := store.Put(ctx, first, []byte("linux coverage"), CompressionNone); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, second, []byte("macos coverage"), CompressionNone); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "linux coverage" {
		t.Errorf("Get(first) = %q", got)
	}

	entries, err := store.List(ctx, "run-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("List returned %d entries, want 2", len(entries))
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	key := Key{RunID: "run-9", InstanceID: "docs/default", Name: "site"}
	payload := []byte(strings.Repeat("<html>docs</html>\n", 50))

	entry, err := store.Put(ctx, key, payload, CompressionZstd)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.Size != int64(len(payload)) {
		t.Errorf("entry.Size = %d, want %d", entry.Size, len(payload))
	}
	if entry.CompressedSize >= entry.Size {
		t.Errorf("zstd did not shrink payload: %d >= %d", entry.CompressedSize, entry.Size)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload corrupted through FSStore")
	}

	// Overwriting the same key keeps a single index entry.
	if _, err := store.Put(ctx, key, payload, CompressionZstd); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	entries, err := store.List(ctx, "run-9")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List returned %d entries, want 1", len(entries))
	}

	if _, err := store.Get(ctx, Key{RunID: "run-9", InstanceID: "missing", Name: "x"}); err == nil {
		t.Error("Get of unknown key should fail")
	}
}
