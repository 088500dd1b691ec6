// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Key identifies one stored artifact. Two sibling instances may
// publish under the same declared name without collision because the
// instance ID is part of the key.
type Key struct {
	RunID      string `json:"run_id"`
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
}

func (k Key) String() string {
	return k.RunID + "/" + k.InstanceID + "/" + k.Name
}

// Entry describes a stored artifact.
type Entry struct {
	Key            Key            `json:"key"`
	Digest         string         `json:"digest"`
	Size           int64          `json:"size"`
	CompressedSize int64          `json:"compressed_size"`
	Compression    CompressionTag `json:"compression"`
}

// Store persists artifact payloads. Implementations must be safe for
// concurrent use; sibling instances publish concurrently.
type Store interface {
	// Put stores a payload under key with the requested compression.
	// Storing the same key twice overwrites (publish is
	// at-least-once; the last write wins and both carry the same
	// content in practice).
	Put(ctx context.Context, key Key, payload []byte, tag CompressionTag) (Entry, error)

	// Get returns the uncompressed payload for key.
	Get(ctx context.Context, key Key) ([]byte, error)

	// List returns all entries for a run, sorted by key string.
	List(ctx context.Context, runID string) ([]Entry, error)
}

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	mu      sync.Mutex
	entries map[Key]Entry
	objects map[string][]byte // digest -> compressed payload
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[Key]Entry),
		objects: make(map[string][]byte),
	}
}

func (s *MemStore) Put(ctx context.Context, key Key, payload []byte, tag CompressionTag) (Entry, error) {
	compressed, actualTag, err := Compress(payload, tag)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Key:            key,
		Digest:         HashPayload(payload).String(),
		Size:           int64(len(payload)),
		CompressedSize: int64(len(compressed)),
		Compression:    actualTag,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	s.objects[entry.Digest] = append([]byte(nil), compressed...)
	return entry, nil
}

func (s *MemStore) Get(ctx context.Context, key Key) ([]byte, error) {
	s.mu.Lock()
	entry, exists := s.entries[key]
	var compressed []byte
	if exists {
		compressed = s.objects[entry.Digest]
	}
	s.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("artifact %s: not found", key)
	}
	return Decompress(compressed, entry.Compression, int(entry.Size))
}

func (s *MemStore) List(ctx context.Context, runID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	for key, entry := range s.entries {
		if key.RunID == runID {
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)
	return entries, nil
}

// FSStore is a filesystem Store. Compressed payloads live under
// objects/ addressed by digest (identical payloads from different
// instances share one object); per-run indexes live under runs/ as
// JSON entry lists.
type FSStore struct {
	root string
	mu   sync.Mutex
}

// NewFSStore creates (if needed) and opens a filesystem store rooted
// at dir.
func NewFSStore(dir string) (*FSStore, error) {
	for _, sub := range []string{"objects", "runs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact store: %w", err)
		}
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, key Key, payload []byte, tag CompressionTag) (Entry, error) {
	compressed, actualTag, err := Compress(payload, tag)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		Key:            key,
		Digest:         HashPayload(payload).String(),
		Size:           int64(len(payload)),
		CompressedSize: int64(len(compressed)),
		Compression:    actualTag,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objectPath := filepath.Join(s.root, "objects", entry.Digest)
	if _, err := os.Stat(objectPath); os.IsNotExist(err) {
		if err := writeFileAtomic(objectPath, compressed); err != nil {
			return Entry{}, fmt.Errorf("storing object: %w", err)
		}
	}

	entries, err := s.readIndex(key.RunID)
	if err != nil {
		return Entry{}, err
	}
	replaced := false
	for i := range entries {
		if entries[i].Key == key {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	if err := s.writeIndex(key.RunID, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *FSStore) Get(ctx context.Context, key Key) ([]byte, error) {
	s.mu.Lock()
	entries, err := s.readIndex(key.RunID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Key == key {
			compressed, err := os.ReadFile(filepath.Join(s.root, "objects", entry.Digest))
			if err != nil {
				return nil, fmt.Errorf("reading object for %s: %w", key, err)
			}
			return Decompress(compressed, entry.Compression, int(entry.Size))
		}
	}
	return nil, fmt.Errorf("artifact %s: not found", key)
}

func (s *FSStore) List(ctx context.Context, runID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex(runID)
}

func (s *FSStore) indexPath(runID string) string {
	return filepath.Join(s.root, "runs", runID+".json")
}

func (s *FSStore) readIndex(runID string) ([]Entry, error) {
	data, err := os.ReadFile(s.indexPath(runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run index: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing run index %s: %w", runID, err)
	}
	return entries, nil
}

func (s *FSStore) writeIndex(runID string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(runID), data); err != nil {
		return fmt.Errorf("writing run index: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename so a
// crashed publish never leaves a torn object or index behind.
func writeFileAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tempPath := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
}
