// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact stores and publishes build outputs keyed by
// (run, job instance, artifact name). Payloads are content-addressed
// with BLAKE3 and compressed before storage; publishing is tolerant
// of missing outputs from failed upstream steps.
package artifact

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of an artifact payload.
type Hash [32]byte

// payloadDomainKey is the 32-byte key for BLAKE3 keyed hashing.
// Domain separation keeps artifact digests from colliding with any
// other BLAKE3 use in the system. The bytes are the ASCII domain
// name, zero-padded, readable in hex dumps without weakening the
// hash (keyed mode treats the key as opaque).
var payloadDomainKey = [32]byte{
	'c', 'o', 'n', 'v', 'e', 'y', 'o', 'r', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c',
	't', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0,
}

// HashPayload computes the payload-domain BLAKE3 keyed hash of data.
// Digests are always computed on uncompressed bytes so identical
// payloads deduplicate across compression settings.
func HashPayload(data []byte) Hash {
	hasher, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		panic("artifact: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Hash
	hasher.Sum(digest[:0])
	return digest
}

// String returns the digest as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
