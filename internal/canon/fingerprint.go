// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package canon implements the canonical hashing functor: a deterministic
// mapping from a tree of JSON-like values to a tree of fingerprints, plus the
// visitors that observe that traversal.
package canon

import (
	"encoding/hex"
	"strconv"

	"github.com/minio/highwayhash"
)

// bloomKeySeed is the fixed 32-byte key highwayhash.Sum64 requires. It need
// not be secret: BloomKey only ever feeds a bloom filter's pre-filter, never
// an authoritative lookup, so a shared fixed key across the whole process
// is fine (it just needs to be stable within one process run).
var bloomKeySeed = [32]byte{'k', 'i', 't', 's', 'u', 'g', 'i', '-', 'b', 'l', 'o', 'o', 'm'}

// Fingerprint is the SHA-256 of a node's canonical byte string, the
// universally unique (collision resistance aside) identifier for a subtree.
type Fingerprint [32]byte

// ZeroFingerprint is the zero-value Fingerprint, never produced by Hash.
var ZeroFingerprint Fingerprint

// IsZero reports whether f is the zero-value Fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == ZeroFingerprint
}

// String returns the lowercase hex encoding of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Bytes returns the finalized checksum bytes.
func (f Fingerprint) Bytes() []byte {
	return f[:]
}

// BloomKey adapts a Fingerprint to hash.Hash64, the Hashable contract
// steakknife/bloomfilter's Filter expects (grounded on hash/gitsha.go's
// GitShaDigest, which adapts a git SHA the same way). Only Sum64 is ever
// called by the filter; the rest of hash.Hash64 is unreachable and left
// unimplemented. Sum64 runs the fingerprint through highwayhash rather than
// truncating it, so the bloom filter's bit distribution doesn't just mirror
// SHA-256's own (already-uniform) low bits.
type BloomKey Fingerprint

func (k BloomKey) Sum64() uint64               { return highwayhash.Sum64(k[:], bloomKeySeed[:]) }
func (k BloomKey) Write(p []byte) (int, error) { panic("unimplemented") }
func (k BloomKey) Sum(b []byte) []byte         { panic("unimplemented") }
func (k BloomKey) Reset()                      { panic("unimplemented") }
func (k BloomKey) Size() int                   { return len(k) }
func (k BloomKey) BlockSize() int              { return len(k) }

// ParseFingerprint decodes a hex string produced by Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, err
	}
	if len(b) != len(f) {
		return f, errShortFingerprint(len(b))
	}
	copy(f[:], b)
	return f, nil
}

type errShortFingerprint int

func (e errShortFingerprint) Error() string {
	return "canon: fingerprint must be 32 bytes, got " + strconv.Itoa(int(e))
}
