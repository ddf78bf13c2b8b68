// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package canon

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// HashKeyMember is the reserved object member a prior ingestion may have left
// behind. It is stripped from every object before that object's fingerprint
// is computed, so re-ingesting an already-processed file reproduces the same
// fingerprints as ingesting the original.
const HashKeyMember = "_sha256_hash"

// hasher carries the per-traversal memoization table and the file path
// being hashed. It is not exported: callers only ever see the pure functor
// Hash.
type hasher struct {
	visitor Visitor
	file    string
	memo    map[uintptr]Fingerprint
}

// pendingChild is one already-fingerprinted immediate child of a composite
// node, queued for reporting once the composite's own fingerprint (and thus
// the Parent field of each child's event) is known.
type pendingChild struct {
	key         string
	path        string
	fp          Fingerprint
	isPrimitive bool
}

// Hash is the canonical hashing functor: a deterministic mapping from a tree
// of JSON-like values (as produced by encoding/json with UseNumber) to a
// Fingerprint, reporting every node it visits to v exactly once. file is the
// repo-relative path recorded in each emitted location.
//
// Every non-root node is reported by its parent, once the parent's own
// fingerprint is known (so the event's Parent field can be set correctly);
// the root, having no parent, is reported here after the recursive hash
// completes.
func Hash(node any, file string, v Visitor) Fingerprint {
	h := &hasher{visitor: v, file: file, memo: make(map[uintptr]Fingerprint)}
	fp := h.hashNode(node, "")
	h.visit(fp, "", isPrimitive(node), nil, "")
	return fp
}

// location renders the "<file>:<path>" form for the given dotted path, which
// is "" for the document root (rendered as ".").
func (h *hasher) location(path string) string {
	if path == "" {
		return h.file + ":."
	}
	return h.file + ":" + path
}

// hashNode computes node's fingerprint only; it never reports an event for
// node itself, since only node's caller (who alone knows node's parent and
// child key) can do that correctly. path is node's own dotted path ("" at
// root).
func (h *hasher) hashNode(node any, path string) Fingerprint {
	switch v := node.(type) {
	case map[string]any:
		return h.hashObject(v, path)
	case []any:
		return h.hashArray(v, path)
	default:
		return h.hashPrimitive(node)
	}
}

// hashObject always recurses into every member (so every occurrence of a
// shared subtree still gets its own location event, per occurrence) but
// skips recomputing the canonical string and SHA-256 for this object's own
// fingerprint when a prior occurrence (same backing map, a reference type)
// already computed it. The memo is purely an optimization against redundant
// hashing work; it never skips event reporting.
func (h *hasher) hashObject(obj map[string]any, path string) Fingerprint {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k == HashKeyMember {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]pendingChild, len(keys))
	childHashes := make([]Fingerprint, len(keys))
	for i, k := range keys {
		childPath := path + "." + k
		fp := h.hashNode(obj[k], childPath)
		children[i] = pendingChild{key: k, path: childPath, fp: fp, isPrimitive: isPrimitive(obj[k])}
		childHashes[i] = fp
	}

	ptr, memoable := mapPointer(obj)
	var fp Fingerprint
	if cached, seen := h.memo[ptr]; memoable && seen {
		fp = cached
	} else {
		fp = sha256.Sum256([]byte(canonicalObject(keys, childHashes)))
		if memoable {
			h.memo[ptr] = fp
		}
	}

	h.reportChildren(fp, children)
	return fp
}

// hashArray follows the same always-recurse, skip-only-the-final-hash
// discipline as hashObject.
func (h *hasher) hashArray(arr []any, path string) Fingerprint {
	children := make([]pendingChild, len(arr))
	childHashes := make([]Fingerprint, len(arr))
	for i, elem := range arr {
		childPath := fmt.Sprintf("%s.[%d]", path, i)
		fp := h.hashNode(elem, childPath)
		children[i] = pendingChild{key: strconv.Itoa(i), path: childPath, fp: fp, isPrimitive: isPrimitive(elem)}
		childHashes[i] = fp
	}

	ptr, memoable := slicePointer(arr)
	var fp Fingerprint
	if cached, seen := h.memo[ptr]; memoable && seen {
		fp = cached
	} else {
		fp = sha256.Sum256([]byte(canonicalArray(childHashes)))
		if memoable {
			h.memo[ptr] = fp
		}
	}

	h.reportChildren(fp, children)
	return fp
}

// reportChildren emits exactly one event per child now that parentFp (the
// composite's own fingerprint) is known.
func (h *hasher) reportChildren(parentFp Fingerprint, children []pendingChild) {
	for _, c := range children {
		h.visit(c.fp, c.path, c.isPrimitive, &parentFp, c.key)
	}
}

func (h *hasher) hashPrimitive(node any) Fingerprint {
	serialized := canonicalPrimitive(node)
	fp := sha256.Sum256([]byte(serialized))

	if wv, ok := h.visitor.(*WriteVisitor); ok {
		wv.VisitPrimitiveData(fp, serialized)
	}
	return fp
}

// visit reports a single Event for a node whose fingerprint has already been
// computed. parent is nil only for the document root.
func (h *hasher) visit(fp Fingerprint, path string, isPrim bool, parent *Fingerprint, childKey string) {
	h.visitor.Visit(Event{Hash: fp, Location: h.location(path), IsPrimitive: isPrim, Parent: parent, ChildKey: childKey})
}

func isPrimitive(node any) bool {
	switch node.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func mapPointer(m map[string]any) (uintptr, bool) {
	if m == nil {
		return 0, false
	}
	return reflect.ValueOf(m).Pointer(), true
}

func slicePointer(s []any) (uintptr, bool) {
	if s == nil {
		return 0, false
	}
	return reflect.ValueOf(s).Pointer(), true
}

// canonicalObject renders "{ k1:h1, k2:h2 }" (empty: "{  }") for an object
// whose members have already been sorted lexicographically by code point.
func canonicalObject(keys []string, childHashes []Fingerprint) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ":" + childHashes[i].String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// canonicalArray renders "[ h0, h1, ... ]" (empty: "[  ]").
func canonicalArray(childHashes []Fingerprint) string {
	parts := make([]string, len(childHashes))
	for i, fp := range childHashes {
		parts[i] = fp.String()
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}

// canonicalPrimitive renders the minimal JSON serialization of a scalar,
// preserving the source's encoding of numbers via json.Number and never
// escaping non-ASCII characters to \u sequences.
func canonicalPrimitive(node any) string {
	switch v := node.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case string:
		return encodeJSONString(v)
	default:
		// Defensive: encoding/json with UseNumber never produces any other
		// scalar type, but fall back to the standard encoder rather than
		// panicking if a caller constructs a node tree by hand.
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// encodeJSONString double-quotes s with standard JSON escaping, emitting
// non-ASCII characters as literal UTF-8 rather than \u escapes.
func encodeJSONString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
