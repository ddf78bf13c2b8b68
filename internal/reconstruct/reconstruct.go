// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package reconstruct rebuilds a value tree from a root fingerprint by
// iteratively walking the content graph a Repository holds, the inverse of
// internal/canon's Hash.
package reconstruct

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/store"
)

func init() {
	gob.Register(json.Number(""))
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// DefaultCacheSize is the number of reconstructed subtrees the cross-call
// ARC cache retains.
const DefaultCacheSize = 4096

// childEdge is one row of hash_graph, narrowed to the columns the
// reconstructor needs.
type childEdge struct {
	key  string
	hash canon.Fingerprint
}

// Reconstructor rebuilds value trees from a Repository's content graph. A
// single Reconstructor may be reused across many Reconstruct calls; doing so
// lets the cross-call cache pay off.
type Reconstructor struct {
	repo  *store.Repository
	cache *lru.ARCCache
}

// New returns a Reconstructor backed by repo, with a cross-call node cache
// sized to cacheSize entries (DefaultCacheSize if cacheSize <= 0).
func New(repo *store.Repository, cacheSize int) (*Reconstructor, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: create cache: %w", err)
	}
	return &Reconstructor{repo: repo, cache: cache}, nil
}

// Reconstruct rebuilds the value tree rooted at root. Reconstruction never
// fails hard on a missing primitive: a missing hash_to_data row surfaces as
// an in-band {"error": ..., "hash": ...} marker in the returned value,
// exactly where that primitive would have been.
func (r *Reconstructor) Reconstruct(ctx context.Context, root canon.Fingerprint) (any, error) {
	memo := make(map[canon.Fingerprint]any)
	// onStack holds the composites whose children are being resolved: the
	// ancestors of the node on top of the stack.
	onStack := make(map[canon.Fingerprint]bool)
	stack := []canon.Fingerprint{root}

	for len(stack) > 0 {
		h := stack[len(stack)-1]

		if _, done := memo[h]; done {
			stack = stack[:len(stack)-1]
			delete(onStack, h)
			continue
		}
		if cached, ok := r.cache.Get(h); ok {
			memo[h] = cached
			stack = stack[:len(stack)-1]
			delete(onStack, h)
			continue
		}

		edges, err := r.childEdges(ctx, h)
		if err != nil {
			return nil, err
		}

		if len(edges) == 0 {
			val, err := r.leafValue(ctx, h)
			if err != nil {
				return nil, err
			}
			memo[h] = val
			r.cache.Add(h, val)
			stack = stack[:len(stack)-1]
			delete(onStack, h)
			continue
		}

		onStack[h] = true
		allReady := true
		for _, e := range edges {
			if _, ok := memo[e.hash]; ok {
				continue
			}
			if cached, ok := r.cache.Get(e.hash); ok {
				memo[e.hash] = cached
				continue
			}
			if onStack[e.hash] {
				// A parent→child edge pointing back at an ancestor would
				// mean the graph contains a cycle, which a content-addressed
				// hash can never actually produce (a node's hash depends on
				// its children's). Break it defensively rather than loop
				// forever, treating the cyclic child as unresolved.
				memo[e.hash] = map[string]any{"error": "cycle detected reconstructing hash", "hash": e.hash.String()}
				continue
			}
			stack = append(stack, e.hash)
			allReady = false
		}
		if !allReady {
			continue
		}

		val := buildComposite(edges, memo)
		memo[h] = val
		r.cache.Add(h, val)
		stack = stack[:len(stack)-1]
		delete(onStack, h)
	}

	return memo[root], nil
}

// buildComposite assembles h's value from its already-memoized children,
// choosing an array when every child_key is a non-negative decimal integer
// (ties favor arrays, e.g. a lone "0"-keyed child) or an object otherwise.
func buildComposite(edges []childEdge, memo map[canon.Fingerprint]any) any {
	if allNumericKeys(edges) {
		arr := make([]any, len(edges))
		for _, e := range edges {
			idx, _ := strconv.Atoi(e.key)
			arr[idx] = memo[e.hash]
		}
		return arr
	}

	obj := make(map[string]any, len(edges))
	for _, e := range edges {
		obj[e.key] = memo[e.hash]
	}
	return obj
}

func allNumericKeys(edges []childEdge) bool {
	for _, e := range edges {
		if e.key == "" || strings.ContainsFunc(e.key, func(r rune) bool { return r < '0' || r > '9' }) {
			return false
		}
	}
	return true
}

func (r *Reconstructor) childEdges(ctx context.Context, h canon.Fingerprint) ([]childEdge, error) {
	rows, err := r.repo.Execute(ctx, store.Query{
		Table:  "hash_graph",
		Select: []string{"child_key", "child_hash"},
		Where:  &store.Where{Column: "parent_hash", Operator: "=", Value: h.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("reconstruct: query hash_graph for %s: %w", h, err)
	}

	edges := make([]childEdge, 0, len(rows))
	for _, row := range rows {
		childHash, err := canon.ParseFingerprint(fmt.Sprint(row["child_hash"]))
		if err != nil {
			return nil, fmt.Errorf("reconstruct: malformed child_hash in hash_graph: %w", err)
		}
		edges = append(edges, childEdge{key: fmt.Sprint(row["child_key"]), hash: childHash})
	}
	return edges, nil
}

// cacheEntry is one ARC cache record as persisted to disk, grounded on
// store.fingerprintInMemoryCache's gob-over-snappy snapshot format.
type cacheEntry struct {
	Hash  canon.Fingerprint
	Value any
}

// PersistCache snapshots the cross-call node cache to path as
// snappy-compressed gob, a pure warm-start optimization consulted by
// RestoreCache on a later invocation; it is never required for a correct
// Reconstruct.
func (r *Reconstructor) PersistCache(path string) error {
	keys := r.cache.Keys()
	entries := make([]cacheEntry, 0, len(keys))
	for _, k := range keys {
		fp, ok := k.(canon.Fingerprint)
		if !ok {
			continue
		}
		v, ok := r.cache.Get(fp)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{Hash: fp, Value: v})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reconstruct: create cache snapshot %s: %w", path, err)
	}
	defer f.Close()

	sw := snappy.NewBufferedWriter(f)
	if err := gob.NewEncoder(sw).Encode(entries); err != nil {
		return fmt.Errorf("reconstruct: encode cache snapshot: %w", err)
	}
	return sw.Close()
}

// RestoreCache loads a snapshot written by PersistCache, pre-warming the
// cross-call cache. A missing file is not an error: the cache just starts
// cold and every lookup falls through to the Repository.
func (r *Reconstructor) RestoreCache(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reconstruct: open cache snapshot %s: %w", path, err)
	}
	defer f.Close()

	var entries []cacheEntry
	if err := gob.NewDecoder(snappy.NewReader(f)).Decode(&entries); err != nil {
		return fmt.Errorf("reconstruct: decode cache snapshot: %w", err)
	}
	for _, e := range entries {
		r.cache.Add(e.Hash, e.Value)
	}
	return nil
}

func (r *Reconstructor) leafValue(ctx context.Context, h canon.Fingerprint) (any, error) {
	rows, err := r.repo.Execute(ctx, store.Query{
		Table:  "hash_to_data",
		Select: []string{"data"},
		Where:  &store.Where{Column: "hash", Operator: "=", Value: h.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("reconstruct: query hash_to_data for %s: %w", h, err)
	}
	if len(rows) == 0 {
		return map[string]any{"error": "Primitive data not found for hash", "hash": h.String()}, nil
	}

	dec := json.NewDecoder(strings.NewReader(fmt.Sprint(rows[0]["data"])))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("reconstruct: decode primitive data for %s: %w", h, err)
	}
	return v, nil
}
