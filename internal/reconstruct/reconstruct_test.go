// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package reconstruct

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/store"
)

func ingest(t *testing.T, repo *store.Repository, file, docJSON string) canon.Fingerprint {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(docJSON))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	wv := canon.NewWriteVisitor()
	root := canon.Hash(doc, file, wv)

	ctx := context.Background()
	indexData := make([]map[string]any, len(wv.Index))
	for i, r := range wv.Index {
		indexData[i] = map[string]any{"hash": r.Hash.String(), "location": r.Location}
	}
	graphData := make([]map[string]any, len(wv.Graph))
	for i, r := range wv.Graph {
		graphData[i] = map[string]any{"parent_hash": r.ParentHash.String(), "child_key": r.ChildKey, "child_hash": r.ChildHash.String()}
	}
	dataData := make([]map[string]any, len(wv.Data))
	for i, r := range wv.Data {
		dataData[i] = map[string]any{"hash": r.Hash.String(), "data": r.Data}
	}

	if _, err := repo.Execute(ctx, store.Insert{Table: "hash_index", Data: indexData, Ignore: true}); err != nil {
		t.Fatalf("insert hash_index: %v", err)
	}
	if _, err := repo.Execute(ctx, store.Insert{Table: "hash_graph", Data: graphData, Ignore: true}); err != nil {
		t.Fatalf("insert hash_graph: %v", err)
	}
	if _, err := repo.Execute(ctx, store.Insert{Table: "hash_to_data", Data: dataData, Ignore: true}); err != nil {
		t.Fatalf("insert hash_to_data: %v", err)
	}
	if err := repo.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return root
}

func openRepo(t *testing.T) *store.Repository {
	t.Helper()
	r, err := store.Open(filepath.Join(t.TempDir(), "kitsugi.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestReconstructRoundTrip(t *testing.T) {
	repo := openRepo(t)
	root := ingest(t, repo, "a.json", `{"x":1,"y":[2,3]}`)

	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	got, err := rc.Reconstruct(context.Background(), root)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	want := map[string]any{"x": json.Number("1"), "y": []any{json.Number("2"), json.Number("3")}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reconstruct = %#v, want %#v", got, want)
	}
}

func TestReconstructNestedObjectRoundTrip(t *testing.T) {
	repo := openRepo(t)
	root := ingest(t, repo, "a.json", `{"inner":{"a":1,"b":[true,false,null]}}`)

	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	got, err := rc.Reconstruct(context.Background(), root)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	want := map[string]any{"inner": map[string]any{"a": json.Number("1"), "b": []any{true, false, nil}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reconstruct = %#v, want %#v", got, want)
	}
}

func TestReconstructSharedArraySubtreeAcrossTwoFiles(t *testing.T) {
	repo := openRepo(t)
	ingest(t, repo, "a.json", `{"shared":[1,2,3]}`)
	root := ingest(t, repo, "b.json", `{"shared":[1,2,3]}`)

	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	got, err := rc.Reconstruct(context.Background(), root)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	want := map[string]any{"shared": []any{json.Number("1"), json.Number("2"), json.Number("3")}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reconstruct = %#v, want %#v (duplicate hash_graph edges from the shared array must not inflate its length)", got, want)
	}
}

func TestReconstructMissingPrimitiveYieldsSentinel(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	root, err := canon.ParseFingerprint(strings.Repeat("0", 64))
	if err != nil {
		t.Fatalf("parse fingerprint: %v", err)
	}

	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	got, err := rc.Reconstruct(ctx, root)
	if err != nil {
		t.Fatalf("reconstruct should not fail hard: %v", err)
	}

	errMap, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected sentinel map, got %#v", got)
	}
	if errMap["error"] != "Primitive data not found for hash" {
		t.Fatalf("unexpected sentinel: %#v", errMap)
	}
}

func TestCacheSnapshotRoundTrip(t *testing.T) {
	repo := openRepo(t)
	root := ingest(t, repo, "a.json", `{"x":1,"y":[2,3]}`)

	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	if _, err := rc.Reconstruct(context.Background(), root); err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	snapshotPath := filepath.Join(t.TempDir(), "cache.snappy.gob")
	if err := rc.PersistCache(snapshotPath); err != nil {
		t.Fatalf("persist cache: %v", err)
	}

	restored, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	if err := restored.RestoreCache(snapshotPath); err != nil {
		t.Fatalf("restore cache: %v", err)
	}
	if _, ok := restored.cache.Get(root); !ok {
		t.Fatalf("expected root fingerprint to be pre-warmed in restored cache")
	}
}

func TestRestoreCacheToleratesMissingFile(t *testing.T) {
	repo := openRepo(t)
	rc, err := New(repo, 0)
	if err != nil {
		t.Fatalf("new reconstructor: %v", err)
	}
	if err := rc.RestoreCache(filepath.Join(t.TempDir(), "does-not-exist.gob")); err != nil {
		t.Fatalf("restore cache should tolerate a missing file: %v", err)
	}
}
