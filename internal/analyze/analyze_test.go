// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package analyze

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/store"
)

func openRepo(t *testing.T) *store.Repository {
	t.Helper()
	r, err := store.Open(filepath.Join(t.TempDir(), "kitsugi.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

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

func TestConstituentsOfNestedDocument(t *testing.T) {
	repo := openRepo(t)
	root := ingest(t, repo, "big.json", `{"inner":{"a":1},"b":2}`)

	set, err := Constituents(context.Background(), repo, root)
	if err != nil {
		t.Fatalf("constituents: %v", err)
	}
	// root, inner, a's value, b's value: 4 distinct fingerprints.
	if len(set) != 4 {
		t.Fatalf("len(constituents) = %d, want 4: %v", len(set), set)
	}
	if !set[root] {
		t.Fatalf("constituents must include the root itself")
	}
}

func TestFindPathSingleHop(t *testing.T) {
	repo := openRepo(t)
	bigRoot := ingest(t, repo, "big.json", `{"inner":{"a":1},"b":2}`)

	innerRows, err := repo.Execute(context.Background(), store.Query{
		Table:  "hash_graph",
		Select: []string{"child_hash"},
		Where:  &store.Where{Column: "parent_hash", Operator: "=", Value: bigRoot.String()},
	})
	if err != nil {
		t.Fatalf("query hash_graph: %v", err)
	}
	var innerHash canon.Fingerprint
	for _, row := range innerRows {
		s, _ := row["child_hash"].(string)
		fp, err := canon.ParseFingerprint(s)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		// the inner fragment {"a":1} has exactly one constituent child, itself
		// only discoverable by checking which child has its own children.
		childOfChild, err := repo.Execute(context.Background(), store.Query{
			Table: "hash_graph", Select: []string{"child_hash"},
			Where: &store.Where{Column: "parent_hash", Operator: "=", Value: fp.String()},
		})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(childOfChild) == 1 {
			innerHash = fp
		}
	}
	if innerHash.IsZero() {
		t.Fatalf("could not locate inner fragment hash")
	}

	result, err := FindPath(context.Background(), repo, bigRoot, innerHash)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if !result.Found {
		t.Fatalf("expected path to be found")
	}
	if result.Path != ".inner" {
		t.Fatalf("path = %q, want %q", result.Path, ".inner")
	}
}

func TestFindPathNoPath(t *testing.T) {
	repo := openRepo(t)
	a := ingest(t, repo, "a.json", `{"x":1}`)
	b := ingest(t, repo, "b.json", `{"y":2}`)

	result, err := FindPath(context.Background(), repo, a, b)
	if err != nil {
		t.Fatalf("find path: %v", err)
	}
	if result.Found {
		t.Fatalf("expected no path, got %q", result.Path)
	}
}

func TestCoverageOrdersBySymmetricDifference(t *testing.T) {
	repo := openRepo(t)
	dir := t.TempDir()

	exact := `{"a":1,"b":2}`
	overlap := `{"a":1,"c":3}`
	if err := os.WriteFile(filepath.Join(dir, "exact.json"), []byte(exact), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "overlap.json"), []byte(overlap), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ingest(t, repo, "exact.json", exact)
	ingest(t, repo, "overlap.json", overlap)

	if _, err := repo.Execute(context.Background(), store.Insert{
		Table: "reconstructed_docs",
		Data: []map[string]any{{
			"doc_name":  "doc_1",
			"root_hash": canon.Hash(decode(t, exact), "exact.json", canon.NewAnalysisVisitor()).String(),
		}},
	}); err != nil {
		t.Fatalf("insert reconstructed_docs: %v", err)
	}
	if err := repo.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rows, err := Coverage(context.Background(), repo, dir, "doc_1")
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("expected at least one coverage row")
	}
	if rows[0].File != "exact.json" {
		t.Fatalf("closest match = %s, want exact.json (rows=%v)", rows[0].File, rows)
	}
	if rows[0].SymmetricDiff != 0 {
		t.Fatalf("exact.json symmetric diff = %d, want 0", rows[0].SymmetricDiff)
	}
}

func decode(t *testing.T, docJSON string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(docJSON))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}
