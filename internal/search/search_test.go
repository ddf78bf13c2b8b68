// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package search

import (
	"context"
	"encoding/json"
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

func ingestAndIndexFTS(t *testing.T, repo *store.Repository, file, docJSON string) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(docJSON))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	wv := canon.NewWriteVisitor()
	canon.Hash(doc, file, wv)

	ctx := context.Background()
	indexData := make([]map[string]any, len(wv.Index))
	for i, r := range wv.Index {
		indexData[i] = map[string]any{"hash": r.Hash.String(), "location": r.Location}
	}
	dataData := make([]map[string]any, len(wv.Data))
	for i, r := range wv.Data {
		dataData[i] = map[string]any{"hash": r.Hash.String(), "data": r.Data}
	}

	if _, err := repo.Execute(ctx, store.Insert{Table: "hash_index", Data: indexData, Ignore: true}); err != nil {
		t.Fatalf("insert hash_index: %v", err)
	}
	if _, err := repo.Execute(ctx, store.Insert{Table: "hash_to_data", Data: dataData, Ignore: true}); err != nil {
		t.Fatalf("insert hash_to_data: %v", err)
	}
	if _, err := repo.Execute(ctx, store.RebuildFTS{Table: "data_search_idx"}); err != nil {
		t.Fatalf("rebuild fts: %v", err)
	}
	if err := repo.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestRunFindsMatchingLocation(t *testing.T) {
	repo := openRepo(t)
	ingestAndIndexFTS(t, repo, "a.json", `{"msg":"hello world"}`)

	result, err := Run(context.Background(), repo, "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalMatches != 1 {
		t.Fatalf("TotalMatches = %d, want 1", result.TotalMatches)
	}
	values, ok := result.MatchesByLocation["a.json:.msg"]
	if !ok {
		t.Fatalf("no match recorded for a.json:.msg, got %v", result.MatchesByLocation)
	}
	if len(values) != 1 || values[0] != `"hello world"` {
		t.Fatalf("values = %v, want [\"hello world\"]", values)
	}
}

func TestRunNoMatches(t *testing.T) {
	repo := openRepo(t)
	ingestAndIndexFTS(t, repo, "a.json", `{"msg":"hello world"}`)

	result, err := Run(context.Background(), repo, "goodbye")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalMatches != 0 {
		t.Fatalf("TotalMatches = %d, want 0", result.TotalMatches)
	}
}

func TestRunInvalidQuerySyntaxIsStructuredError(t *testing.T) {
	repo := openRepo(t)
	ingestAndIndexFTS(t, repo, "a.json", `{"msg":"hello world"}`)

	_, err := Run(context.Background(), repo, `"unterminated`)
	if err == nil {
		t.Fatalf("expected an error for malformed FTS5 syntax")
	}
	qerr, ok := err.(*QueryError)
	if !ok {
		t.Fatalf("error type = %T, want *QueryError", err)
	}
	if qerr.Query != `"unterminated` || qerr.Hint == "" {
		t.Fatalf("unexpected QueryError: %+v", qerr)
	}
}
