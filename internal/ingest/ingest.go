// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package ingest walks a directory of JSON files, canonically hashes each
// one, and persists the resulting content graph to a Repository as a full
// rebuild.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/store"
)

// reservedSuffixes names files the walk must never attempt to parse: the
// store's own database file, and the tool's own Go sources, should either
// ever be found under the ingested directory.
var reservedSuffixes = []string{".db", ".go"}

// Stats summarizes one Process run, reported back to the CLI for a final
// log line.
type Stats struct {
	FilesSeen     int
	FilesIngested int
	FilesSkipped  int
}

// Process walks dir (recursive, sorted per directory), canonically hashes
// every JSON file found, rewrites each file pretty-printed, and replaces the
// Repository's content graph with the result of this run. A parse failure
// on one file is logged and skipped; it never aborts the run. A failure
// persisting the result to the Repository is returned as an error.
func Process(ctx context.Context, repo *store.Repository, dir string) (Stats, error) {
	files, err := collectJSONFiles(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("walk %s: %w", dir, err)
	}

	stats := Stats{FilesSeen: len(files)}
	wv := canon.NewWriteVisitor()

	bar := pb.New(len(files)).Prefix("Ingesting:")
	bar.Output = os.Stderr
	bar.Start()
	defer bar.Finish()

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		if err := ingestFile(path, rel, wv); err != nil {
			log.WithField("file", rel).WithError(err).Warn("skipping file")
			stats.FilesSkipped++
			bar.Increment()
			continue
		}
		stats.FilesIngested++
		bar.Increment()
	}

	if err := persist(ctx, repo, wv); err != nil {
		return stats, err
	}
	return stats, nil
}

// collectJSONFiles returns every regular file under dir not matching a
// reserved suffix, sorted per directory for deterministic traversal order.
func collectJSONFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if isReserved(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isReserved(path string) bool {
	for _, suf := range reservedSuffixes {
		if strings.HasSuffix(path, suf) {
			return true
		}
	}
	return false
}

// ingestFile parses path as JSON, strips any reserved hash member (handled
// implicitly by canon.Hash as it descends into every object), hashes it
// into wv, and rewrites path pretty-printed.
func ingestFile(path, relPath string, wv *canon.WriteVisitor) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fmt.Errorf("empty file")
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("not valid json: %w", err)
	}

	canon.Hash(doc, relPath, wv)

	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	if err := os.WriteFile(path, append(pretty, '\n'), 0o644); err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}
	return nil
}

// persist replaces the Repository's four primary relations with wv's
// batches and rebuilds the full-text index, in a single transaction.
func persist(ctx context.Context, repo *store.Repository, wv *canon.WriteVisitor) error {
	if err := repo.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}

	batches := []store.BatchInsert{
		{Table: "hash_index", Data: indexRows(wv), Ignore: true},
		{Table: "hash_graph", Data: graphRows(wv), Ignore: true},
		{Table: "hash_to_data", Data: dataRows(wv), Ignore: true},
	}
	if err := repo.SaveBatch(ctx, batches); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	if _, err := repo.Execute(ctx, store.RebuildFTS{Table: "data_search_idx"}); err != nil {
		return fmt.Errorf("rebuild fts: %w", err)
	}
	if err := repo.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func indexRows(wv *canon.WriteVisitor) []map[string]any {
	rows := make([]map[string]any, len(wv.Index))
	for i, r := range wv.Index {
		rows[i] = map[string]any{"hash": r.Hash.String(), "location": r.Location}
	}
	return rows
}

func graphRows(wv *canon.WriteVisitor) []map[string]any {
	rows := make([]map[string]any, len(wv.Graph))
	for i, r := range wv.Graph {
		rows[i] = map[string]any{"parent_hash": r.ParentHash.String(), "child_key": r.ChildKey, "child_hash": r.ChildHash.String()}
	}
	return rows
}

func dataRows(wv *canon.WriteVisitor) []map[string]any {
	rows := make([]map[string]any, len(wv.Data))
	for i, r := range wv.Data {
		rows[i] = map[string]any{"hash": r.Hash.String(), "data": r.Data}
	}
	return rows
}
