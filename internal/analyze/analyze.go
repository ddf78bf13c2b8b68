// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package analyze implements the read-side graph queries that do not
// reconstruct a full document: constituent-hash enumeration, coverage
// reporting, and path-finding between two fingerprints.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/steakknife/bloomfilter"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/kerr"
	"github.com/mikemol/kitsugi/internal/store"
)

// constituentFilterCapacity sizes the bloom pre-filter in front of the
// visited set, mirroring store.gitSHAFilter's fixed capacity rather than
// growing the filter to fit one document (§4.6).
const constituentFilterCapacity = 64 * 1024

// Constituents computes the transitive closure of hash_graph edges reachable
// from root, following parent_hash -> child_hash. The walk is iterative and
// cycle-safe via an explicit visited set.
func Constituents(ctx context.Context, repo *store.Repository, root canon.Fingerprint) (map[canon.Fingerprint]bool, error) {
	visited := map[canon.Fingerprint]bool{root: true}
	filter, err := bloomfilter.NewOptimal(constituentFilterCapacity, 0.0001)
	if err != nil {
		return nil, fmt.Errorf("analyze: create bloom filter: %w", err)
	}
	filter.Add(canon.BloomKey(root))

	queue := []canon.Fingerprint{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := childHashes(ctx, repo, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			// The filter only ever turns a definite negative into a skipped
			// map probe; a "maybe" result still falls through to the exact
			// check, so a false positive can never cause a missed re-queue.
			if filter.Contains(canon.BloomKey(child)) && visited[child] {
				continue
			}
			visited[child] = true
			filter.Add(canon.BloomKey(child))
			queue = append(queue, child)
		}
	}
	return visited, nil
}

func childHashes(ctx context.Context, repo *store.Repository, parent canon.Fingerprint) ([]canon.Fingerprint, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "hash_graph",
		Select: []string{"child_hash"},
		Where:  &store.Where{Column: "parent_hash", Operator: "=", Value: parent.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: query children of %s: %w", parent, err)
	}
	out := make([]canon.Fingerprint, 0, len(rows))
	for _, row := range rows {
		s, _ := row["child_hash"].(string)
		fp, err := canon.ParseFingerprint(s)
		if err != nil {
			return nil, fmt.Errorf("analyze: malformed child_hash: %w", err)
		}
		out = append(out, fp)
	}
	return out, nil
}

// CoverageRow reports one source file's overlap with a conceptual
// document's constituent set.
type CoverageRow struct {
	File          string
	Intersection  int
	SymmetricDiff int
}

// Coverage computes, for docName's constituent set C, the intersection and
// symmetric-difference size against every source file that contributed a
// fragment to C, re-hashing each file from sourceDir. Rows are sorted by
// ascending symmetric-difference size (closest match first).
func Coverage(ctx context.Context, repo *store.Repository, sourceDir, docName string) ([]CoverageRow, error) {
	root, err := rootForDoc(ctx, repo, docName)
	if err != nil {
		return nil, err
	}

	constituents, err := Constituents(ctx, repo, root)
	if err != nil {
		return nil, err
	}

	files, err := contributingFiles(ctx, repo, constituents)
	if err != nil {
		return nil, err
	}

	rows := make([]CoverageRow, 0, len(files))
	for _, file := range files {
		s, err := rehashFile(filepath.Join(sourceDir, file), file)
		if err != nil {
			log.WithField("file", file).WithError(err).Warn("skipping unreadable source file in coverage report")
			continue
		}
		intersection := 0
		for fp := range constituents {
			if s[fp] {
				intersection++
			}
		}
		symmetricDiff := len(constituents) + len(s) - 2*intersection
		rows = append(rows, CoverageRow{File: file, Intersection: intersection, SymmetricDiff: symmetricDiff})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SymmetricDiff != rows[j].SymmetricDiff {
			return rows[i].SymmetricDiff < rows[j].SymmetricDiff
		}
		return rows[i].File < rows[j].File
	})
	return rows, nil
}

// Sources lists the distinct source files that contributed at least one
// fragment to docName's constituent set.
func Sources(ctx context.Context, repo *store.Repository, docName string) ([]string, error) {
	root, err := rootForDoc(ctx, repo, docName)
	if err != nil {
		return nil, err
	}
	constituents, err := Constituents(ctx, repo, root)
	if err != nil {
		return nil, err
	}
	return contributingFiles(ctx, repo, constituents)
}

// Root resolves docName to its reconstructed_docs root fingerprint.
func Root(ctx context.Context, repo *store.Repository, docName string) (canon.Fingerprint, error) {
	return rootForDoc(ctx, repo, docName)
}

func rootForDoc(ctx context.Context, repo *store.Repository, docName string) (canon.Fingerprint, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "reconstructed_docs",
		Select: []string{"root_hash"},
		Where:  &store.Where{Column: "doc_name", Operator: "=", Value: docName},
		Limit:  1,
	})
	if err != nil {
		return canon.Fingerprint{}, fmt.Errorf("analyze: query reconstructed_docs: %w", err)
	}
	if len(rows) == 0 {
		return canon.Fingerprint{}, fmt.Errorf("%w: no such document %q", kerr.ErrNotFound, docName)
	}
	s, _ := rows[0]["root_hash"].(string)
	return canon.ParseFingerprint(s)
}

func contributingFiles(ctx context.Context, repo *store.Repository, constituents map[canon.Fingerprint]bool) ([]string, error) {
	values := make([]any, 0, len(constituents))
	for fp := range constituents {
		values = append(values, fp.String())
	}
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "hash_index",
		Select: []string{"DISTINCT location"},
		Where:  &store.Where{Column: "hash", Operator: "IN", Value: values},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: query contributing locations: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, row := range rows {
		loc, _ := row["location"].(string)
		file := fileFromLocation(loc)
		if file == "" || seen[file] {
			continue
		}
		seen[file] = true
		files = append(files, file)
	}
	return files, nil
}

// fileFromLocation splits a "<file>:<path>" location back into its file
// component.
func fileFromLocation(loc string) string {
	i := strings.LastIndex(loc, ":")
	if i < 0 {
		return ""
	}
	return loc[:i]
}

func rehashFile(path, relName string) (map[canon.Fingerprint]bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerr.ErrParse, relName, err)
	}
	av := canon.NewAnalysisVisitor()
	canon.Hash(doc, relName, av)
	out := make(map[canon.Fingerprint]bool, len(av.Hashes))
	for fp := range av.Hashes {
		out[fp] = true
	}
	return out, nil
}

// PathResult is the outcome of FindPath: either a JQ-style path expression
// from parent down to child, or Found == false.
type PathResult struct {
	Path  string
	Found bool
}

type pathFrame struct {
	hash canon.Fingerprint
	key  string
	prev *pathFrame
}

// FindPath performs a breadth-first search upward from child, following
// hash_graph edges where child_hash equals the current fingerprint, until
// parent is reached. The accumulated edge keys are already in root-to-leaf
// order by construction: each new frame records the edge one level closer
// to parent, so walking the prev chain from the found frame down to the
// initial child frame yields the segments in the right order without a
// separate reversal pass.
func FindPath(ctx context.Context, repo *store.Repository, parent, child canon.Fingerprint) (PathResult, error) {
	if parent == child {
		return PathResult{Path: ".", Found: true}, nil
	}

	visited := map[canon.Fingerprint]bool{child: true}
	queue := []*pathFrame{{hash: child}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		parents, err := parentEdges(ctx, repo, cur.hash)
		if err != nil {
			return PathResult{}, err
		}
		for _, p := range parents {
			if visited[p.parentHash] {
				continue
			}
			visited[p.parentHash] = true
			next := &pathFrame{hash: p.parentHash, key: p.childKey, prev: cur}
			if p.parentHash == parent {
				return PathResult{Path: buildPath(next), Found: true}, nil
			}
			queue = append(queue, next)
		}
	}
	return PathResult{Found: false}, nil
}

func buildPath(found *pathFrame) string {
	var b strings.Builder
	for f := found; f.prev != nil; f = f.prev {
		b.WriteString(formatSegment(f.key))
	}
	return b.String()
}

func formatSegment(key string) string {
	if isAllDigits(key) {
		return "[" + key + "]"
	}
	return "." + key
}

func isAllDigits(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}

type parentEdge struct {
	parentHash canon.Fingerprint
	childKey   string
}

func parentEdges(ctx context.Context, repo *store.Repository, child canon.Fingerprint) ([]parentEdge, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "hash_graph",
		Select: []string{"parent_hash", "child_key"},
		Where:  &store.Where{Column: "child_hash", Operator: "=", Value: child.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: query parents of %s: %w", child, err)
	}
	out := make([]parentEdge, 0, len(rows))
	for _, row := range rows {
		s, _ := row["parent_hash"].(string)
		fp, err := canon.ParseFingerprint(s)
		if err != nil {
			return nil, fmt.Errorf("analyze: malformed parent_hash: %w", err)
		}
		key, _ := row["child_key"].(string)
		out = append(out, parentEdge{parentHash: fp, childKey: key})
	}
	return out, nil
}
