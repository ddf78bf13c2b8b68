// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package splice selects the true roots of the content graph — fragment
// fingerprints that are not themselves a child of some other fragment — and
// records them as named conceptual documents.
package splice

import (
	"context"
	"fmt"
	"sort"

	"github.com/steakknife/bloomfilter"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/store"
)

// Stats summarizes one Run.
type Stats struct {
	Candidates int
	TrueRoots  int
}

// Run recomputes reconstructed_docs from scratch: it finds every candidate
// root (a fingerprint observed at a location ending ":."), excludes those
// that also appear as a child_hash anywhere in hash_graph, and names the
// remainder doc_1, doc_2, ... in ascending fingerprint order. The relation
// is fully replaced and committed.
func Run(ctx context.Context, repo *store.Repository) (Stats, error) {
	candidates, err := candidateRoots(ctx, repo)
	if err != nil {
		return Stats{}, err
	}
	if len(candidates) == 0 {
		if err := replaceDocs(ctx, repo, nil); err != nil {
			return Stats{}, err
		}
		return Stats{}, nil
	}

	contained, err := containedSet(ctx, repo, candidates)
	if err != nil {
		return Stats{}, err
	}

	var trueRoots []canon.Fingerprint
	for _, c := range candidates {
		if !contained[c] {
			trueRoots = append(trueRoots, c)
		}
	}
	sort.Slice(trueRoots, func(i, j int) bool {
		return trueRoots[i].String() < trueRoots[j].String()
	})

	if err := replaceDocs(ctx, repo, trueRoots); err != nil {
		return Stats{}, err
	}
	return Stats{Candidates: len(candidates), TrueRoots: len(trueRoots)}, nil
}

// candidateRoots returns the distinct fingerprints observed at a
// root location (one whose path segment is ":.").
func candidateRoots(ctx context.Context, repo *store.Repository) ([]canon.Fingerprint, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "hash_index",
		Select: []string{"DISTINCT hash"},
		Where:  &store.Where{Column: "location", Operator: "LIKE", Value: "%:."},
	})
	if err != nil {
		return nil, fmt.Errorf("splice: query candidate roots: %w", err)
	}

	out := make([]canon.Fingerprint, 0, len(rows))
	for _, row := range rows {
		s, _ := row["hash"].(string)
		if s == "" {
			continue
		}
		// hash_index.location matching "%:." also matches any location
		// ending in another file's trailing ":." by coincidence only if a
		// location string itself contains ":." mid-path, which canon.Hash
		// never produces (paths only grow from the root), so this is safe.
		fp, err := canon.ParseFingerprint(s)
		if err != nil {
			return nil, fmt.Errorf("splice: malformed hash in hash_index: %w", err)
		}
		out = append(out, fp)
	}
	return out, nil
}

// containedSet reports, for each candidate, whether it also appears as a
// child_hash in hash_graph. A steakknife/bloomfilter over the candidate set
// first discards child hashes that are definitely not candidates, so the
// exact map check below only runs on the survivors; a false positive out of
// the filter still fails the map check, so it can never produce a wrong
// answer, only extra work.
func containedSet(ctx context.Context, repo *store.Repository, candidates []canon.Fingerprint) (map[canon.Fingerprint]bool, error) {
	filter, err := bloomfilter.NewOptimal(uint64(len(candidates))*8+64, 0.0001)
	if err != nil {
		return nil, fmt.Errorf("splice: create bloom filter: %w", err)
	}
	byKey := make(map[uint64]canon.Fingerprint, len(candidates))
	for _, c := range candidates {
		filter.Add(canon.BloomKey(c))
		byKey[canon.BloomKey(c).Sum64()] = c
	}

	childRows, err := repo.Execute(ctx, store.Query{Table: "hash_graph", Select: []string{"DISTINCT child_hash"}})
	if err != nil {
		return nil, fmt.Errorf("splice: query hash_graph child hashes: %w", err)
	}

	maybeCandidates := make([]canon.Fingerprint, 0, len(childRows))
	for _, row := range childRows {
		s, _ := row["child_hash"].(string)
		if s == "" {
			continue
		}
		fp, err := canon.ParseFingerprint(s)
		if err != nil {
			return nil, fmt.Errorf("splice: malformed child_hash in hash_graph: %w", err)
		}
		if filter.Contains(canon.BloomKey(fp)) {
			maybeCandidates = append(maybeCandidates, fp)
		}
	}

	// The bloom filter only narrows childRows down to maybeCandidates; the
	// actual containment verdict is this exact map membership test, which
	// can never be fooled by one of the filter's false positives.
	candidateSet := make(map[canon.Fingerprint]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[c] = true
	}

	contained := make(map[canon.Fingerprint]bool, len(maybeCandidates))
	for _, fp := range maybeCandidates {
		if candidateSet[fp] {
			contained[fp] = true
		}
	}
	return contained, nil
}

// replaceDocs truncates reconstructed_docs and inserts one row per root in
// roots, named doc_1, doc_2, ... in the given order (callers pass roots
// pre-sorted by ascending fingerprint), then commits.
func replaceDocs(ctx context.Context, repo *store.Repository, roots []canon.Fingerprint) error {
	if _, err := repo.Execute(ctx, store.Delete{Table: "reconstructed_docs"}); err != nil {
		return fmt.Errorf("splice: clear reconstructed_docs: %w", err)
	}

	if len(roots) > 0 {
		data := make([]map[string]any, len(roots))
		for i, root := range roots {
			data[i] = map[string]any{"doc_name": fmt.Sprintf("doc_%d", i+1), "root_hash": root.String()}
		}
		if _, err := repo.Execute(ctx, store.Insert{Table: "reconstructed_docs", Data: data}); err != nil {
			return fmt.Errorf("splice: insert reconstructed_docs: %w", err)
		}
	}

	if err := repo.Commit(); err != nil {
		return fmt.Errorf("splice: commit: %w", err)
	}
	return nil
}
