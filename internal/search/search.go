// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package search executes full-text queries against data_search_idx and
// recovers the locations where each matched primitive leaf occurred.
package search

import (
	"context"
	"fmt"

	"github.com/mikemol/kitsugi/internal/store"
)

// Result is the single structured output record a search produces.
type Result struct {
	SearchQuery       string              `json:"search_query"`
	TotalMatches      int                 `json:"total_matches"`
	MatchesByLocation map[string][]string `json:"matches_by_location"`
}

// QueryError wraps an invalid FTS5 query with a hint, a structured record
// instead of a bare error string.
type QueryError struct {
	Query   string `json:"query"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("search: invalid query %q: %s", e.Query, e.Message)
}

// Run executes query against data_search_idx, joining back to hash_index to
// recover every location a matched primitive leaf was observed at.
func Run(ctx context.Context, repo *store.Repository, query string) (*Result, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "data_search_idx",
		Select: []string{"hash", "data"},
		Where:  &store.Where{Column: "data", Operator: "MATCH", Value: query},
	})
	if err != nil {
		return nil, &QueryError{
			Query:   query,
			Message: err.Error(),
			Hint:    "check FTS5 query syntax: quote phrases, escape reserved characters",
		}
	}

	result := &Result{SearchQuery: query, MatchesByLocation: make(map[string][]string)}
	for _, row := range rows {
		hash, _ := row["hash"].(string)
		data, _ := row["data"].(string)

		locs, err := locationsForHash(ctx, repo, hash)
		if err != nil {
			return nil, err
		}
		for _, loc := range locs {
			result.MatchesByLocation[loc] = append(result.MatchesByLocation[loc], data)
			result.TotalMatches++
		}
	}
	return result, nil
}

func locationsForHash(ctx context.Context, repo *store.Repository, hash string) ([]string, error) {
	rows, err := repo.Execute(ctx, store.Query{
		Table:  "hash_index",
		Select: []string{"location"},
		Where:  &store.Where{Column: "hash", Operator: "=", Value: hash},
	})
	if err != nil {
		return nil, fmt.Errorf("search: query hash_index for %s: %w", hash, err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if loc, ok := row["location"].(string); ok {
			out = append(out, loc)
		}
	}
	return out, nil
}
