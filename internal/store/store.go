// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package store is the concrete Repository: a declarative request engine
// executed against an embedded SQLite database, realizing the four logical
// relations and the full-text index declared in internal/schema.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mikemol/kitsugi/internal/kerr"
	"github.com/mikemol/kitsugi/internal/schema"
)

// Request is a declarative request against the Repository. The concrete
// types below are the only implementations; dispatch is a type switch in
// Repository.Execute, never a stringly-typed command name.
type Request interface{ isRequest() }

// Where is a single predicate column OP value. Operator is one of "=",
// "LIKE", "IN", "MATCH" (FTS5 full-text match). An IN request with an
// empty Value slice matches nothing.
type Where struct {
	Column   string
	Operator string
	Value    any
}

// Query selects rows from Table, optionally filtered, ordered, and limited.
type Query struct {
	Table   string
	Select  []string
	Where   *Where
	OrderBy string
	Limit   int
}

func (Query) isRequest() {}

// Insert bulk-inserts homogeneous row records into Table. Ignore silently
// drops rows that violate a uniqueness constraint instead of failing.
type Insert struct {
	Table  string
	Data   []map[string]any
	Ignore bool
}

func (Insert) isRequest() {}

// Delete removes rows from Table matching Where, or every row if Where is
// nil.
type Delete struct {
	Table string
	Where *Where
}

func (Delete) isRequest() {}

// RebuildFTS repopulates Table (the FTS5 virtual table) from hash_to_data.
type RebuildFTS struct{ Table string }

func (RebuildFTS) isRequest() {}

// Row is one projected result row from a Query, keyed by selected column
// name.
type Row map[string]any

// Repository wraps an embedded SQLite database and the abstract schema,
// executing declarative Requests within an implicit transaction that
// Commit durably records. readOnly Repositories refuse any mutating
// Request.
type Repository struct {
	db       *sql.DB
	tx       *sql.Tx
	readOnly bool
}

// Open creates (if necessary) and migrates the SQLite database at path,
// returning a Repository ready to accept mutating and read requests.
func Open(path string) (*Repository, error) {
	return open(path, false)
}

// OpenReadOnly opens the SQLite database at path in read-only mode. Any
// Insert, Delete, or RebuildFTS issued against the returned Repository
// fails with kerr.ErrReadOnly.
func OpenReadOnly(path string) (*Repository, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Repository, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if readOnly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", kerr.ErrStore, path, err)
	}

	r := &Repository{db: db, readOnly: readOnly}
	if !readOnly {
		if err := r.createSchema(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Repository) createSchema(ctx context.Context) error {
	for _, stmt := range schema.Definition.DDL() {
		if _, err := r.db.ExecContext(ctx, ifNotExists(stmt)); err != nil {
			return fmt.Errorf("%w: create schema: %v", kerr.ErrStore, err)
		}
	}
	return nil
}

// ifNotExists rewrites a "CREATE TABLE x" / "CREATE VIRTUAL TABLE x USING"
// / "CREATE INDEX x" statement to its IF NOT EXISTS form, so repeated Opens
// against an already-migrated file are idempotent.
func ifNotExists(stmt string) string {
	switch {
	case strings.HasPrefix(stmt, "CREATE VIRTUAL TABLE "):
		return "CREATE VIRTUAL TABLE IF NOT EXISTS " + strings.TrimPrefix(stmt, "CREATE VIRTUAL TABLE ")
	case strings.HasPrefix(stmt, "CREATE TABLE "):
		return "CREATE TABLE IF NOT EXISTS " + strings.TrimPrefix(stmt, "CREATE TABLE ")
	case strings.HasPrefix(stmt, "CREATE UNIQUE INDEX "):
		return "CREATE UNIQUE INDEX IF NOT EXISTS " + strings.TrimPrefix(stmt, "CREATE UNIQUE INDEX ")
	case strings.HasPrefix(stmt, "CREATE INDEX "):
		return "CREATE INDEX IF NOT EXISTS " + strings.TrimPrefix(stmt, "CREATE INDEX ")
	default:
		return stmt
	}
}

// Close closes the underlying database, rolling back any uncommitted
// transaction.
func (r *Repository) Close() error {
	if r.tx != nil {
		_ = r.tx.Rollback()
	}
	return r.db.Close()
}

// Commit durably records every mutation Execute has accumulated since the
// last Commit. It is a no-op if nothing has mutated.
func (r *Repository) Commit() error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Commit()
	r.tx = nil
	if err != nil {
		return fmt.Errorf("%w: commit: %v", kerr.ErrStore, err)
	}
	return nil
}

func (r *Repository) beginTx(ctx context.Context) (*sql.Tx, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", kerr.ErrStore, err)
	}
	r.tx = tx
	return tx, nil
}

// Execute runs req against the Repository. Query results are returned as
// Rows; Insert/Delete/RebuildFTS return a nil slice on success.
func (r *Repository) Execute(ctx context.Context, req Request) ([]Row, error) {
	switch q := req.(type) {
	case Query:
		return r.execQuery(ctx, q)
	case Insert:
		return nil, r.execInsert(ctx, q)
	case Delete:
		return nil, r.execDelete(ctx, q)
	case RebuildFTS:
		return nil, r.execRebuildFTS(ctx, q)
	default:
		return nil, fmt.Errorf("%w: unknown request type %T", kerr.ErrQuery, req)
	}
}

func (r *Repository) querier(ctx context.Context) (interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, error) {
	if r.tx != nil {
		return r.tx, nil
	}
	return r.db, nil
}

func (r *Repository) execQuery(ctx context.Context, q Query) ([]Row, error) {
	cols := "*"
	if len(q.Select) > 0 {
		cols = strings.Join(q.Select, ", ")
	}

	sqlStr := fmt.Sprintf("SELECT %s FROM %s", cols, q.Table)
	var args []any
	if q.Where != nil {
		clause, whereArgs, ok := whereClause(*q.Where)
		if !ok {
			return nil, nil
		}
		sqlStr += " WHERE " + clause
		args = whereArgs
	}
	if q.OrderBy != "" {
		sqlStr += " ORDER BY " + q.OrderBy
	}
	if q.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	qr, err := r.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := qr.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerr.ErrQuery, sqlStr, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %v", kerr.ErrQuery, err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", kerr.ErrQuery, err)
		}
		row := make(Row, len(names))
		for i, n := range names {
			row[n] = normalizeScanned(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerr.ErrQuery, err)
	}
	return out, nil
}

func (r *Repository) execInsert(ctx context.Context, ins Insert) error {
	if r.readOnly {
		return kerr.ErrReadOnly
	}
	if len(ins.Data) == 0 {
		return nil
	}
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}

	verb := "INSERT"
	if ins.Ignore {
		verb = "INSERT OR IGNORE"
	}

	cols := sortedKeys(ins.Data[0])
	placeholders := strings.Repeat("?, ", len(cols))
	placeholders = strings.TrimSuffix(placeholders, ", ")
	sqlStr := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)", verb, ins.Table, strings.Join(cols, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", kerr.ErrStore, err)
	}
	defer stmt.Close()

	for _, row := range ins.Data {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", kerr.ErrStore, ins.Table, err)
		}
	}
	return nil
}

func (r *Repository) execDelete(ctx context.Context, del Delete) error {
	if r.readOnly {
		return kerr.ErrReadOnly
	}
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}

	sqlStr := "DELETE FROM " + del.Table
	var args []any
	if del.Where != nil {
		clause, whereArgs, ok := whereClause(*del.Where)
		if !ok {
			return nil
		}
		sqlStr += " WHERE " + clause
		args = whereArgs
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%w: delete from %s: %v", kerr.ErrStore, del.Table, err)
	}
	return nil
}

func (r *Repository) execRebuildFTS(ctx context.Context, req RebuildFTS) error {
	if r.readOnly {
		return kerr.ErrReadOnly
	}
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+req.Table); err != nil {
		return fmt.Errorf("%w: clear %s: %v", kerr.ErrStore, req.Table, err)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (hash, data) SELECT hash, data FROM hash_to_data", req.Table)
	if _, err := tx.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("%w: rebuild %s: %v", kerr.ErrStore, req.Table, err)
	}
	return nil
}

// ClearAll truncates the four primary relations (not the search index,
// which RebuildFTS repopulates separately).
func (r *Repository) ClearAll(ctx context.Context) error {
	for _, t := range []string{"hash_index", "hash_graph", "hash_to_data", "reconstructed_docs"} {
		if _, err := r.Execute(ctx, Delete{Table: t}); err != nil {
			return err
		}
	}
	return nil
}

// BatchInsert is one table's rows within a SaveBatch call.
type BatchInsert struct {
	Table  string
	Data   []map[string]any
	Ignore bool
}

// SaveBatch inserts into several tables as a single request: one ingest
// run's index/graph/data rows land together rather than as three
// separately-dispatched Inserts.
func (r *Repository) SaveBatch(ctx context.Context, batches []BatchInsert) error {
	for _, b := range batches {
		if _, err := r.Execute(ctx, Insert{Table: b.Table, Data: b.Data, Ignore: b.Ignore}); err != nil {
			return err
		}
	}
	return nil
}

// whereClause renders w's SQL fragment and bound args. ok is false when w
// is an IN clause with an empty value list, which must match nothing
// without being sent to the backend as invalid SQL.
func whereClause(w Where) (clause string, args []any, ok bool) {
	switch w.Operator {
	case "IN":
		values, isSlice := toSlice(w.Value)
		if !isSlice || len(values) == 0 {
			return "", nil, false
		}
		placeholders := strings.Repeat("?, ", len(values))
		placeholders = strings.TrimSuffix(placeholders, ", ")
		return fmt.Sprintf("%s IN (%s)", w.Column, placeholders), values, true
	case "LIKE":
		return w.Column + " LIKE ?", []any{w.Value}, true
	case "MATCH":
		return w.Column + " MATCH ?", []any{w.Value}, true
	default:
		return w.Column + " = ?", []any{w.Value}, true
	}
}

// normalizeScanned widens a []byte TEXT/BLOB value the driver may hand back
// into a string, so callers comparing or formatting Row values never have to
// special-case the driver's column-affinity representation.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}

// sortedKeys returns m's keys in a deterministic order, so the prepared
// INSERT statement's column list matches every row in the same batch.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
