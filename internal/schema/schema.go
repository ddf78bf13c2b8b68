// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package schema declares kitsugi's four relations and one full-text index
// abstractly (name, columns, indexes) and translates that declaration to
// backend DDL. A port to another SQL backend reimplements only Table.DDL and
// Table.IndexDDL; nothing else in the repository hand-maintains DDL strings.
package schema

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// Column is one column of a Table.
type Column struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"` // "TEXT", "TEXT PRIMARY KEY", ...
	Constraint string `yaml:"constraint,omitempty"`
}

// Index is a secondary index over one or more columns of a Table.
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// Table is the abstract descriptor for one relation. Virtual is set for the
// FTS5 search index, whose DDL shape differs from an ordinary table.
type Table struct {
	Name         string   `yaml:"name"`
	Columns      []Column `yaml:"columns"`
	Indexes      []Index  `yaml:"indexes,omitempty"`
	Virtual      bool     `yaml:"virtual,omitempty"`
	VirtualUsing string   `yaml:"virtual_using,omitempty"` // e.g. "fts5"
}

// Schema is the full set of relations kitsugi's store needs.
type Schema struct {
	Tables []Table `yaml:"tables"`
}

// Definition is the four logical relations plus the full-text index,
// encoded as data rather than as hand-written CREATE TABLE strings.
var Definition = Schema{
	Tables: []Table{
		{
			Name: "hash_index",
			Columns: []Column{
				{Name: "hash", Type: "TEXT", Constraint: "NOT NULL"},
				{Name: "location", Type: "TEXT", Constraint: "NOT NULL"},
			},
			Indexes: []Index{
				{Name: "hash_index_hash_idx", Columns: []string{"hash"}},
				{Name: "hash_index_location_idx", Columns: []string{"location"}},
			},
		},
		{
			Name: "hash_graph",
			Columns: []Column{
				{Name: "parent_hash", Type: "TEXT", Constraint: "NOT NULL"},
				{Name: "child_key", Type: "TEXT", Constraint: "NOT NULL"},
				{Name: "child_hash", Type: "TEXT", Constraint: "NOT NULL"},
			},
			Indexes: []Index{
				{Name: "hash_graph_parent_idx", Columns: []string{"parent_hash"}},
				{Name: "hash_graph_child_idx", Columns: []string{"child_hash"}},
				{Name: "hash_graph_edge_uidx", Columns: []string{"parent_hash", "child_key", "child_hash"}, Unique: true},
			},
		},
		{
			Name: "hash_to_data",
			Columns: []Column{
				{Name: "hash", Type: "TEXT", Constraint: "PRIMARY KEY"},
				{Name: "data", Type: "TEXT", Constraint: "NOT NULL"},
			},
		},
		{
			Name: "reconstructed_docs",
			Columns: []Column{
				{Name: "doc_name", Type: "TEXT", Constraint: "PRIMARY KEY"},
				{Name: "root_hash", Type: "TEXT", Constraint: "NOT NULL UNIQUE"},
			},
		},
		{
			Name:         "data_search_idx",
			Virtual:      true,
			VirtualUsing: "fts5",
			Columns: []Column{
				{Name: "hash", Type: "UNINDEXED"},
				{Name: "data", Type: ""},
			},
		},
	},
}

// DDL renders t's CREATE TABLE (or CREATE VIRTUAL TABLE) statement.
func (t Table) DDL() string {
	if t.Virtual {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if c.Type == "" {
				cols[i] = c.Name
			} else {
				cols[i] = c.Name + " " + c.Type
			}
		}
		return fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s)", t.Name, t.VirtualUsing, strings.Join(cols, ", "))
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		def := c.Name + " " + c.Type
		if c.Constraint != "" {
			def += " " + c.Constraint
		}
		cols[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(cols, ", "))
}

// IndexDDL renders t's CREATE INDEX statements, one per declared Index.
func (t Table) IndexDDL() []string {
	stmts := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

// DDL renders every CREATE TABLE/CREATE INDEX statement in s, tables and
// their indexes in declaration order.
func (s Schema) DDL() []string {
	var stmts []string
	for _, t := range s.Tables {
		stmts = append(stmts, t.DDL())
		stmts = append(stmts, t.IndexDDL()...)
	}
	return stmts
}

// Table looks up a table descriptor by name, so its column and index lists
// can be read without restating them.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Marshal renders s as YAML, the on-disk form used by `kitsugi make-readme`
// and diagnostic dumps to describe the schema without restating Go structs.
func (s Schema) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
