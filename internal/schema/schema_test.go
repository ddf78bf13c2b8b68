// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package schema

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestDDLIncludesUniqueHashGraphEdgeIndex(t *testing.T) {
	table, ok := Definition.Table("hash_graph")
	if !ok {
		t.Fatal("hash_graph table not found in Definition")
	}

	found := false
	for _, idx := range table.IndexDDL() {
		if strings.Contains(idx, "UNIQUE") && strings.Contains(idx, "hash_graph_edge_uidx") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a unique index on hash_graph's edge columns, got %v", table.IndexDDL())
	}
}

func TestMarshalRoundTripsThroughYAML(t *testing.T) {
	out, err := Definition.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Schema
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Tables) != len(Definition.Tables) {
		t.Fatalf("round-tripped %d tables, want %d", len(decoded.Tables), len(Definition.Tables))
	}
	if _, ok := decoded.Table("hash_graph"); !ok {
		t.Fatal("round-tripped schema is missing hash_graph")
	}
}
