// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package docgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "kitsugi"}

	process := &cobra.Command{Use: "process <dir>", Short: "Ingest every JSON file under dir"}
	process.Flags().String("db", "kitsugi.sqlite", "path to the store")

	makeReadme := &cobra.Command{Use: "make-readme", Short: "Regenerate README.md"}

	search := &cobra.Command{Use: "search <query>", Short: "Full-text search over primitive leaves"}

	root.AddCommand(process, makeReadme, search)
	return root
}

func TestGenerateCommandReferenceOmitsMakeReadme(t *testing.T) {
	md := GenerateCommandReference(testRoot())
	if strings.Contains(md, "make-readme") {
		t.Fatalf("reference should never document make-readme itself:\n%s", md)
	}
}

func TestGenerateCommandReferenceIsAlphabetized(t *testing.T) {
	md := GenerateCommandReference(testRoot())
	processIdx := strings.Index(md, "#### `process`")
	searchIdx := strings.Index(md, "#### `search`")
	if processIdx < 0 || searchIdx < 0 || processIdx > searchIdx {
		t.Fatalf("expected process before search, got:\n%s", md)
	}
}

func TestGenerateCommandReferenceIncludesFlags(t *testing.T) {
	md := GenerateCommandReference(testRoot())
	if !strings.Contains(md, "`--db`: path to the store") {
		t.Fatalf("missing flag documentation:\n%s", md)
	}
}

func TestRenderSubstitutesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "README.md.tmpl")
	outPath := filepath.Join(dir, "README.md")

	tmpl := "# kitsugi\n\n{{COMMAND_REFERENCE}}\n"
	if err := os.WriteFile(tmplPath, []byte(tmpl), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	if err := Render(testRoot(), tmplPath, outPath); err != nil {
		t.Fatalf("render: %v", err)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.Contains(string(out), "{{COMMAND_REFERENCE}}") {
		t.Fatalf("placeholder was not substituted:\n%s", out)
	}
	if !strings.Contains(string(out), "#### `process`") {
		t.Fatalf("expected process section in output:\n%s", out)
	}
}
