// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package docgen introspects the constructed Cobra command tree and renders
// a command reference into a README template, the Go analogue of
// documentation.py's argparse introspection.
package docgen

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// placeholder is the template token replaced with the generated reference,
// matching the original's {{COMMAND_REFERENCE}} convention.
const placeholder = "{{COMMAND_REFERENCE}}"

// GenerateCommandReference walks root's immediate subcommands, alphabetized,
// and renders one Markdown section per command: its short description, a
// syntax line built from its Use string, and a flag-by-flag argument list.
// make-readme itself is never documented.
func GenerateCommandReference(root *cobra.Command) string {
	cmds := root.Commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })

	var b strings.Builder
	for _, c := range cmds {
		if c.Name() == "make-readme" {
			continue
		}
		writeCommandSection(&b, c)
	}
	return b.String()
}

func writeCommandSection(b *strings.Builder, c *cobra.Command) {
	fmt.Fprintf(b, "#### `%s`\n\n", c.Name())
	if c.Short != "" {
		fmt.Fprintf(b, "%s\n\n", c.Short)
	}
	fmt.Fprintf(b, "  * **Syntax:** `kitsugi %s`\n", c.Use)

	var flagLines []string
	c.Flags().VisitAll(func(f *pflag.Flag) {
		flagLines = append(flagLines, fmt.Sprintf("      * `--%s`: %s", f.Name, f.Usage))
	})
	if len(flagLines) > 0 {
		b.WriteString("  * **Arguments:**\n")
		for _, line := range flagLines {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n-----\n\n")
}

// Render reads templatePath, substitutes the command reference generated
// from root, and writes the result to outputPath.
func Render(root *cobra.Command, templatePath, outputPath string) error {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("docgen: read template %s: %w", templatePath, err)
	}

	final := strings.Replace(string(raw), placeholder, GenerateCommandReference(root), 1)

	if err := os.WriteFile(outputPath, []byte(final), 0o644); err != nil {
		return fmt.Errorf("docgen: write %s: %w", outputPath, err)
	}
	return nil
}
