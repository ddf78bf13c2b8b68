// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/docgen"
	"github.com/mikemol/kitsugi/internal/schema"
)

var (
	makeReadmeTemplate string
	makeReadmeOutput   string
	makeReadmeSchema   string
)

var makeReadmeCmd = &cobra.Command{
	Use:   "make-readme",
	Short: "Render the CLI command reference into a README template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := docgen.Render(rootCmd, makeReadmeTemplate, makeReadmeOutput); err != nil {
			return handleCommandError(cmd, err, "")
		}
		if makeReadmeSchema != "" {
			if err := writeSchemaDump(makeReadmeSchema); err != nil {
				return handleCommandError(cmd, err, "")
			}
		}
		return nil
	},
}

// writeSchemaDump renders the Repository's abstract schema as YAML, a
// diagnostic companion to the rendered README that describes the store's
// tables/indexes without restating the Go structs.
func writeSchemaDump(path string) error {
	out, err := schema.Definition.Marshal()
	if err != nil {
		return err
	}
	f, err := createOutputFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(out)
	return err
}

func init() {
	makeReadmeCmd.Flags().StringVarP(&makeReadmeTemplate, "template", "t", "README.md.tmpl", "path to the README template")
	makeReadmeCmd.Flags().StringVarP(&makeReadmeOutput, "output", "o", "README.md", "path to write the rendered README")
	makeReadmeCmd.Flags().StringVar(&makeReadmeSchema, "schema", "", "optional path to also write a YAML dump of the store schema")
	rootCmd.AddCommand(makeReadmeCmd)
}
