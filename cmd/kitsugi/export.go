// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/analyze"
)

var exportCmd = &cobra.Command{
	Use:   "export <doc_name>",
	Short: "Look up a conceptual document's root and reconstruct it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		root, err := analyze.Root(cmd.Context(), repo, args[0])
		if err != nil {
			return handleCommandError(cmd, err, "run `splice` first")
		}

		return reconstructAndPrint(cmd, repo, root)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
