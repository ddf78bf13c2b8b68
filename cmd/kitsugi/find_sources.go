// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/analyze"
)

var findSourcesCmd = &cobra.Command{
	Use:   "find-sources <doc_name>",
	Short: "List the source files that contributed to a conceptual document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		files, err := analyze.Sources(cmd.Context(), repo, args[0])
		if err != nil {
			return handleCommandError(cmd, err, "run `splice` first")
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findSourcesCmd)
}
