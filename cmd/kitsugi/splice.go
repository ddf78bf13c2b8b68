// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/splice"
)

var spliceCmd = &cobra.Command{
	Use:   "splice",
	Short: "Recompute reconstructed_docs from the current content graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, false)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		stats, err := splice.Run(cmd.Context(), repo)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		log.WithField("candidates", stats.Candidates).
			WithField("true_roots", stats.TrueRoots).
			Info("splice complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spliceCmd)
}
