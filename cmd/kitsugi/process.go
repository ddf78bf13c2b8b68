// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/ingest"
)

var processCmd = &cobra.Command{
	Use:   "process <target_directory>",
	Short: "Full re-ingest of a directory tree into the content-addressed store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, false)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		stats, err := ingest.Process(cmd.Context(), repo, args[0])
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		log.WithField("seen", stats.FilesSeen).
			WithField("ingested", stats.FilesIngested).
			WithField("skipped", stats.FilesSkipped).
			Info("process complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
