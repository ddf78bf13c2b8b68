// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over every primitive leaf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		result, err := search.Run(cmd.Context(), repo, args[0])
		if err != nil {
			if qerr, ok := err.(*search.QueryError); ok {
				cmd.SilenceUsage = true
				out, _ := json.MarshalIndent(qerr, "", "  ")
				fmt.Fprintln(cmd.ErrOrStderr(), string(out))
				return err
			}
			return handleCommandError(cmd, err, "")
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
