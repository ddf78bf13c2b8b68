// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/analyze"
	"github.com/mikemol/kitsugi/internal/canon"
)

var (
	findPathParentHash string
	findPathChildHash  string
)

var findPathCmd = &cobra.Command{
	Use:   "find-path --parent-hash <hash> --child-hash <hash>",
	Short: "Print the JQ-style path from a parent fingerprint down to a child fingerprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, err := canon.ParseFingerprint(findPathParentHash)
		if err != nil {
			return handleCommandError(cmd, fmt.Errorf("find-path: parent-hash: %w", err), "")
		}
		child, err := canon.ParseFingerprint(findPathChildHash)
		if err != nil {
			return handleCommandError(cmd, fmt.Errorf("find-path: child-hash: %w", err), "")
		}

		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		result, err := analyze.FindPath(cmd.Context(), repo, parent, child)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		if !result.Found {
			fmt.Fprintln(cmd.OutOrStdout(), "no path found")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Path)
		return nil
	},
}

func init() {
	findPathCmd.Flags().StringVar(&findPathParentHash, "parent-hash", "", "the claimed ancestor fingerprint")
	findPathCmd.Flags().StringVar(&findPathChildHash, "child-hash", "", "the claimed descendant fingerprint")
	findPathCmd.MarkFlagRequired("parent-hash")
	findPathCmd.MarkFlagRequired("child-hash")
	rootCmd.AddCommand(findPathCmd)
}
