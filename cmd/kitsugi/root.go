// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/config"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kitsugi",
	Short: "A content-addressable store for structured tree-shaped JSON data",
	Long: `kitsugi ingests a directory of JSON documents into a content-addressed
graph keyed by the canonical SHA-256 hash of each fragment, then lets you
reconstruct, splice, search, and analyze that graph.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger.Level = logrus.DebugLevel
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", config.DefaultDBPath, "path to the content-addressed store")
	rootCmd.PersistentFlags().String("cache", "", "path to a persisted reconstruction cache")
	rootCmd.PersistentFlags().String("config", "", "path to a config file layered under flags and KITSUGI_ environment variables")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "raise logging from info to debug")
}

// Execute runs the command tree built by this package's init functions.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}
