// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/config"
	"github.com/mikemol/kitsugi/internal/kerr"
	"github.com/mikemol/kitsugi/internal/store"
)

// createOutputFile opens path for a command's -o/-t output flag.
func createOutputFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	return f, nil
}

// openStore resolves --db/--cache/--config through internal/config and
// opens the store read-write or read-only: process and splice are the
// sole writers, every other command opens read-only.
func openStore(cmd *cobra.Command, readOnly bool) (*store.Repository, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	if readOnly {
		return store.OpenReadOnly(cfg.DBPath)
	}
	return store.Open(cfg.DBPath)
}

// reportNotFoundAndExit prints a not-found condition to stderr with a
// remediation hint, silences cobra's own usage dump, and returns err so
// the command still exits non-zero without writing anything to stdout.
func reportNotFoundAndExit(cmd *cobra.Command, err error, hint string) error {
	cmd.SilenceUsage = true
	fmt.Fprintf(cmd.ErrOrStderr(), "%v\n%s\n", err, hint)
	return err
}

// handleCommandError classifies err and renders it the way that error kind
// calls for, returning the error so cobra still exits non-zero.
func handleCommandError(cmd *cobra.Command, err error, notFoundHint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kerr.ErrNotFound) {
		return reportNotFoundAndExit(cmd, err, notFoundHint)
	}
	cmd.SilenceUsage = true
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", cmd.Name(), err)
	return err
}
