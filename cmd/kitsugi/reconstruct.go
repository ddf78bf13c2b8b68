// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/canon"
	"github.com/mikemol/kitsugi/internal/config"
	"github.com/mikemol/kitsugi/internal/reconstruct"
	"github.com/mikemol/kitsugi/internal/store"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <hash>",
	Short: "Emit the reconstructed JSON document for a fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := canon.ParseFingerprint(args[0])
		if err != nil {
			return handleCommandError(cmd, fmt.Errorf("reconstruct: %w", err), "")
		}

		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		return reconstructAndPrint(cmd, repo, fp)
	},
}

func init() {
	rootCmd.AddCommand(reconstructCmd)
}

// reconstructAndPrint rebuilds root against repo and writes it to stdout as
// pretty-printed JSON, warming/persisting the on-disk cache snapshot around
// the call when --cache is set. Shared by reconstruct and export.
func reconstructAndPrint(cmd *cobra.Command, repo *store.Repository, root canon.Fingerprint) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return handleCommandError(cmd, err, "")
	}

	rc, err := newReconstructor(cmd, repo, cfg)
	if err != nil {
		return handleCommandError(cmd, err, "")
	}

	val, err := rc.Reconstruct(cmd.Context(), root)
	if err != nil {
		return handleCommandError(cmd, err, "")
	}
	if cfg.CachePath != "" {
		if err := rc.PersistCache(cfg.CachePath); err != nil {
			log.WithError(err).Warn("failed to persist reconstruction cache")
		}
	}

	out, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return handleCommandError(cmd, err, "")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newReconstructor(cmd *cobra.Command, repo *store.Repository, cfg *config.Config) (*reconstruct.Reconstructor, error) {
	rc, err := reconstruct.New(repo, 0)
	if err != nil {
		return nil, err
	}
	if cfg.CachePath != "" {
		if err := rc.RestoreCache(cfg.CachePath); err != nil {
			log.WithError(err).Warn("failed to restore reconstruction cache")
		}
	}
	return rc, nil
}
