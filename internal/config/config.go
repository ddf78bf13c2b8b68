// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

// Package config layers the CLI's --db/--cache settings through viper:
// flag, then KITSUGI_-prefixed environment variable, then config file,
// then built-in default.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultDBPath is the store location used when nothing overrides it.
const DefaultDBPath = "content_addressing.db"

// Config is the resolved set of ambient settings for one CLI invocation.
type Config struct {
	DBPath    string
	CachePath string
}

// Load resolves Config from cmd's persistent flags (--db, --cache,
// --config), the process environment (KITSUGI_DB, KITSUGI_CACHE), and an
// optional config file, in that order of precedence.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KITSUGI")
	v.AutomaticEnv()
	v.SetDefault("db", DefaultDBPath)
	v.SetDefault("cache", "")

	root := cmd.Root()
	if cfgFile, _ := root.PersistentFlags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	if err := v.BindPFlag("db", root.PersistentFlags().Lookup("db")); err != nil {
		return nil, fmt.Errorf("config: bind --db: %w", err)
	}
	if err := v.BindPFlag("cache", root.PersistentFlags().Lookup("cache")); err != nil {
		return nil, fmt.Errorf("config: bind --cache: %w", err)
	}

	return &Config{DBPath: v.GetString("db"), CachePath: v.GetString("cache")}, nil
}
