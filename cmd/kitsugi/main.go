// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"os"

	"github.com/pkg/profile"
)

func realMain() error {
	switch os.Getenv("KITSUGI_PROFILE") {
	case "cpu":
		defer profile.Start(profile.CPUProfile).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile).Stop()
	case "block":
		defer profile.Start(profile.BlockProfile).Stop()
	}
	return Execute()
}

func main() {
	// Wrapping main lets realMain rely on defer (for the profiler) while
	// still allowing a non-zero exit, which requires os.Exit().
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
