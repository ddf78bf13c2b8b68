// Copyright 2018 IBM Corporation
// Licensed under the Apache License, Version 2.0. See LICENSE file.

package main

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikemol/kitsugi/internal/analyze"
)

var coverageOutputCSV string

var coverageCmd = &cobra.Command{
	Use:   "coverage <doc_name>",
	Short: "Report each source file's overlap with a conceptual document's constituent set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openStore(cmd, true)
		if err != nil {
			return handleCommandError(cmd, err, "")
		}
		defer repo.Close()

		rows, err := analyze.Coverage(cmd.Context(), repo, ".", args[0])
		if err != nil {
			return handleCommandError(cmd, err, "run `splice` first")
		}

		if coverageOutputCSV != "" {
			return writeCoverageCSV(coverageOutputCSV, rows)
		}
		writeCoverageTable(cmd, rows)
		return nil
	},
}

func init() {
	coverageCmd.Flags().StringVarP(&coverageOutputCSV, "output", "o", "", "write the report as CSV to this path instead of stdout")
	rootCmd.AddCommand(coverageCmd)
}

func writeCoverageTable(cmd *cobra.Command, rows []analyze.CoverageRow) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tINTERSECTION\tXOR_DIFFERENCE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\n", r.File, r.Intersection, r.SymmetricDiff)
	}
	w.Flush()
}

func writeCoverageCSV(path string, rows []analyze.CoverageRow) error {
	f, err := createOutputFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "intersection", "xor_difference"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.File, strconv.Itoa(r.Intersection), strconv.Itoa(r.SymmetricDiff)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
