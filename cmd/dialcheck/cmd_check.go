package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/validation"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate suite, catalog, and knowledge base files",
		Long: `Validate YAML configuration files against their schemas.

With a file argument, validates that single file. With a directory (or no
argument, defaulting to the current directory), validates every .yaml/.yml
file directly under it. Files are classified by their top-level keys:
test_cases marks a suite, personas a catalog, faqs a knowledge base.

Exits non-zero when any file fails validation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: checkCommandE,
	}

	return cmd
}

func checkCommandE(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}

	var results []validation.FileResult
	if info.IsDir() {
		results, err = validation.ValidateDir(path)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No YAML files found in %s\n", path) //nolint:errcheck
			return nil
		}
	} else {
		result, err := validation.ValidateFile(path)
		if err != nil {
			return err
		}
		results = []validation.FileResult{result}
	}

	printCheckResults(cmd, results)

	invalid := 0
	for _, r := range results {
		if !r.Valid() {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", invalid, len(results))
	}
	return nil
}

func printCheckResults(cmd *cobra.Command, results []validation.FileResult) {
	out := cmd.OutOrStdout()

	const pathWidth = 40
	const kindWidth = 16

	fmt.Fprintf(out, "%s %s %s\n", //nolint:errcheck
		padRight("File", pathWidth),
		padRight("Kind", kindWidth),
		"Status",
	)
	fmt.Fprintln(out, strings.Repeat("-", pathWidth+kindWidth+10)) //nolint:errcheck

	for _, r := range results {
		status := "ok"
		if r.Kind == validation.KindUnknown {
			status = "unrecognized"
		} else if len(r.Errors) > 0 {
			status = fmt.Sprintf("%d error(s)", len(r.Errors))
		}
		fmt.Fprintf(out, "%s %s %s\n", //nolint:errcheck
			padRight(truncateName(r.Path, pathWidth), pathWidth),
			padRight(string(r.Kind), kindWidth),
			status,
		)
		for _, e := range r.Errors {
			fmt.Fprintf(out, "    %s\n", e) //nolint:errcheck
		}
	}
}
