package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/projectconfig"
	"github.com/dialcheck/dialcheck/internal/wizard"
)

func newNewCommand() *cobra.Command {
	var (
		catalogPath string
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "new <suite-name>",
		Short: "Create a new test suite interactively",
		Long: `Create a new test suite through an interactive wizard.

The wizard walks through test case fields: name, persona and behavior from
the catalog, the question to ask, turn limit, and optional special
instructions or an FAQ ground truth. The result is written as
{suites-dir}/{suite-name}.yaml.

In non-interactive environments (CI, pipes) the wizard falls back to an
accessible line-based prompt mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suiteName := args[0]
			if err := validateSuiteName(suiteName); err != nil {
				return err
			}

			pc, err := projectconfig.Load(".")
			if err != nil {
				return err
			}
			if catalogPath == "" {
				catalogPath = pc.Paths.Catalog
			}
			if outputDir == "" {
				outputDir = pc.Paths.Suites
			}

			catalog, err := models.LoadCatalog(catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			tc, err := wizard.RunTestCaseWizard(cmd.InOrStdin(), cmd.OutOrStdout(), catalog, suiteName)
			if err != nil {
				return fmt.Errorf("wizard failed: %w", err)
			}

			content, err := wizard.GenerateSuiteYAML(suiteName, tc)
			if err != nil {
				return fmt.Errorf("failed to generate suite: %w", err)
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("creating suites directory: %w", err)
			}
			outPath := filepath.Join(outputDir, suiteName+".yaml")
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("suite already exists: %s", outPath)
			}
			if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing suite: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", outPath)                    //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "Run it with: dialcheck run %s\n", outPath) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Persona/behavior catalog (default: from .dialcheck.yaml)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory to write the suite into (default: from .dialcheck.yaml)")

	return cmd
}

// validateSuiteName rejects names with path-traversal characters or empty names.
func validateSuiteName(name string) error {
	if name == "" {
		return fmt.Errorf("suite name must not be empty")
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.Contains(cleaned, "/") || strings.Contains(cleaned, "\\") {
		return fmt.Errorf("suite name %q contains invalid path characters", name)
	}
	return nil
}
