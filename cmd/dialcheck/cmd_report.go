package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dialcheck/dialcheck/internal/config"
	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/reporting"
	"github.com/dialcheck/dialcheck/internal/webapi"
)

var (
	reportLocal   bool
	reportDataDir string
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List, render, and export stored reports",
		Long: `Work with stored evaluation reports.

Reports are read from object storage: blob storage when Azure credentials
are configured, otherwise the local data directory.`,
	}

	cmd.PersistentFlags().BoolVar(&reportLocal, "local", false, "Force local storage even when cloud credentials are set")
	cmd.PersistentFlags().StringVar(&reportDataDir, "data-dir", "", "Local storage directory (default: .dialcheck-data)")

	cmd.AddCommand(newReportListCommand())
	cmd.AddCommand(newReportHTMLCommand())
	cmd.AddCommand(newReportExportCommand())

	return cmd
}

func newReportListCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := newReportStore()
			if err != nil {
				return err
			}
			summaries, err := reports.List(cmd.Context(), date)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No reports found.")
				return nil
			}

			const idWidth = 38
			const nameWidth = 28
			fmt.Printf("%s %s %s %s\n",
				padRight("Report", idWidth),
				padRight("Test case", nameWidth),
				padRight("Date", 18),
				"Acc/Emp/RT",
			)
			for _, s := range summaries {
				status := "✓"
				if !s.Metrics.Successful {
					status = "✗"
				}
				fmt.Printf("%s %s %s %s %.1f/%.1f/%.1f\n",
					padRight(s.ReportID, idWidth),
					padRight(truncateName(s.TestCaseName, nameWidth), nameWidth),
					padRight(s.Date.Format("2006-01-02 15:04"), 18),
					status,
					s.Metrics.Accuracy, s.Metrics.Empathy, s.Metrics.ResponseTime,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Filter by date (YYYYMMDD)")

	return cmd
}

func newReportHTMLCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "html <report-id>",
		Short: "Render a report as a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := newReportStore()
			if err != nil {
				return err
			}
			report, err := reports.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			html, err := reporting.RenderHTML(report)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = args[0] + ".html"
			}
			if err := os.WriteFile(outPath, html, 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Printf("Report saved to: %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: {report-id}.html)")

	return cmd
}

func newReportExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <report-id> [report-id...]",
		Short: "Export reports as a zip archive",
		Long: `Export one or more reports as a zip archive.

The archive holds a reports.json manifest. Audio is referenced from the
reports by URL; exporting with audio is available through the dashboard.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := newReportStore()
			if err != nil {
				return err
			}

			var selected []*models.Report
			for _, id := range args {
				report, err := reports.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("report %s: %w", id, err)
				}
				selected = append(selected, report)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating archive: %w", err)
			}
			defer f.Close() //nolint:errcheck

			if err := reporting.WriteExportZip(f, selected, nil, nil); err != nil {
				return fmt.Errorf("writing archive: %w", err)
			}
			fmt.Printf("Exported %d report(s) to: %s\n", len(selected), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "reports-export.zip", "Output zip file")

	return cmd
}

func newReportStore() (*webapi.ObjectReportStore, error) {
	backend, err := newStorageBackend(config.LoadSettings(), reportDataDir, reportLocal)
	if err != nil {
		return nil, err
	}
	return webapi.NewObjectReportStore(backend.store), nil
}
