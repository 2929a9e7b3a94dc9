package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/munihash/internal/core"
)

var (
	runCatalogPath     string
	runCatalogURL      string
	runOutputDir       string
	runWorkers         int
	runContinueOnError bool
	runJSON            bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCatalogPath, "catalog", "", "Read the catalog from a local file (overrides CATALOG_PATH)")
	runCmd.Flags().StringVar(&runCatalogURL, "url", "", "Fetch the catalog from a URL (overrides CATALOG_URL)")
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "Output directory (overrides OUTPUT_DIR)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", -1, "Concurrent derivations, 0 for every CPU (overrides HASH_WORKERS)")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "Keep processing regions after one fails")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: `Fetches the catalog, then derives and emits every region in turn.

Example:
  munihash run --catalog municipios.csv
  munihash run -o out --continue-on-error --json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if runCatalogPath != "" {
		cfg.Catalog.Path = runCatalogPath
	}
	if runCatalogURL != "" {
		cfg.Catalog.URL = runCatalogURL
		if runCatalogPath == "" {
			cfg.Catalog.Path = ""
		}
	}
	if runOutputDir != "" {
		cfg.Output.Dir = runOutputDir
	}
	if runWorkers >= 0 {
		cfg.Hash.Workers = runWorkers
	}
	if cmd.Flags().Changed("continue-on-error") {
		cfg.Run.ContinueOnError = runContinueOnError
	}
	if err := cfg.RequireCatalog(); err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	ctx := core.ContextWithTrigger(cmd.Context(), core.TriggerCLI)

	recorder, closeRecorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	service, err := core.NewService(cfg, recorder)
	if err != nil {
		return err
	}

	report, runErr := service.Run(ctx)
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report, runJSON); err != nil {
			return err
		}
	}
	return runErr
}

// printReport writes the run report as a table or as JSON.
func printReport(out io.Writer, report *core.RunReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tSTATUS\tRECORDS\tDURATION\tTABLE\tJSON")
	fmt.Fprintln(w, "------\t------\t-------\t--------\t-----\t----")
	for _, rr := range report.Regions {
		table, doc := "-", "-"
		if rr.Artifacts != nil {
			table, doc = rr.Artifacts.Table, rr.Artifacts.JSON
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			rr.Region,
			rr.Status,
			rr.Records,
			rr.Duration.Round(time.Millisecond),
			table,
			doc,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nrun %s %s: %d regions, %d rejected rows, %s\n",
		report.RunID,
		report.Status,
		len(report.Regions),
		report.Rejected,
		report.Duration.Round(time.Millisecond),
	)
	return err
}
