package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/ingest/csvimport"
)

var (
	importSheet   string
	importMapping string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Append leads from a CSV or XLSX file to the sheet",
	Long: `Parse a CSV or XLSX export and append its leads to the leads sheet.

Columns are matched by header name unless --mapping gives an explicit
{"file header": "leadField"} JSON object. Appending to the sheet needs
sync.mode=write_through; use --dry-run to preview the parsed leads.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet to read from an XLSX file (default first)")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "JSON column mapping")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and print the leads without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	opts := csvimport.Options{Now: time.Now()}
	if importMapping != "" {
		if err := json.Unmarshal([]byte(importMapping), &opts.Mapping); err != nil {
			return fmt.Errorf("--mapping: %w", err)
		}
	}
	leads, err := csvimport.Sniff(data, importSheet, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if importDryRun {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, resolveDataDir())
	if err != nil {
		return err
	}
	defer a.Close()
	if a.config().Sync.Mode != config.ModeWriteThrough {
		return errors.New("import needs sync.mode=write_through; in cache_only mode use the running engine's /leads/import")
	}

	imported, err := a.repo.Import(ctx, leads)
	if err != nil {
		return err
	}
	a.log.Info("import finished", zap.String("file", args[0]), zap.Int("leads", len(imported)))
	cmd.Printf("imported %d leads into the sheet\n", len(imported))
	return nil
}
