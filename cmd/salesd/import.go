package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sabata/salesd/internal/sales"
)

var (
	importSource           string
	importUpdateOnConflict bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Bulk-import a CSV file into the sales table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(args[0])
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "cli", "source label recorded with the import")
	importCmd.Flags().BoolVar(&importUpdateOnConflict, "update-on-conflict", false,
		"overwrite existing rows on order id conflict instead of skipping them")
}

func runImport(path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Import.Timeout)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	service := sales.NewService(pool, nil, sales.Options{
		CopyChunkSize: cfg.Import.CopyChunkSize,
		SpeedOptimize: cfg.Import.SpeedOptimize,
	})

	res, err := service.Import(ctx, file, sales.ImportOptions{
		Source:           importSource,
		FileName:         filepath.Base(path),
		UpdateOnConflict: importUpdateOnConflict,
	})
	if err != nil {
		return err
	}

	slog.Info("import finished", "file", path)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
