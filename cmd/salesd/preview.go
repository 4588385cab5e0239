package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabata/salesd/internal/sales"
)

var previewMaxErrors int

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Validate a CSV file without importing it",
	Long: `Preview parses a CSV file and reports the counts an import would
produce (total, valid, invalid, duplicate rows) plus the first row-level
constraint violations. No database connection is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(args[0])
	},
}

func init() {
	previewCmd.Flags().IntVar(&previewMaxErrors, "max-errors", sales.MaxPreviewErrors,
		"maximum number of row errors to report")
}

func runPreview(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := sales.Preview(file, previewMaxErrors)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
