package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/export"
	"github.com/stefankarschti/inputosm/internal/input"
	"github.com/stefankarschti/inputosm/internal/logger"
	"github.com/stefankarschti/inputosm/internal/metrics"
	"github.com/stefankarschti/inputosm/internal/osmpbf"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export an OSM file to CSV",
	Long:  `Export decodes the file and writes nodes.csv, ways.csv and relations.csv into the output directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		cfg.InputFile = args[0]
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if cfg.MetricsInterval > 0 {
			go metrics.NewCollector(cfg.MetricsInterval, log).Start(ctx)
		}

		writer, err := export.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			return err
		}

		start := time.Now()
		ok := input.File(cfg.InputFile, input.Options{
			DecodeMetadata: cfg.DecodeMetadata,
			Workers:        osmpbf.ThreadCount(),
			Logger:         logger.Decoder(),
			Handlers:       writer.Handlers(),
		})
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close CSV output: %w", err)
		}
		if !ok {
			return fmt.Errorf("decoding %s failed", cfg.InputFile)
		}

		log.Info("export complete",
			zap.String("output_dir", cfg.OutputDir),
			zap.Int64("nodes", writer.Nodes.Load()),
			zap.Int64("ways", writer.Ways.Load()),
			zap.Int64("relations", writer.Relations.Load()),
			zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for CSV output")
	rootCmd.AddCommand(exportCmd)
}
