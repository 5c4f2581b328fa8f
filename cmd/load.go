package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/config"
	"github.com/stefankarschti/inputosm/internal/export"
	"github.com/stefankarschti/inputosm/internal/input"
	"github.com/stefankarschti/inputosm/internal/logger"
	"github.com/stefankarschti/inputosm/internal/osmpbf"
)

var bboxFlag string

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load an OSM file into PostgreSQL",
	Long: `Load decodes the file and inserts nodes, ways and relations into plain
PostgreSQL tables (osm_nodes, osm_ways, osm_relations) in the configured
schema. Existing tables are dropped first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		cfg.InputFile = args[0]
		if err := cfg.Validate(); err != nil {
			return err
		}
		bbox, err := config.ParseBBox(bboxFlag)
		if err != nil {
			return err
		}
		cfg.BBox = bbox

		ctx := context.Background()
		loader, err := export.NewPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}

		start := time.Now()
		ok := input.File(cfg.InputFile, input.Options{
			DecodeMetadata: cfg.DecodeMetadata,
			Workers:        osmpbf.ThreadCount(),
			Logger:         logger.Decoder(),
			Handlers:       loader.Handlers(),
		})
		if err := loader.Close(ctx); err != nil {
			return fmt.Errorf("finish load: %w", err)
		}
		if !ok {
			return fmt.Errorf("decoding %s failed", cfg.InputFile)
		}

		log.Info("load complete",
			zap.Int64("rows", loader.Rows.Load()),
			zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	loadCmd.Flags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	loadCmd.Flags().StringVar(&cfg.DBName, "db-name", cfg.DBName, "Database name")
	loadCmd.Flags().StringVar(&cfg.DBUser, "db-user", cfg.DBUser, "Database user")
	loadCmd.Flags().StringVar(&cfg.DBPassword, "db-password", cfg.DBPassword, "Database password")
	loadCmd.Flags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "Target schema")
	loadCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per insert batch")
	loadCmd.Flags().StringVar(&bboxFlag, "bbox", "", "Only load nodes inside minlon,minlat,maxlon,maxlat")
	rootCmd.AddCommand(loadCmd)
}
