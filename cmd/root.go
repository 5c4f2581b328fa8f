package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stefankarschti/inputosm/internal/config"
	"github.com/stefankarschti/inputosm/internal/logger"
	"github.com/stefankarschti/inputosm/internal/osmpbf"
)

var (
	cfg        = config.DefaultConfig()
	configFile string
	verbose    bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "inputosm",
	Short: "Streaming reader for OSM PBF and XML files",
	Long: `inputosm reads OpenStreetMap data files (.pbf, .osm, .osc) and streams
decoded nodes, ways and relations to batch handlers.

The PBF path memory-maps the input and decodes blocks on a worker pool;
batches arrive in no particular block order. The XML path is a simple
sequential adapter.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := cfg.LoadFile(configFile); err != nil {
				return err
			}
		}
		cfg.Verbose = verbose
		cfg.LogFile = logFile

		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}

		osmpbf.SetThreadCount(cfg.Workers)
		return nil
	},
}

func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of decode workers")
	rootCmd.PersistentFlags().BoolVarP(&cfg.DecodeMetadata, "metadata", "m", false, "Decode version/timestamp/changeset metadata")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&cfg.MetricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (0 disables)")
}
