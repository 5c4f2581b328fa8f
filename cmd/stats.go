package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/input"
	"github.com/stefankarschti/inputosm/internal/logger"
	"github.com/stefankarschti/inputosm/internal/metrics"
	"github.com/stefankarschti/inputosm/internal/osm"
	"github.com/stefankarschti/inputosm/internal/osmpbf"
)

// statsCounters are sharded by worker slot so handlers never contend.
type statsCounters struct {
	nodes        []uint64
	ways         []uint64
	relations    []uint64
	maxNodeBatch []uint64
	maxWayBatch  []uint64
	maxRelBatch  []uint64
	newest       []int64
}

func newStatsCounters(workers int) *statsCounters {
	return &statsCounters{
		nodes:        make([]uint64, workers),
		ways:         make([]uint64, workers),
		relations:    make([]uint64, workers),
		maxNodeBatch: make([]uint64, workers),
		maxWayBatch:  make([]uint64, workers),
		maxRelBatch:  make([]uint64, workers),
		newest:       make([]int64, workers),
	}
}

func sum(v []uint64) uint64 {
	var total uint64
	for _, x := range v {
		total += x
	}
	return total
}

func max64(v []uint64) uint64 {
	var m uint64
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Count entities in an OSM file",
	Long: `Stats decodes the whole file and prints per-kind entity counts, the
largest batch seen per kind, and (with --metadata) the newest entity
timestamp.`,
	Args: cobra.ExactArgs(1),
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

		workers := osmpbf.ThreadCount()
		counters := newStatsCounters(workers)
		start := time.Now()

		ok := input.File(cfg.InputFile, input.Options{
			DecodeMetadata: cfg.DecodeMetadata,
			Workers:        workers,
			Logger:         logger.Decoder(),
			Handlers: osm.Handlers{
				Node: func(ctx *osm.Context, nodes []osm.Node) bool {
					i := ctx.ThreadIndex
					counters.nodes[i] += uint64(len(nodes))
					if n := uint64(len(nodes)); n > counters.maxNodeBatch[i] {
						counters.maxNodeBatch[i] = n
					}
					for j := range nodes {
						if nodes[j].Timestamp > counters.newest[i] {
							counters.newest[i] = nodes[j].Timestamp
						}
					}
					return true
				},
				Way: func(ctx *osm.Context, ways []osm.Way) bool {
					i := ctx.ThreadIndex
					counters.ways[i] += uint64(len(ways))
					if n := uint64(len(ways)); n > counters.maxWayBatch[i] {
						counters.maxWayBatch[i] = n
					}
					for j := range ways {
						if ways[j].Timestamp > counters.newest[i] {
							counters.newest[i] = ways[j].Timestamp
						}
					}
					return true
				},
				Relation: func(ctx *osm.Context, relations []osm.Relation) bool {
					i := ctx.ThreadIndex
					counters.relations[i] += uint64(len(relations))
					if n := uint64(len(relations)); n > counters.maxRelBatch[i] {
						counters.maxRelBatch[i] = n
					}
					for j := range relations {
						if relations[j].Timestamp > counters.newest[i] {
							counters.newest[i] = relations[j].Timestamp
						}
					}
					return true
				},
			},
		})
		if !ok {
			return fmt.Errorf("decoding %s failed", cfg.InputFile)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		log.Info("decode complete",
			zap.Duration("elapsed", elapsed),
			zap.Int("workers", workers),
		)
		fmt.Printf("nodes:     %12d (largest batch %d)\n", sum(counters.nodes), max64(counters.maxNodeBatch))
		fmt.Printf("ways:      %12d (largest batch %d)\n", sum(counters.ways), max64(counters.maxWayBatch))
		fmt.Printf("relations: %12d (largest batch %d)\n", sum(counters.relations), max64(counters.maxRelBatch))
		if cfg.DecodeMetadata {
			var newest int64
			for _, ts := range counters.newest {
				if ts > newest {
					newest = ts
				}
			}
			if newest > 0 {
				fmt.Printf("newest:    %s\n", time.Unix(newest, 0).UTC().Format(time.RFC3339))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
