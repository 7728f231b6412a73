// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tracewell/profcore/internal/xlog"
	"github.com/tracewell/profcore/symbol/cache"
)

func newGCCmd() *cobra.Command {
	var (
		cacheDir     string
		maxTotalSize int64
		maxAge       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "evict stale or oversized entries from the symbol cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cache.Open(cache.Config{
				Dir:          cacheDir,
				MaxTotalSize: maxTotalSize,
				MaxAge:       maxAge,
				Logger:       rootLogger,
			})
			if err != nil {
				return err
			}
			before := db.TotalSize()
			db.TriggerEvictionIfNeeded()
			after := db.TotalSize()

			log := xlog.NewHelper(rootLogger)
			log.Infof("cache gc: %d -> %d bytes", before, after)
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory to collect")
	cmd.Flags().Int64Var(&maxTotalSize, "max-size", 1<<30, "maximum total cache size in bytes")
	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "maximum age of a cache entry before eviction")
	return cmd
}
