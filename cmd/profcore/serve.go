// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tracewell/profcore/internal/xlog"
	"github.com/tracewell/profcore/symbol"
	"github.com/tracewell/profcore/symbol/api"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		cacheDir   string
		symbolDirs []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the Tecken-compatible symbolication API",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := symbol.NewManager(symbol.ManagerConfig{
				Candidates: symbol.CandidateConfig{ExtraSymbolDirs: symbolDirs},
				CacheDir:   cacheDir,
				Observer:   symbol.NewVerboseObserver(rootLogger),
				Logger:     rootLogger,
			})
			srv := api.NewServer(mgr, rootLogger)

			mux := http.NewServeMux()
			srv.Routes(mux)

			log := xlog.NewHelper(rootLogger)
			log.Infof("listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "address to listen on")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory to cache downloaded symbol files in")
	cmd.Flags().StringSliceVar(&symbolDirs, "symbol-dir", nil, "extra local directory to search for symbol files")
	return cmd
}
