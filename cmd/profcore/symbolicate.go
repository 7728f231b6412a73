// Copyright 2024 Tracewell. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tracewell/profcore/internal/xlog"
	"github.com/tracewell/profcore/symbol"
)

func newSymbolicateCmd() *cobra.Command {
	var (
		symbolDirs []string
		ntSymPath  string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "symbolicate [paths...]",
		Short: "parse every binary under the given paths and report its debug id and symbol count",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := symbol.NewManager(symbol.ManagerConfig{
				Candidates: symbol.CandidateConfig{
					ExtraSymbolDirs: symbolDirs,
					NTSymbolPath:    ntSymPath,
				},
				Observer: symbol.NewVerboseObserver(rootLogger),
				Logger:   rootLogger,
			})
			return runSymbolicate(args, mgr, workers)
		},
	}
	cmd.Flags().StringSliceVar(&symbolDirs, "symbol-dir", nil, "extra local directory to search for symbol files")
	cmd.Flags().StringVar(&ntSymPath, "nt-symbol-path", os.Getenv("_NT_SYMBOL_PATH"), "symsrv-style symbol path (defaults to $_NT_SYMBOL_PATH)")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent symbolication workers")
	return cmd
}

// runSymbolicate walks paths and farms each discovered file out across
// a worker pool, the same sync.WaitGroup-plus-channel shape the
// teacher's batch directory walker used for PE parsing.
func runSymbolicate(paths []string, mgr *symbol.Manager, workers int) error {
	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := symbolicateOne(path, mgr); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					fmt.Fprintf(os.Stderr, "profcore: %s: %v\n", path, err)
				}
			}
		}()
	}

	for _, root := range paths {
		if err := walkFiles(root, jobs); err != nil {
			close(jobs)
			wg.Wait()
			return err
		}
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

func walkFiles(root string, jobs chan<- string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		jobs <- root
		return nil
	}
	return filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			jobs <- path
		}
		return nil
	})
}

func symbolicateOne(path string, mgr *symbol.Manager) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch symbol.SniffFormat(data) {
	case symbol.FormatUnknown:
		return nil
	}

	sm, err := symbol.NewSymbolMapFromBytes(data, nil, nil)
	if err != nil {
		return err
	}
	defer sm.Close()

	log := xlog.NewHelper(rootLogger)
	log.Infof("%s: debug id %s, %d symbols", path, sm.DebugID().Breakpad(), sm.SymbolCount())
	return nil
}
