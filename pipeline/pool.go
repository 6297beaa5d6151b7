// Copyright 2025 The JobSeg Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// runPool runs fn(0..n-1) on a bounded pool, with a progress bar when stderr
// is a terminal. Results are the callee's responsibility; slot i of a
// preallocated slice keeps completion order irrelevant.
func runPool(desc string, n, workers int, fn func(i int)) {
	if workers <= 0 {
		workers = 1
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			fn(i)

			if bar != nil {
				_ = bar.Add(1)
			}
		}(i)
	}

	wg.Wait()
}
