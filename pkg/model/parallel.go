package model

import (
	"runtime"
	"sync"
)

// parallelRows splits [0, n) into one contiguous chunk per CPU and runs fn on
// each chunk concurrently, returning once all chunks are done.
func parallelRows(n int, fn func(start, end int)) {
	if n == 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
