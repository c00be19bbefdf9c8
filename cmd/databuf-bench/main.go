// Command databuf-bench drives an in-process Buffer with concurrent
// Store/Get traffic and reports throughput, mirroring the shape of a
// load-test harness without needing a server to talk to.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/buffer"
	"github.com/anovak/databuf/internal/metrics"
)

func main() {
	n := flag.Int("n", 5000, "number of keys to store and read back")
	conc := flag.Int("c", 32, "concurrent workers")
	valSize := flag.Int("val", 256, "value size in bytes")
	memMax := flag.Uint64("mem", 4<<20, "memory lane capacity in bytes")
	diskMax := flag.Uint64("disk", 64<<20, "disk lane capacity in bytes")
	pop := flag.Bool("pop", false, "evict via pop callback instead of blocking when disk is full")
	flag.Parse()

	var popped int64
	var poppedMu sync.Mutex
	cfg := buffer.Config[string]{
		MaxMemoryUsage: *memMax,
		MaxDiskUsage:   *diskMax,
		KeyEncoder:     func(k string) string { return k },
		Metrics:        metrics.New("databuf_bench"),
		Logger:         zap.NewNop(),
	}
	if *pop {
		cfg.PopCallback = func(key string, value []byte) {
			poppedMu.Lock()
			popped++
			poppedMu.Unlock()
		}
	}

	b, err := buffer.New[string](cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "databuf-bench:", err)
		os.Exit(1)
	}
	defer b.Close()

	payload := make([]byte, *valSize)
	rand.Read(payload)

	start := time.Now()
	sem := make(chan struct{}, *conc)
	var wg sync.WaitGroup
	var storeErrs, getErrs int64
	var errMu sync.Mutex

	for i := 0; i < *n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			key := fmt.Sprintf("bench-key-%d", i)
			if err := b.Store(key, payload); err != nil {
				errMu.Lock()
				storeErrs++
				errMu.Unlock()
				return
			}
			if _, err := b.Get(key); err != nil {
				errMu.Lock()
				getErrs++
				errMu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)

	totalBytes := uint64(*n) * uint64(*valSize)
	fmt.Printf("stored+read %d keys (%s) in %s (%.2f ops/s)\n",
		*n, humanize.Bytes(totalBytes), dur, float64(*n*2)/dur.Seconds())
	if storeErrs > 0 || getErrs > 0 {
		fmt.Printf("errors: %d store, %d get\n", storeErrs, getErrs)
	}
	if *pop {
		fmt.Printf("pop-callback evictions: %d\n", popped)
	}
}
