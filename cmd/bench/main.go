package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/productbaker"
	"github.com/aretw0/productbaker/pkg/catalog"
	"github.com/aretw0/productbaker/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of products to generate")
	adapter := flag.String("adapter", "sqlite", "Storage adapter to benchmark (sqlite, fs, memory)")
	keep := flag.Bool("keep", false, "Keep the benchmark store after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "productbaker_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	open := func() *productbaker.Store {
		store, err := productbaker.New(benchDir, productbaker.WithAdapter(*adapter), productbaker.WithLogger(logger))
		if err != nil {
			panic(err)
		}
		return store
	}
	ctx := context.Background()

	// Products are written as one list, so every Create rewrites the whole document.
	fmt.Printf("Creating %d products with the %s adapter in %s...\n", *count, *adapter, benchDir)
	store := open()
	products := catalog.NewProducts(store)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		_, err := products.Create(ctx, catalog.ProductInput{
			Name: fmt.Sprintf("Product %d", i),
			URL:  fmt.Sprintf("https://example.com/p/%d", i),
			Tags: []string{"benchmark", "test"},
		})
		if err != nil {
			panic(err)
		}
	}
	genDuration := time.Since(startGen)

	load := func(s *productbaker.Store) (time.Duration, int) {
		start := time.Now()
		value, err := s.Load(ctx, core.KeyProducts)
		if err != nil {
			panic(err)
		}
		items, _ := value.([]any)
		return time.Since(start), len(items)
	}

	warm, n := load(store)
	_ = store.Close()

	// A fresh store pays for the open, like a new CLI invocation.
	cold, _ := load(open())

	backupStart := time.Now()
	backup, err := open().Backup(ctx)
	if err != nil {
		panic(err)
	}
	backupDuration := time.Since(backupStart)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d products, %s):\n", n, *adapter)
	fmt.Printf("  Create:      %v (%v/op)\n", genDuration, genDuration/time.Duration(max(*count, 1)))
	fmt.Printf("  Load (cold): %v\n", cold)
	fmt.Printf("  Load (warm): %v\n", warm)
	fmt.Printf("  Backup:      %v (%d bytes)\n", backupDuration, len(backup))
	fmt.Printf("--------------------------------------------------\n")
}
