// Command extentbench measures extent map throughput for a handful of
// synthetic workloads: state-tree churn (set/clear over random ranges)
// and buffer-cache churn (alloc/release under LRU pressure).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/extentcue/extentmap/pkg/extentmap"
)

// config holds every tunable, mergeable from an optional JSONC file and
// then overridden by explicit flags (same precedence the teacher project
// uses for its own config: defaults, then file, then CLI).
type config struct {
	CacheMax   uint64 `json:"cache_max"`
	BlockSize  int    `json:"block_size"`
	Ops        int    `json:"ops"`
	Seed       uint64 `json:"seed"`
	ResultPath string `json:"result_path"`
}

func defaultConfig() config {
	return config{
		CacheMax:   extentmap.DefaultCacheMax,
		BlockSize:  4096,
		Ops:        200_000,
		Seed:       1,
		ResultPath: "extentbench-results.json",
	}
}

// result is one workload's measured throughput, written out as JSON.
type result struct {
	Workload   string        `json:"workload"`
	Ops        int           `json:"ops"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	OpsPerSec  float64       `json:"ops_per_sec"`
	CacheBytes uint64        `json:"final_cache_bytes,omitempty"`
}

func main() {
	cfg := defaultConfig()

	var configPath string

	flags := pflag.NewFlagSet("extentbench", pflag.ExitOnError)
	flags.StringVar(&configPath, "config", "", "optional JSONC config file overriding defaults")
	flags.Uint64Var(&cfg.CacheMax, "cache-max", cfg.CacheMax, "soft byte ceiling for the buffer cache")
	flags.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "buffer size in bytes for cache workloads")
	flags.IntVar(&cfg.Ops, "ops", cfg.Ops, "operation count per workload")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "PRNG seed for reproducible runs")
	flags.StringVar(&cfg.ResultPath, "out", cfg.ResultPath, "path to write the JSON results report")

	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "extentbench: %v\n", err)
		os.Exit(1)
	}

	if configPath != "" {
		if err := mergeConfigFile(&cfg, configPath); err != nil {
			fmt.Fprintf(os.Stderr, "extentbench: %v\n", err)
			os.Exit(1)
		}

		// Parse again so explicit flags win over the file's values.
		_ = flags.Parse(os.Args[1:])
	}

	results := []result{
		benchStateTreeChurn(cfg),
		benchBufferCacheChurn(cfg),
	}

	if err := writeResults(cfg.ResultPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "extentbench: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		fmt.Printf("%-20s %10d ops  %12s  %12.0f ops/sec\n", r.Workload, r.Ops, r.Elapsed, r.OpsPerSec)
	}
}

// mergeConfigFile loads a JSON-with-comments config file and overlays its
// fields onto cfg, the same hujson.Standardize-then-unmarshal approach the
// teacher's root config.go uses for .tk.json.
func mergeConfigFile(cfg *config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var overlay config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return fmt.Errorf("invalid config JSON in %s: %w", path, err)
	}

	if overlay.CacheMax != 0 {
		cfg.CacheMax = overlay.CacheMax
	}
	if overlay.BlockSize != 0 {
		cfg.BlockSize = overlay.BlockSize
	}
	if overlay.Ops != 0 {
		cfg.Ops = overlay.Ops
	}
	if overlay.Seed != 0 {
		cfg.Seed = overlay.Seed
	}
	if overlay.ResultPath != "" {
		cfg.ResultPath = overlay.ResultPath
	}

	return nil
}

// benchStateTreeChurn alternates SetBits and ClearBits of FlagDirty over
// random ranges of up to 4096 bytes within a 16 MiB address space.
func benchStateTreeChurn(cfg config) result {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xABCD))
	tree := extentmap.Open(extentmap.Options{CacheMax: cfg.CacheMax})
	defer tree.Close()

	const space = 1 << 24

	start := time.Now()
	for i := 0; i < cfg.Ops; i++ {
		lo := uint64(rng.IntN(space))
		hi := lo + uint64(rng.IntN(4096))

		if i%2 == 0 {
			_, _ = tree.State.SetBits(lo, hi, extentmap.FlagDirty)
		} else {
			_, _ = tree.State.ClearBits(lo, hi, extentmap.FlagDirty)
		}
	}
	elapsed := time.Since(start)

	return result{
		Workload:  "state-tree-churn",
		Ops:       cfg.Ops,
		Elapsed:   elapsed,
		OpsPerSec: float64(cfg.Ops) / elapsed.Seconds(),
	}
}

// benchBufferCacheChurn exercises Alloc/Release under steady eviction
// pressure: every buffer is touched once then released, forcing the LRU
// sweep on most allocations once the cache fills.
func benchBufferCacheChurn(cfg config) result {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xF00D))
	tree := extentmap.Open(extentmap.Options{CacheMax: cfg.CacheMax})
	defer tree.Close()

	slots := int(cfg.CacheMax/uint64(cfg.BlockSize)) * 4
	if slots < 1 {
		slots = 1
	}

	start := time.Now()
	for i := 0; i < cfg.Ops; i++ {
		bytenr := uint64(rng.IntN(slots)) * uint64(cfg.BlockSize)

		b, err := tree.Alloc(bytenr, cfg.BlockSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "extentbench: alloc failed: %v\n", err)
			os.Exit(1)
		}
		tree.Release(b)
	}
	elapsed := time.Since(start)

	return result{
		Workload:   "buffer-cache-churn",
		Ops:        cfg.Ops,
		Elapsed:    elapsed,
		OpsPerSec:  float64(cfg.Ops) / elapsed.Seconds(),
		CacheBytes: tree.CacheSize(),
	}
}

// writeResults atomically replaces the results file so a killed or
// crashed run never leaves a half-written report behind, the same
// guarantee the teacher project uses natefinch/atomic for on its own
// on-disk state files.
func writeResults(path string, results []result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
