package kv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mappy/cmd/util"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for mappy servers",
		Long:    `Runs insert/query/contains/delete benchmarks against a running server and reports latency percentiles per operation.`,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfOpsPerTest = 10000
	perfValueSize  = 128
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,query)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("How many operations to run per benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 128, util.WrapString("Size of the values in bytes"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfKeySpread = viper.GetInt("keys")
	perfOpsPerTest = viper.GetInt("ops")
	perfValueSize = viper.GetInt("value-size")
	if skip := viper.GetString("skip"); skip != "" {
		perfSkip = strings.Split(skip, ",")
	}

	return nil
}

// perfResult is one benchmark's outcome
type perfResult struct {
	name   string
	ops    int
	errors int64
	total  time.Duration
	timer  metrics.Timer
}

func runPerf(_ *cobra.Command, _ []string) error {
	value := make([]byte, perfValueSize)

	benchmarks := []struct {
		name string
		op   func(key string) error
	}{
		{"insert", func(key string) error {
			return rpcStore.Insert(key, value)
		}},
		{"query", func(key string) error {
			_, _, err := rpcStore.Query(key)
			return err
		}},
		{"contains", func(key string) error {
			_, err := rpcStore.Contains(key)
			return err
		}},
		{"delete", func(key string) error {
			_, err := rpcStore.Delete(key, value)
			return err
		}},
	}

	var results []perfResult
	for _, bench := range benchmarks {
		if skipBench(bench.name) {
			fmt.Printf("skipping %s\n", bench.name)
			continue
		}

		result, err := runBenchmark(bench.name, bench.op)
		if err != nil {
			return err
		}
		results = append(results, result)
		printResult(result)
	}

	// optionally export as CSV
	if path := viper.GetString("csv"); path != "" {
		if err := writeCSV(path, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", path)
	}

	return nil
}

func skipBench(name string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

// runBenchmark spreads perfOpsPerTest operations across the worker pool
// and samples per-operation latency
func runBenchmark(name string, op func(key string) error) (perfResult, error) {
	timer := metrics.NewTimer()
	var errCount int64
	var opIndex int64

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(perfNumThreads)
	for w := 0; w < perfNumThreads; w++ {
		g.Go(func() error {
			for {
				i := atomic.AddInt64(&opIndex, 1)
				if i > int64(perfOpsPerTest) {
					return nil
				}
				key := fmt.Sprintf("%s-%d", perfKeyPrefix, i%int64(perfKeySpread))

				opStart := time.Now()
				if err := op(key); err != nil {
					atomic.AddInt64(&errCount, 1)
				}
				timer.UpdateSince(opStart)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return perfResult{}, err
	}

	return perfResult{
		name:   name,
		ops:    perfOpsPerTest,
		errors: errCount,
		total:  time.Since(start),
		timer:  timer,
	}, nil
}

// printResult prints one benchmark line with latency percentiles
func printResult(r perfResult) {
	ps := r.timer.Percentiles([]float64{0.5, 0.95, 0.99})
	opsPerSec := float64(r.ops) / r.total.Seconds()

	fmt.Printf("%-10s %8d ops %10.2f ops/sec  p50: %s  p95: %s  p99: %s  errors: %d\n",
		r.name, r.ops, opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		r.errors)
}

// writeCSV saves the benchmark results to a CSV file
func writeCSV(path string, results []perfResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"benchmark", "ops", "ops_per_sec", "p50_ns", "p95_ns", "p99_ns", "mean_ns", "errors"}); err != nil {
		return err
	}

	for _, r := range results {
		ps := r.timer.Percentiles([]float64{0.5, 0.95, 0.99})
		opsPerSec := float64(r.ops) / r.total.Seconds()

		row := []string{
			r.name,
			strconv.Itoa(r.ops),
			strconv.FormatFloat(opsPerSec, 'f', 2, 64),
			strconv.FormatFloat(ps[0], 'f', 0, 64),
			strconv.FormatFloat(ps[1], 'f', 0, 64),
			strconv.FormatFloat(ps[2], 'f', 0, 64),
			strconv.FormatFloat(r.timer.Mean(), 'f', 0, 64),
			strconv.FormatInt(r.errors, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
