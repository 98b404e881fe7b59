// Package bench — scanlatency/main.go
//
// Scan-cycle latency measurement tool.
//
// Measures the wall-clock duration of SingleScan() against the
// simulator backend, over a fixed number of iterations, and reports
// the distribution so a deployment can confirm its configured
// scan_rate_ms leaves comfortable headroom.
//
// Output CSV columns:
//
//	iteration, latency_us
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/scstechnologies/lactd/internal/alarms"
	"github.com/scstechnologies/lactd/internal/iobridge"
	"github.com/scstechnologies/lactd/internal/iobridge/simulator"
	"github.com/scstechnologies/lactd/internal/scanengine"
	"github.com/scstechnologies/lactd/internal/setpoints"
	"github.com/scstechnologies/lactd/internal/tagstore"
)

func main() {
	iterations := flag.Int("iterations", 10000, "Number of scan cycles to measure")
	outputFile := flag.String("output", "scan_latency_raw.csv", "Output CSV file path")
	targetUs := flag.Int("target-us", 10000, "p99 latency target in microseconds; non-zero exit if exceeded")
	flag.Parse()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"iteration", "latency_us"})

	sim := simulator.New(1)
	bridge := iobridge.New(sim, iobridge.Points, nil)
	reg := alarms.NewRegistry()
	ds := tagstore.New()
	sp := setpoints.Defaults()

	engine := scanengine.New(ds, bridge, sp, reg, nil)

	const histSize = 100001 // 0-100000us
	hist := make([]int, histSize)

	for i := 0; i < *iterations; i++ {
		start := time.Now()
		engine.SingleScan()
		latency := time.Since(start)

		latencyUs := int(latency.Microseconds())
		if latencyUs < histSize {
			hist[latencyUs]++
		} else {
			hist[histSize-1]++
		}

		_ = w.Write([]string{strconv.Itoa(i), strconv.Itoa(latencyUs)})
	}

	p50, p95, p99 := computePercentiles(hist, *iterations)

	fmt.Printf("Scan Cycle Latency Results (%d iterations)\n", *iterations)
	fmt.Printf("  p50: %dus\n", p50)
	fmt.Printf("  p95: %dus\n", p95)
	fmt.Printf("  p99: %dus\n", p99)
	fmt.Printf("  overruns: %d\n", engine.Overruns())
	fmt.Printf("  output: %s\n", *outputFile)

	if p99 > *targetUs {
		fmt.Fprintf(os.Stderr, "FAIL: p99 %dus exceeds %dus target\n", p99, *targetUs)
		os.Exit(1)
	}
}

func computePercentiles(hist []int, total int) (p50, p95, p99 int) {
	targets := []struct {
		pct float64
		out *int
	}{
		{0.50, &p50},
		{0.95, &p95},
		{0.99, &p99},
	}
	cumulative := 0
	ti := 0
	for i, count := range hist {
		cumulative += count
		for ti < len(targets) && float64(cumulative) >= targets[ti].pct*float64(total) {
			*targets[ti].out = i
			ti++
		}
		if ti == len(targets) {
			break
		}
	}
	return
}
