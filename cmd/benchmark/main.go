// Command benchmark runs the r32vm timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv            Output results in CSV format (default: human-readable)
//	-json           Output results as a JSON report
//	-core           Run only the quick core set
//	-no-dcache      Disable data cache simulation
//	-timing-config  Path to timing configuration JSON file
//
// Example:
//
//	# Compare latency settings
//	go run ./cmd/benchmark -csv > default.csv
//	go run ./cmd/benchmark -csv -timing-config slow-mem.json > slow.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/r32vm/benchmarks"
	"github.com/sarchlab/r32vm/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	noDCache := flag.Bool("no-dcache", false, "Disable data cache simulation")
	timingConfig := flag.String("timing-config", "", "Path to timing configuration JSON file")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableDCache = !*noDCache
	config.Output = os.Stdout

	if *timingConfig != "" {
		tc, err := latency.LoadConfig(*timingConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = tc
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("r32vm Timing Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("D-Cache: %v\n", config.EnableDCache)
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Valid {
			fmt.Fprintf(os.Stderr, "Error: %s produced %d\n", r.Name, r.Result)
			os.Exit(1)
		}
	}
}
