// resultdiff compares the two most recent benchmark runs persisted by the
// harness's --output JSON file and prints the per-element-count latency and
// bandwidth deltas. It is meant for quick regression checks between a
// baseline and a candidate run without external tooling.
//
// Usage examples:
//
//	resultdiff -file=results.json
//	resultdiff -file=results.json -metric=p99
//
// Notes:
//   - Element counts present in only one of the two runs are skipped.
//   - A positive latency delta means the newer run is slower.
package main

import (
	"flag"
	"fmt"
	"os"

	"collbench/internal/bench/report"
)

func main() {
	var (
		file   = flag.String("file", "results.json", "Results file written by the harness --output flag")
		metric = flag.String("metric", "p50", "Latency metric to compare: min|p50|p99|max")
	)
	flag.Parse()

	pick, ok := map[string]func(report.Record) int64{
		"min": func(r report.Record) int64 { return r.MinNanos },
		"p50": func(r report.Record) int64 { return r.P50Nanos },
		"p99": func(r report.Record) int64 { return r.P99Nanos },
		"max": func(r report.Record) int64 { return r.MaxNanos },
	}[*metric]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -metric=%s (want min|p50|p99|max)\n", *metric)
		os.Exit(2)
	}

	store, err := report.NewFileStore(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	runs, err := store.LoadAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(runs) < 2 {
		fmt.Fprintf(os.Stderr, "need at least 2 runs in %s, have %d\n", *file, len(runs))
		os.Exit(1)
	}

	base, next := runs[len(runs)-2], runs[len(runs)-1]
	fmt.Printf("base: %s  %s  %s/%s\n", base.ID, base.Timestamp.Format("2006-01-02 15:04:05"), base.Meta.Device, base.Meta.Benchmark)
	fmt.Printf("next: %s  %s  %s/%s\n\n", next.ID, next.Timestamp.Format("2006-01-02 15:04:05"), next.Meta.Device, next.Meta.Benchmark)

	baseByElements := make(map[int]report.Record, len(base.Records))
	for _, rec := range base.Records {
		baseByElements[rec.Elements] = rec
	}

	fmt.Printf("%11s%14s%14s%9s%13s\n", "elements", *metric+" base", *metric+" next", "delta", "GB/s delta")
	for _, rec := range next.Records {
		prev, ok := baseByElements[rec.Elements]
		if !ok {
			continue
		}
		b, n := pick(prev), pick(rec)
		pct := 0.0
		if b > 0 {
			pct = float64(n-b) / float64(b) * 100
		}
		fmt.Printf("%11d%14d%14d%8.1f%%%13.3f\n",
			rec.Elements, b, n, pct, rec.GiBps-prev.GiBps)
	}
}
