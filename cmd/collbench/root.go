// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"collbench/internal/bench/report"
	"collbench/internal/bench/runner"
	"collbench/internal/bench/suite"
	"collbench/internal/bench/telemetry"
)

var exit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "collbench [benchmark]",
	Short: "Distributed collective micro-benchmark harness",
	Long: `collbench measures the latency and bandwidth of collective operations
across a group of cooperating processes. Every participating process runs
the same command; group membership comes from --rank/--size with a shared
Redis instance, or from an MPI/Slurm launcher environment.

Built-in benchmarks: ` + strings.Join(suite.Names(), ", ") + `.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBenchmark,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.Flags()
	f.String("transport", "tcp", "transport device (tcp, unix)")
	f.Int("threads", 1, "worker threads per process")
	f.Int("elements", 0, "fixed element count (0 runs the geometric sweep)")
	f.Int("element-size", 4, "bytes per element")
	f.Int("iteration-count", 0, "fixed iterations per point (0 negotiates from --iteration-time)")
	f.Duration("iteration-time", 2*time.Second, "target duration per sweep point")
	f.Int("warmup-iterations", 5, "warmup iterations before negotiation")
	f.Bool("sync", false, "synchronous transport mode")
	f.Bool("busy-poll", false, "busy-poll in synchronous mode")
	f.Bool("verify", false, "verify benchmark output before timing")
	f.Bool("nanos", false, "report latency in nanoseconds instead of microseconds")

	f.Int("rank", -1, "this process's rank (requires --size and --redis-host)")
	f.Int("size", 0, "total process count")
	f.String("redis-host", "", "redis host for group rendezvous")
	f.Int("redis-port", 6379, "redis port")
	f.String("prefix", "collbench", "key prefix shared by all ranks of one run")
	f.String("shared-path", "", "shared directory for launcher-based rendezvous")

	f.String("metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9100)")
	f.String("output", "", "append run results to this JSON file (rank 0 only)")
	f.Bool("debug", false, "enable debug logging")

	if err := viper.BindPFlags(f); err != nil {
		panic(err)
	}
}

func initConfig() {
	// A .env next to the binary is a convenience for launcher scripts;
	// absence is not an error.
	_ = godotenv.Load()

	viper.SetEnvPrefix("COLLBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	opts := runner.DefaultOptions()
	if len(args) > 0 {
		opts.Benchmark = args[0]
	}
	opts.Transport = viper.GetString("transport")
	opts.Threads = viper.GetInt("threads")
	opts.Elements = viper.GetInt("elements")
	opts.ElementSize = viper.GetInt("element-size")
	opts.IterationCount = viper.GetInt("iteration-count")
	opts.IterationTime = viper.GetDuration("iteration-time")
	opts.WarmupIterationCount = viper.GetInt("warmup-iterations")
	opts.Sync = viper.GetBool("sync")
	opts.BusyPoll = viper.GetBool("busy-poll")
	opts.Verify = viper.GetBool("verify")
	opts.ShowNanos = viper.GetBool("nanos")
	opts.Rank = viper.GetInt("rank")
	opts.Size = viper.GetInt("size")
	opts.RedisHost = viper.GetString("redis-host")
	opts.RedisPort = viper.GetInt("redis-port")
	opts.Prefix = viper.GetString("prefix")
	opts.SharedPath = viper.GetString("shared-path")

	telemetry.InitLogger(viper.GetBool("debug"), opts.Rank)
	if addr := viper.GetString("metrics-addr"); addr != "" {
		telemetry.StartMetricsEndpoint(addr)
	}

	factory, err := suite.New(opts.Benchmark, opts.ElementSize)
	if err != nil {
		return err
	}

	reporter := report.MultiReporter{&report.TablePrinter{W: os.Stdout, ShowNanos: opts.ShowNanos}}
	if path := viper.GetString("output"); path != "" {
		store, err := report.NewFileStore(path)
		if err != nil {
			return err
		}
		reporter = append(reporter, store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(ctx, opts, reporter)
	if err != nil {
		return err
	}

	runErr := r.Run(ctx, factory)
	if err := r.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	if r.Rank() == 0 {
		if err := reporter.Flush(); err != nil {
			return err
		}
	}
	slog.Debug("run complete", "rank", r.Rank(), "size", r.Size())
	return nil
}
