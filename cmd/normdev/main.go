// Command normdev flags outliers in one or more observation datasets.
//
// Usage:
//
//	normdev [flags] dataset.json...
//
// Each input is processed independently and written back with its outlier
// flags updated, either in place or into -out-dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/go-normdev/infrastructure/logging"
	"github.com/ahrav/go-normdev/infrastructure/middleware"
	"github.com/ahrav/go-normdev/internal/application"
	"github.com/ahrav/go-normdev/internal/dataset"
	"github.com/ahrav/go-normdev/internal/domain"
	"github.com/ahrav/go-normdev/internal/grouping"
	"github.com/ahrav/go-normdev/internal/ports"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML configuration file")
		method      = flag.String("method", "", "Rejection method (standard, simple, target); overrides the configuration")
		zmax        = flag.Float64("zmax", 0, "Rejection threshold; overrides the configuration when positive")
		targetPath  = flag.String("target", "", "Reference dataset for the target method")
		outDir      = flag.String("out-dir", "", "Directory for results; inputs are overwritten when empty")
		friedel     = flag.Bool("merge-friedel", false, "Group Friedel mates together")
		metricsPath = flag.String("metrics-file", "", "Write Prometheus metrics in text format to this file")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: normdev [flags] dataset.json...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *method != "" {
		cfg.Rejection.Method = *method
	}
	if *zmax > 0 {
		cfg.Rejection.ZMax = *zmax
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	req, err := cfg.Request()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *targetPath != "" {
		target, err := dataset.Load(*targetPath)
		if err != nil {
			log.Fatalf("Failed to load target: %v", err)
		}
		req.Target = target.Table()
	}

	var grouper ports.Grouper = grouping.IdentityGrouper{}
	if *friedel {
		grouper = grouping.NewSymmetryGrouper(false)
	}

	opts := []application.Option{
		application.WithLogger(logger),
		application.WithObserver(middleware.NewOTelRejectionObserver(nil)),
	}
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		opts = append(opts, application.WithMetrics(middleware.NewPrometheusMetrics(registry, cfg.Metrics.Namespace)))
	}
	driver := application.NewDriver(opts...)

	inputs := flag.Args()
	datasets := make([]*dataset.Dataset, len(inputs))
	tables := make([]*domain.Table, len(inputs))
	jobs := make([]application.Job, len(inputs))
	for i, path := range inputs {
		ds, err := dataset.Load(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		datasets[i], tables[i] = ds, ds.Table()
		jobs[i] = application.Job{
			Name:    path,
			Set:     tables[i],
			Grouper: grouper,
			Request: req,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summaries, err := driver.RejectBatch(ctx, jobs, cfg.Batch.Concurrency)
	if err != nil {
		log.Fatalf("Outlier rejection failed: %v", err)
	}

	for i, path := range inputs {
		out := path
		if *outDir != "" {
			out = filepath.Join(*outDir, filepath.Base(path))
		}
		if err := dataset.Save(dataset.FromTable(datasets[i].Metadata, tables[i]), out); err != nil {
			log.Fatalf("Failed to save %s: %v", out, err)
		}
		fmt.Printf("%s: %s\n", out, strings.Join(application.SummaryLines(summaries[i]), ", "))
	}

	if cfg.Metrics.Enabled && *metricsPath != "" {
		if err := prometheus.WriteToTextfile(*metricsPath, registry); err != nil {
			log.Fatalf("Failed to write metrics: %v", err)
		}
	}
}
