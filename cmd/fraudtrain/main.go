// Command fraudtrain runs the full training pipeline on a labelled
// transaction CSV and stores one artifact per model family.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraudml/pkg/artifact"
	"fraudml/pkg/config"
	"fraudml/pkg/evaluate"
	"fraudml/pkg/logging"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
	"fraudml/pkg/pipeline"
	"fraudml/pkg/traces"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flag.StringVar(&cfg.DataPath, "data", cfg.DataPath, "path to the labelled transaction CSV")
	flag.StringVar(&cfg.ModelDir, "models", cfg.ModelDir, "artifact directory for the file backend")
	flag.StringVar(&cfg.ReportDir, "reports", cfg.ReportDir, "directory for summary.txt, roc.png and f1.png")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	families := flag.String("families", "", "comma-separated families to train (default all)")
	flag.Parse()
	if *families != "" {
		cfg.Families = config.SplitList(*families)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := traces.Init(ctx, "fraudtrain", cfg.OTLPEndpoint, logger)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(logger)
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = collector.StartMetricsServer(cfg.MetricsAddr)
	}

	store, closeStore, err := artifact.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	defer closeStore()

	pcfg := pipeline.DefaultConfig()
	pcfg.DataPath = cfg.DataPath
	pcfg.Seed = cfg.Seed
	pcfg.TestSize = cfg.TestSize
	pcfg.SMOTENeighbors = cfg.SMOTENeighbors
	pcfg.SMOTERatio = cfg.SMOTERatio
	pcfg.ReportDir = cfg.ReportDir
	for _, name := range cfg.Families {
		f, err := model.ParseFamily(name)
		if err != nil {
			log.Fatalf("families: %v", err)
		}
		pcfg.Families = append(pcfg.Families, f)
	}

	p, err := pipeline.New(pcfg, store, pipeline.WithLogger(logger), pipeline.WithMetrics(collector))
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}

	res, err := p.Run(ctx)
	if err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("run %s: saved %v\n\n", res.RunID, res.Saved)
	evaluate.WriteSummary(os.Stdout, res.Reports)

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := collector.Shutdown(sctx, metricsServer); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}
