// Package main provides the CLI entry point for the ragbench experiment runner.
//
// handlers.go contains the RunE handler functions for the CLI commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/ragbench/internal/config"
	"github.com/haasonsaas/ragbench/internal/cost"
	"github.com/haasonsaas/ragbench/internal/groundtruth"
	"github.com/haasonsaas/ragbench/internal/observability"
	"github.com/haasonsaas/ragbench/internal/pipeline"
	"github.com/haasonsaas/ragbench/internal/rollup"
	"github.com/haasonsaas/ragbench/internal/runner"
	"github.com/haasonsaas/ragbench/internal/stages"
	"github.com/haasonsaas/ragbench/internal/store"
)

// runRetrieve implements the retrieve command: build the stage executors the
// experiment names, run the pipeline, and record the totals.
func runRetrieve(ctx context.Context, configPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRetrieval(); err != nil {
		return err
	}
	logger := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	expCfg, err := runner.LoadExperimentConfig(configPath)
	if err != nil {
		return err
	}

	bundle, err := runner.BuildBundle(ctx, cfg, expCfg)
	if err != nil {
		return err
	}

	dynamo, err := store.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}
	metricsStore := store.NewMetricsStore(dynamo, cfg.QuestionMetricsTable, cfg.QuestionMetricsIndex)
	experimentStore := store.NewExperimentStore(dynamo, cfg.ExperimentTable)

	loader, err := groundtruth.NewLoader(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}

	systemPrompt := stages.BuildSystemPrompt(cfg.InferenceSystemPrompt, expCfg.NShotPromptGuide)
	pipe := pipeline.New(bundle, loader, metricsStore, systemPrompt, logger, metrics)
	run := runner.New(pipe, experimentStore, logger)

	totals, err := run.Run(ctx, expCfg)
	if err != nil {
		return err
	}

	if cfg.MetricsPushURL != "" {
		err := observability.PushMetrics(cfg.MetricsPushURL, "ragbench", prometheus.DefaultGatherer,
			map[string]string{"experiment_id": expCfg.ExperimentID})
		if err != nil {
			// Metrics delivery is best effort; the run itself succeeded.
			logger.Warn(ctx, "metrics push failed", "error", err)
		}
	}

	return json.NewEncoder(os.Stdout).Encode(totals)
}

// runCosts implements the costs command: price a finished experiment and
// persist the breakdown.
func runCosts(ctx context.Context, experimentID, pricingPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if pricingPath != "" {
		cfg.PricingPath = pricingPath
	}
	if err := rollup.CheckEnvironment(cfg); err != nil {
		return err
	}
	logger := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})

	pricing, err := cost.LoadTable(cfg.PricingPath)
	if err != nil {
		return err
	}

	dynamo, err := store.NewClient(ctx, cfg.AWSRegion)
	if err != nil {
		return err
	}
	experimentStore := store.NewExperimentStore(dynamo, cfg.ExperimentTable)
	metricsStore := store.NewMetricsStore(dynamo, cfg.QuestionMetricsTable, cfg.QuestionMetricsIndex)

	job := rollup.NewJob(experimentStore, metricsStore, cost.NewModel(pricing), logger)
	resp := job.Run(ctx, experimentID)

	fmt.Fprintln(os.Stdout, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cost rollup returned status %d", resp.StatusCode)
	}
	return nil
}
