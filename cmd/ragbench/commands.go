// Package main provides the CLI entry point for the ragbench experiment runner.
//
// commands.go contains the cobra command definitions and their flag
// configurations. Each command builder wires a command to its handler.
package main

import (
	"github.com/spf13/cobra"
)

// buildRetrieveCmd creates the "retrieve" command that runs the per-question
// retrieval loop for one experiment.
func buildRetrieveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Run the retrieval loop for one experiment",
		Long: `Run the retrieval phase of an experiment: for every ground-truth question,
embed the query, search the vector index, optionally rerank, and generate an
answer. Per-question metrics are written to DynamoDB in batches and the token
totals are recorded on the experiment record.

A failed question does not stop the run; it is logged and recorded with empty
result fields. A metrics-store flush failure aborts the run.`,
		Example: `  # Run with an experiment definition
  ragbench retrieve --config experiment.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieve(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "experiment.json",
		"Path to the experiment JSON definition")

	return cmd
}

// buildCostsCmd creates the "costs" command that rolls up the cost of a
// finished experiment.
func buildCostsCmd() *cobra.Command {
	var (
		experimentID string
		pricingPath  string
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Compute and persist the cost breakdown for an experiment",
		Long: `Read an experiment's recorded token totals and phase durations, price them
against the configured pricing table, and write the resulting breakdown back
onto the experiment record. Amounts are persisted as exact decimals.

An unknown experiment id reports a zero total without failing.`,
		Example: `  # Roll up one experiment
  ragbench costs --experiment-id exp-123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCosts(cmd.Context(), experimentID, pricingPath)
		},
	}

	cmd.Flags().StringVarP(&experimentID, "experiment-id", "e", "",
		"Experiment id to roll up")
	cmd.Flags().StringVar(&pricingPath, "pricing", "",
		"Path to the YAML pricing table (overrides PRICING_PATH)")

	return cmd
}
