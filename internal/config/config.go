// Package config loads the process configuration for the experiment runner.
//
// Configuration is read from the environment exactly once at startup and the
// resulting struct is passed into every component constructor. There is no
// package-level config state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultSystemPrompt is used when no inference system prompt is configured.
const DefaultSystemPrompt = "You are a helpful assistant. Use the provided context to answer the question. If the answer is not in the context, say you do not know."

// Config holds everything the runner needs to talk to its collaborators.
type Config struct {
	// AWSRegion is used for Bedrock, DynamoDB, and S3 clients.
	AWSRegion string

	// OpenSearch connection settings for the vector index.
	OpenSearchHost       string
	OpenSearchUsername   string
	OpenSearchPassword   string
	OpenSearchServerless bool

	// ExperimentTable is the DynamoDB table holding experiment records.
	ExperimentTable string

	// QuestionMetricsTable is the DynamoDB table receiving per-question
	// metrics records.
	QuestionMetricsTable string

	// QuestionMetricsIndex is the optional GSI used to query question
	// metrics by experiment id.
	QuestionMetricsIndex string

	// InferenceSystemPrompt is the default system prompt for the
	// generation stage.
	InferenceSystemPrompt string

	// OpenAIAPIKey enables the OpenAI stage backends when set.
	OpenAIAPIKey string

	// PricingPath points at the YAML pricing table used by the cost model.
	PricingPath string

	// MetricsPushURL is an optional Prometheus Pushgateway endpoint. When
	// set, the run's metrics are pushed there at end of run.
	MetricsPushURL string

	// LogLevel: "debug", "info", "warn", "error".
	LogLevel string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AWSRegion:             getenv("AWS_REGION", "us-east-1"),
		OpenSearchHost:        os.Getenv("OPENSEARCH_HOST"),
		OpenSearchUsername:    os.Getenv("OPENSEARCH_USERNAME"),
		OpenSearchPassword:    os.Getenv("OPENSEARCH_PASSWORD"),
		OpenSearchServerless:  getenvBool("OPENSEARCH_SERVERLESS", false),
		ExperimentTable:       os.Getenv("EXPERIMENT_TABLE"),
		QuestionMetricsTable:  os.Getenv("EXPERIMENT_QUESTION_METRICS_TABLE"),
		QuestionMetricsIndex:  os.Getenv("EXPERIMENT_QUESTION_METRICS_INDEX"),
		InferenceSystemPrompt: getenv("INFERENCE_SYSTEM_PROMPT", DefaultSystemPrompt),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		PricingPath:           getenv("PRICING_PATH", "pricing.yaml"),
		MetricsPushURL:        os.Getenv("METRICS_PUSH_URL"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// ValidateRetrieval checks the settings the retrieval pipeline depends on.
func (c *Config) ValidateRetrieval() error {
	if c.OpenSearchHost == "" {
		return fmt.Errorf("config: OPENSEARCH_HOST is not set")
	}
	return c.ValidateStores()
}

// ValidateStores checks the settings the store layer depends on. A missing
// table name is an environment error, not a caller error.
func (c *Config) ValidateStores() error {
	if c.ExperimentTable == "" {
		return fmt.Errorf("config: EXPERIMENT_TABLE is not set")
	}
	if c.QuestionMetricsTable == "" {
		return fmt.Errorf("config: EXPERIMENT_QUESTION_METRICS_TABLE is not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
