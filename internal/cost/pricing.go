// Package cost turns token counts and stage durations into priced cost
// breakdowns for a completed experiment.
package cost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPrice is the per-million-token rate for one model.
type ModelPrice struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// InfraPrice is the hourly rate for the compute running an experiment phase.
type InfraPrice struct {
	HourlyRate float64 `yaml:"hourly_rate"`
}

// Table holds the pricing rates used by the cost model.
type Table struct {
	// Models maps a model id to its token pricing. Unknown models price
	// at zero; the rollup job logs when that happens.
	Models map[string]ModelPrice `yaml:"models"`

	// Infra is the hourly compute rate applied to phase durations.
	Infra InfraPrice `yaml:"infra"`
}

// LoadTable reads a pricing table from a YAML file.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cost: read pricing table: %w", err)
	}
	var table Table
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("cost: parse pricing table: %w", err)
	}
	return &table, nil
}

// ModelPrice returns the rates for a model id, zero rates when unknown.
func (t *Table) ModelPrice(modelID string) (ModelPrice, bool) {
	price, ok := t.Models[modelID]
	return price, ok
}
