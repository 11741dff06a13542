// Package cost prices upstream usage from a per-1000-token rate table.
package cost

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// DefaultRate is used for model names the table does not know. An unknown
// model degrades to a best-effort estimate, it never fails a request.
const DefaultRate = 0.002

// builtinRates are USD per 1000 tokens.
var builtinRates = map[string]float64{
	"gpt-4":            0.03,
	"gpt-4-32k":        0.06,
	"gpt-3.5-turbo":    0.002,
	"text-davinci-003": 0.02,
	"text-curie-001":   0.002,
	"text-babbage-001": 0.0005,
	"text-ada-001":     0.0004,
}

// Table maps model names to per-1K-token USD rates. A Table is immutable
// after construction; reloading builds a fresh one.
type Table struct {
	rates       map[string]float64
	defaultRate float64
}

// NewTable returns a table with the built-in rates.
func NewTable() *Table {
	rates := make(map[string]float64, len(builtinRates))
	for model, rate := range builtinRates {
		rates[model] = rate
	}
	return &Table{rates: rates, defaultRate: DefaultRate}
}

type tableFile struct {
	DefaultRate *float64           `yaml:"default_rate"`
	Rates       map[string]float64 `yaml:"rates"`
}

// Load reads a rate table from a YAML file. Listed models override the
// built-in rates, unlisted built-ins are kept.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fail to read cost table: %w", err)
	}
	var file tableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("fail to parse cost table: %w", err)
	}

	table := NewTable()
	for model, rate := range file.Rates {
		table.rates[model] = rate
	}
	if file.DefaultRate != nil {
		table.defaultRate = *file.DefaultRate
	}
	return table, nil
}

// Cost returns the USD cost of totalTokens under model. Pure function of
// its inputs.
func (t *Table) Cost(model string, totalTokens int) float64 {
	rate, ok := t.rates[model]
	if !ok {
		rate = t.defaultRate
	}
	return float64(totalTokens) / 1000 * rate
}
