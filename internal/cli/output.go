// Package cli holds the flagctl command helpers: output rendering and
// client bootstrap from configuration.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/client"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// flagRow is the serializable projection of an evaluation result.
type flagRow struct {
	Key         string    `json:"key" yaml:"key"`
	Value       any       `json:"value" yaml:"value"`
	VariationID string    `json:"variation_id,omitempty" yaml:"variation_id,omitempty"`
	Default     bool      `json:"default" yaml:"default"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
	FetchTime   time.Time `json:"fetch_time,omitempty" yaml:"fetch_time,omitempty"`
}

func toRows(details []client.EvaluationDetails) []flagRow {
	rows := make([]flagRow, 0, len(details))
	for _, d := range details {
		row := flagRow{
			Key:         d.Key,
			Value:       d.Value,
			VariationID: d.VariationID,
			Default:     d.IsDefaultValue,
			FetchTime:   d.FetchTime,
		}
		if d.Error != nil {
			row.Error = d.Error.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// PrintDetails outputs evaluation results in the specified format.
func PrintDetails(w io.Writer, details []client.EvaluationDetails, format OutputFormat) error {
	rows := toRows(details)
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]flagRow{"flags": rows})
	case FormatYAML:
		return printYAML(w, rows)
	case FormatTable:
		return printTable(w, rows)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintDetail outputs a single evaluation result in the specified format.
func PrintDetail(w io.Writer, details client.EvaluationDetails, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, toRows([]client.EvaluationDetails{details})[0])
	case FormatYAML:
		return printYAML(w, toRows([]client.EvaluationDetails{details})[0])
	case FormatTable:
		return printTable(w, toRows([]client.EvaluationDetails{details}))
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(w io.Writer, rows []flagRow) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value", "Variation", "Default", "Error")

	for _, row := range rows {
		errText := row.Error
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		table.Append(
			row.Key,
			fmt.Sprintf("%v", row.Value),
			row.VariationID,
			fmt.Sprintf("%t", row.Default),
			errText,
		)
	}
	return table.Render()
}
