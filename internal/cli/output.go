package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/flagstate/internal/snapshot"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFeatures outputs a context's feature states in the specified format
func PrintFeatures(features map[string]any, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string]any{"features": features})
	case FormatYAML:
		return printYAML(map[string]any{"features": features})
	case FormatTable:
		return printFeatureTable(features)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintSnapshots outputs snapshots in the specified format
func PrintSnapshots(snaps []snapshot.Snapshot, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]snapshot.Snapshot{"snapshots": snaps})
	case FormatYAML:
		return printYAML(snaps)
	case FormatTable:
		return printSnapshotTable(snaps)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFeatureTable(features map[string]any) error {
	keys := make([]string, 0, len(features))
	for key := range features {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Feature", "Value")
	for _, key := range keys {
		table.Append(key, fmt.Sprintf("%v", features[key]))
	}
	return table.Render()
}

func printSnapshotTable(snaps []snapshot.Snapshot) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Label", "Kind", "Context", "Features", "Created At")
	for _, snap := range snaps {
		table.Append(
			snap.ID,
			snap.Label,
			snap.Kind,
			snap.ContextID,
			fmt.Sprintf("%d", len(snap.Features)),
			snap.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return table.Render()
}
