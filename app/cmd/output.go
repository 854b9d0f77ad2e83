package cmd

import (
	"encoding/json"
	"io"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	outputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputYAML, outputJSON:
		return nil
	}
	return &types.ConfigurationError{Field: "output", Reason: "expected text, yaml or json, got " + format}
}

// structured reports whether the result should be encoded instead of drawn.
func structured() bool {
	return outputFormat == outputYAML || outputFormat == outputJSON
}

// encode writes v in the selected structured format.
func encode(w io.Writer, v interface{}) error {
	switch outputFormat {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}
