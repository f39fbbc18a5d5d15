package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// encodeYAML marshals v to YAML by way of its JSON representation, so the
// json tags (and the error-to-string conversions behind them) apply.
func encodeYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return out, nil
}
