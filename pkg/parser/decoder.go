package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// decodeParameters turns a parameters payload into a generic object. Model
// output is frequently almost-JSON (trailing commas, single quotes, unquoted
// keys), so a strict decode is followed by a repair pass before giving up.
//
// The returned map is never nil. On failure it is empty and the error
// describes the strict decode problem; the caller keeps the raw payload on
// the record either way.
func decodeParameters(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}

	var params map[string]any
	strictErr := json.Unmarshal([]byte(trimmed), &params)
	if strictErr == nil {
		if params == nil {
			// "null" decodes cleanly but is not an object.
			return map[string]any{}, fmt.Errorf("parameters payload is not a JSON object")
		}
		return params, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(trimmed)
	if repairErr != nil {
		return map[string]any{}, fmt.Errorf("decode parameters: %w", strictErr)
	}
	if err := json.Unmarshal([]byte(repaired), &params); err != nil || params == nil {
		return map[string]any{}, fmt.Errorf("decode parameters after repair: %w", strictErr)
	}
	return params, nil
}
