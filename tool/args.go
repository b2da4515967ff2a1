package tool

import (
	"encoding/json"
	"fmt"
)

// ParseArguments unmarshals raw JSON tool arguments, as providers send
// them, into a map. An empty payload yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
