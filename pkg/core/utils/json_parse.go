// Package utils holds lenient decoding helpers for payloads produced by
// extraction collaborators (spreadsheet parsers, AI extractors).
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Strategy names the parser that accepted a payload.
type Strategy string

const (
	StrategyJSON     Strategy = "json"
	StrategyRepaired Strategy = "json_repair"
	StrategyHJSON    Strategy = "hjson"
)

// RepairJSON attempts to fix common JSON errors from extraction output.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments and markdown code fences
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson allows comments, unquoted keys and strings, and optional commas,
// which is how analysts tend to hand-edit statement files.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(jsonBytes), nil
}

// SmartParse decodes input into dst, trying in order:
// 1. Standard JSON
// 2. JSON repair
// 3. Hjson (most lenient)
//
// It reports which strategy succeeded.
func SmartParse(input string, dst interface{}) (Strategy, error) {
	if err := json.Unmarshal([]byte(input), dst); err == nil {
		return StrategyJSON, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), dst); err == nil {
			return StrategyRepaired, nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), dst); err == nil {
			return StrategyHJSON, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
