package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/acqboard/internal/logging"
)

// RepairStats tracks what it took to make a model response parseable.
type RepairStats struct {
	OriginalBytes    int      `json:"original_bytes"`
	RepairedBytes    int      `json:"repaired_bytes"`
	RepairStrategies []string `json:"repair_strategies"`
	WasRepaired      bool     `json:"was_repaired"`
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)(\s*:)`)
	singleQuoteRe   = regexp.MustCompile(`'([^']*)'`)
)

// RepairJSON makes malformed model JSON parseable: trailing commas,
// unterminated objects/arrays, unquoted keys, and single quotes are
// fixed in-house; anything still broken goes through the jsonrepair
// library as the heavyweight fallback.
func RepairJSON(raw string) (string, RepairStats, error) {
	stats := RepairStats{OriginalBytes: len(raw)}

	var probe interface{}
	if json.Unmarshal([]byte(raw), &probe) == nil {
		stats.RepairedBytes = len(raw)
		return raw, stats, nil
	}

	stats.WasRepaired = true
	repaired := raw

	if trailingCommaRe.MatchString(repaired) {
		repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")
		stats.RepairStrategies = append(stats.RepairStrategies, "trailing_commas")
	}

	if completed := completeJSON(repaired); completed != repaired {
		repaired = completed
		stats.RepairStrategies = append(stats.RepairStrategies, "completion")
	}

	if unquotedKeyRe.MatchString(repaired) {
		repaired = unquotedKeyRe.ReplaceAllString(repaired, `$1"$2"$3`)
		stats.RepairStrategies = append(stats.RepairStrategies, "key_quotes")
	}

	if json.Unmarshal([]byte(repaired), &probe) != nil && singleQuoteRe.MatchString(repaired) {
		repaired = singleQuoteRe.ReplaceAllString(repaired, `"$1"`)
		stats.RepairStrategies = append(stats.RepairStrategies, "single_quotes")
	}

	if json.Unmarshal([]byte(repaired), &probe) != nil {
		if libRepaired, libErr := jsonrepair.JSONRepair(repaired); libErr == nil {
			repaired = libRepaired
			stats.RepairStrategies = append(stats.RepairStrategies, "jsonrepair_library")
		}
	}

	stats.RepairedBytes = len(repaired)
	if json.Unmarshal([]byte(repaired), &probe) != nil {
		return repaired, stats, fmt.Errorf("JSON repair failed after %d strategies", len(stats.RepairStrategies))
	}
	return repaired, stats, nil
}

// completeJSON closes unterminated objects/arrays in LIFO order.
func completeJSON(s string) string {
	var stack []rune
	for _, char := range s {
		switch char {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == char {
				stack = stack[:len(stack)-1]
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// ParseResponse extracts the JSON block from a mixed text response,
// repairs it if needed, and unmarshals it into target.
func ParseResponse(raw string, target interface{}) (RepairStats, error) {
	runLog := logging.GetCurrentLogger()

	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		runLog.Log("No JSON found in model response (%d bytes)", len(raw))
		return RepairStats{OriginalBytes: len(raw)}, fmt.Errorf("no JSON found in response")
	}

	repaired, stats, err := RepairJSON(jsonStr)
	if stats.WasRepaired {
		runLog.Log("JSON repair applied: %s", strings.Join(stats.RepairStrategies, ", "))
	}
	if err != nil {
		return stats, err
	}

	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return stats, fmt.Errorf("JSON parsing failed after repair: %w", err)
	}
	return stats, nil
}

// ExtractJSON pulls JSON content out of a response that may wrap it in
// prose or a fenced code block.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		lines := strings.Split(raw, "\n")
		var jsonLines []string
		inCodeBlock := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	startIdx := strings.IndexAny(raw, "{[")
	if startIdx == -1 {
		return ""
	}

	openChar := raw[startIdx]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	count := 0
	for i := startIdx; i < len(raw); i++ {
		switch raw[i] {
		case openChar:
			count++
		case closeChar:
			count--
			if count == 0 {
				return raw[startIdx : i+1]
			}
		}
	}
	return raw[startIdx:]
}
