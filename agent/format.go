package agent

import (
	"fmt"
	"strings"
)

// FormatToolResults renders tool results as plain text, one line per result.
func FormatToolResults(results []ToolCallResult) string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		if result.IsError {
			lines = append(lines, fmt.Sprintf("Tool %s failed: %s", result.ToolName, result.Error))
			continue
		}
		lines = append(lines, fmt.Sprintf("Tool %s returned: %s", result.ToolName, Stringify(result.Result)))
	}
	return strings.Join(lines, "\n")
}
