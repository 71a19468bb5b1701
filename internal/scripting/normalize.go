package scripting

import "fmt"

// Result lists above maxResultItems are replaced by a bounded summary so a
// runaway script cannot flood the caller.
const (
	maxResultItems = 500
	sampleSize     = 50
)

// Normalize bounds a script's return value. Arrays longer than
// maxResultItems are collapsed into a summary carrying the total count, a
// front sample, a truncation flag, and a warning. Everything else passes
// through unchanged. Never fails.
func Normalize(value any) any {
	items, ok := value.([]any)
	if !ok || len(items) <= maxResultItems {
		return value
	}
	return map[string]any{
		"total":     len(items),
		"sample":    items[:sampleSize],
		"truncated": true,
		"warning": fmt.Sprintf(
			"Result list has %d items. Showing first %d. Process data in script to return smaller results.",
			len(items), sampleSize),
	}
}
