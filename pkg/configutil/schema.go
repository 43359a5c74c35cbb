package configutil

import (
	"fmt"
	"sort"
	"strings"
)

// Schema names the keys a vendor settings map may carry. Key matching is
// case-insensitive and ignores underscores and hyphens, so "api_key",
// "apiKey" and "API-Key" all address the same setting.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings checks a settings map against the schema and reports
// every violation at once rather than stopping at the first.
func ValidateSettings(input map[string]any, schema Schema) error {
	required := make(map[string]string, len(schema.Required))
	allowed := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, key := range schema.Required {
		required[normalizeKey(key)] = key
		allowed[normalizeKey(key)] = struct{}{}
	}
	for _, key := range schema.Optional {
		allowed[normalizeKey(key)] = struct{}{}
	}

	var missing, unknown []string
	present := make(map[string]bool, len(input))
	for key, value := range input {
		nk := normalizeKey(key)
		present[nk] = true
		if _, ok := allowed[nk]; !ok && !schema.AllowUnknown {
			unknown = append(unknown, key)
		}
		if name, ok := required[nk]; ok && emptySetting(value) {
			missing = append(missing, name)
		}
	}
	for nk, name := range required {
		if !present[nk] {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

// emptySetting treats nil and blank strings as absent; a required key set
// to "" in the config file is still a missing key.
func emptySetting(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
