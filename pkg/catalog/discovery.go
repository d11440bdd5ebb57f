package catalog

import "fmt"

// Local model listings arrive in a handful of shapes depending on the
// runtime's API version. Discovery normalizes each raw entry to a display
// name through one of a closed set of tagged variants, each with a single
// deterministic extraction rule.

// DiscoveredModel is one raw entry from a local-runtime model listing.
type DiscoveredModel interface {
	// DisplayName extracts the model's display name. Deterministic and
	// idempotent: calling it twice yields the same result.
	DisplayName() string
}

// MappingEntry is a raw entry shaped like a JSON object.
type MappingEntry struct {
	Fields map[string]any
}

// DisplayName returns the string "name" field, or "unknown" when the field
// is absent or not a string.
func (m MappingEntry) DisplayName() string {
	if name, ok := m.Fields["name"].(string); ok {
		return name
	}
	return "unknown"
}

// AttributeEntry is a raw entry that exposes its name directly.
type AttributeEntry struct {
	Name string
}

// DisplayName returns the name attribute.
func (a AttributeEntry) DisplayName() string {
	return a.Name
}

// OpaqueEntry is a raw entry of no recognized shape.
type OpaqueEntry struct {
	Value any
}

// DisplayName returns the textual representation of the whole value.
func (o OpaqueEntry) DisplayName() string {
	return fmt.Sprint(o.Value)
}

// Normalize converts discovered local models to catalog entries. The local
// runtime addresses models by the same name it lists, so display name and
// model ID coincide.
func Normalize(models []DiscoveredModel) []Entry {
	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		name := m.DisplayName()
		entries = append(entries, Entry{DisplayName: name, ModelID: name})
	}
	return entries
}
