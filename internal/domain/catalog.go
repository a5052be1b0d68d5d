package domain

import (
	"fmt"
	"strings"
)

// CatalogEntry declares one persistent dataset: the logical key nodes use
// to refer to it, a location template resolved per run, and the format the
// bytes are encoded in. A key with a catalog entry is persistent; keys
// without one live only in the run's in-memory binding table.
type CatalogEntry struct {
	Key      string `json:"key" yaml:"key"`
	Location string `json:"location" yaml:"location"`
	Format   string `json:"format,omitempty" yaml:"format,omitempty"`
}

func (e CatalogEntry) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("catalog entry with empty key")
	}
	if e.Location == "" {
		return fmt.Errorf("catalog entry %q has no location", e.Key)
	}
	return nil
}

// ResolveTemplate substitutes {name} placeholders in a location template.
// The key placeholder resolves to the entry's own key; everything else is
// looked up through the run context. Unknown placeholders are an error so
// misconfigured templates fail loudly instead of colliding across runs.
func ResolveTemplate(template, key string, rc *RunContext) (string, error) {
	var out strings.Builder
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("location template %q has an unterminated placeholder", template)
		}
		out.WriteString(rest[:start])
		name := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		if name == PlaceholderKey {
			out.WriteString(key)
			continue
		}
		value, ok := rc.Placeholder(name)
		if !ok {
			return "", fmt.Errorf("location template %q references unknown placeholder %q", template, name)
		}
		out.WriteString(value)
	}
}
