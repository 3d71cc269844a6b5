// Package assistant maps configured assistant names to engine-side ids.
package assistant

import (
	"encoding/json"
	"fmt"
)

type entry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Registry resolves assistant names to ids. The underlying config is a JSON
// array of {"name","id"} objects; order is preserved so Default is stable.
type Registry struct {
	entries []entry
	byName  map[string]string
}

// ParseRegistry builds a registry from the JSON config value.
func ParseRegistry(raw string) (*Registry, error) {
	var entries []entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse assistants config: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("assistants config is empty")
	}

	byName := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.ID == "" {
			return nil, fmt.Errorf("assistants config entry missing name or id")
		}
		byName[e.Name] = e.ID
	}
	return &Registry{entries: entries, byName: byName}, nil
}

// ID returns the assistant id for name.
func (r *Registry) ID(name string) (string, error) {
	id, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("assistant %q not configured", name)
	}
	return id, nil
}

// Default returns the first configured assistant id.
func (r *Registry) Default() string {
	return r.entries[0].ID
}
