// Package pkgmap loads the optional identifier-to-name mapping that steers
// naming and categorization for known package identifiers.
package pkgmap

import (
	"encoding/json"
	"fmt"
	"os"
)

// Names holds the configured naming and categorization hints for one
// package identifier.
type Names struct {
	ProdName            string `json:"prod_name"`
	TestName            string `json:"test_name"`
	SelfServiceCategory string `json:"ss_category"`
	TestCategory        string `json:"test_category"`
}

// Map relates package identifiers to their configured hints.
type Map map[string]Names

// Load reads a mapping file. A missing or malformed file is an error; an
// enabled map the operator cannot rely on is worse than none.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package map %q: %w", path, err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse package map %q: %w", path, err)
	}
	return m, nil
}

// Lookup returns the hints for an identifier.
func (m Map) Lookup(id string) (Names, bool) {
	names, ok := m[id]
	return names, ok
}

// Contains reports whether an identifier is mapped.
func (m Map) Contains(id string) bool {
	_, ok := m[id]
	return ok
}
