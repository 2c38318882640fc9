package core

import (
	"fmt"
	"sort"
	"sync"
)

// TableDefinition is a registered CSV import layout.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec

	// BuildRecord turns a validated row into a PropertyFile or a User.
	BuildRecord func(row []string, idx HeaderIndex) (any, error)
}

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds an import layout to the registry.
// Panics if a layout with the same key is already registered.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("import layout already registered: %s", def.Info.Key))
	}
	if def.BuildRecord == nil {
		panic(fmt.Sprintf("import layout %s has no BuildRecord", def.Info.Key))
	}

	if len(def.Info.Columns) == 0 && len(def.FieldSpecs) > 0 {
		def.Info.Columns = make([]string, len(def.FieldSpecs))
		for i, spec := range def.FieldSpecs {
			def.Info.Columns[i] = spec.Name
		}
	}

	registry[def.Info.Key] = def
}

// Get returns an import layout by key.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered layouts sorted by group then key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// RequiredColumns returns the names of the layout's required columns.
func (d TableDefinition) RequiredColumns() []string {
	var cols []string
	for _, spec := range d.FieldSpecs {
		if spec.Required {
			cols = append(cols, spec.Name)
		}
	}
	return cols
}

// Clear removes all registered layouts. Used by tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
