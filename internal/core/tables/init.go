// Package tables registers the CSV import layouts with the core registry.
// Import it for side effects:
//
//	import _ "github.com/JonMunkholm/RegistryPortal/internal/core/tables"
package tables

// Each layout file registers itself from init().
