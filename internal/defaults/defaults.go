// Package defaults holds the built-in report definitions. A stored override
// with the same name takes precedence over anything registered here.
package defaults

import (
	"fmt"
	"sort"
	"sync"

	"reportd/internal/models"
)

// Definition is a built-in report template shipped with the service.
type Definition struct {
	Engine models.ReportEngine
	Body   string
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Definition)
)

// Register adds a built-in definition. It panics on duplicate names so a
// conflicting registration fails at startup, not at render time.
func Register(name string, def Definition) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("defaults: report %q already registered", name))
	}
	registry[name] = def
}

// Lookup returns the built-in definition for a report name.
func Lookup(name string) (Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	def, ok := registry[name]
	return def, ok
}

// Names returns the registered report names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("report_activity", Definition{
		Engine: models.EngineXLSX,
		Body: `{
  "title": "Report activity",
  "datasets": [
    {
      "name": "Runs",
      "query": "SELECT title, report_name, format, status, created_by, generated_at FROM reports WHERE deleted_at IS NULL ORDER BY id DESC",
      "columns": [
        {"field": "title", "header": "Title"},
        {"field": "report_name", "header": "Report"},
        {"field": "format", "header": "Format"},
        {"field": "status", "header": "Status"},
        {"field": "created_by", "header": "Requested by"},
        {"field": "generated_at", "header": "Generated at"}
      ]
    }
  ]
}`,
	})

	Register("definitions_register", Definition{
		Engine: models.EngineXLSX,
		Body: `{
  "title": "Definitions register",
  "datasets": [
    {
      "name": "Definitions",
      "query": "SELECT name, engine, valid_from, audit_user FROM report_definitions WHERE valid_to IS NULL ORDER BY name",
      "columns": [
        {"field": "name", "header": "Name"},
        {"field": "engine", "header": "Engine"},
        {"field": "valid_from", "header": "Valid from"},
        {"field": "audit_user", "header": "Audit user"}
      ]
    }
  ]
}`,
	})

	Register("extract_log", Definition{
		Engine: models.EngineCSV,
		Body: `{
  "title": "Extract log",
  "datasets": [
    {
      "name": "Extracts",
      "query": "SELECT type, sequence, filename, audit_user, created_at FROM extracts ORDER BY id DESC",
      "columns": [
        {"field": "type", "header": "Type"},
        {"field": "sequence", "header": "Sequence"},
        {"field": "filename", "header": "Filename"},
        {"field": "audit_user", "header": "Audit user"},
        {"field": "created_at", "header": "Created at"}
      ]
    }
  ]
}`,
	})
}
