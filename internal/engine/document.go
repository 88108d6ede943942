package engine

import (
	"encoding/json"
	"fmt"
)

// Column maps a result field to a rendered column header.
type Column struct {
	Field  string `json:"field"`
	Header string `json:"header"`
}

// DatasetSpec describes one query of a report and how its rows are laid out.
type DatasetSpec struct {
	Name    string   `json:"name"`
	Query   string   `json:"query"`
	Columns []Column `json:"columns"`
}

// Document is the parsed body of a report definition.
type Document struct {
	Title    string        `json:"title"`
	Datasets []DatasetSpec `json:"datasets"`
}

// Dataset carries the executed rows for one DatasetSpec.
type Dataset struct {
	Spec DatasetSpec
	Rows []map[string]any
}

// ParseDocument decodes and validates a definition body.
func ParseDocument(body string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Document{}, fmt.Errorf("invalid definition document: %w", err)
	}
	if len(doc.Datasets) == 0 {
		return Document{}, fmt.Errorf("definition document has no datasets")
	}
	for i, ds := range doc.Datasets {
		if ds.Query == "" {
			return Document{}, fmt.Errorf("dataset %d has no query", i)
		}
		if len(ds.Columns) == 0 {
			return Document{}, fmt.Errorf("dataset %d has no columns", i)
		}
		if ds.Name == "" {
			doc.Datasets[i].Name = fmt.Sprintf("Sheet%d", i+1)
		}
	}
	return doc, nil
}
