package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jmespath "github.com/jmespath-community/go-jmespath"
)

//go:embed expectations.json
var expectationsJSON []byte

// PropertyExpectation is one schema property the KB expects a page to carry,
// probed with a JMESPath expression over the normalized structured items.
type PropertyExpectation struct {
	Name  string `json:"name"`
	Probe string `json:"probe"`
}

// VerticalExpectations groups the expected properties for one vertical.
type VerticalExpectations struct {
	Properties []PropertyExpectation `json:"properties"`
}

var (
	kbOnce sync.Once
	kb     map[string]VerticalExpectations
	kbErr  error
)

// Expectations returns the KB expectations for a vertical, falling back to
// the default set for unknown verticals. The embedded KB is parsed once.
func Expectations(vertical string) (VerticalExpectations, error) {
	kbOnce.Do(func() {
		kbErr = json.Unmarshal(expectationsJSON, &kb)
	})
	if kbErr != nil {
		return VerticalExpectations{}, fmt.Errorf("parse kb expectations: %w", kbErr)
	}
	if exp, ok := kb[vertical]; ok {
		return exp, nil
	}
	return kb["default"], nil
}

// SchemaCoverage probes the harvested structured items against the vertical's
// KB expectations and returns the covered fraction plus the missing property
// names. A vertical with no expectations covers trivially.
func SchemaCoverage(items []StructuredItem, vertical string) (float64, []string, error) {
	exp, err := Expectations(vertical)
	if err != nil {
		return 0, nil, err
	}
	if len(exp.Properties) == 0 {
		return 1, nil, nil
	}

	doc := map[string]any{"items": itemsDocument(items)}
	found := 0
	var missing []string
	for _, prop := range exp.Properties {
		result, probeErr := jmespath.Search(prop.Probe, doc)
		if probeErr != nil {
			return 0, nil, fmt.Errorf("kb probe %q: %w", prop.Name, probeErr)
		}
		if present(result) {
			found++
		} else {
			missing = append(missing, prop.Name)
		}
	}
	return float64(found) / float64(len(exp.Properties)), missing, nil
}

// itemsDocument projects structured items into the plain-map shape the
// JMESPath probes expect.
func itemsDocument(items []StructuredItem) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		fields := make(map[string]any, len(item.Fields))
		for k, v := range item.Fields {
			fields[k] = v
		}
		out = append(out, map[string]any{
			"type":   item.Type,
			"id":     item.ID,
			"fields": fields,
		})
	}
	return out
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	default:
		return true
	}
}
