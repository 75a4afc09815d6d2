package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// structuredConfidence is stamped on facts harvested from machine-readable
// markup; the markup asserts the value directly, no inference involved.
const structuredConfidence = 0.95

// StructuredItem is one normalized structured-data node harvested from a
// page: JSON-LD, microdata, or RDFa, reduced to a flat property map.
type StructuredItem struct {
	Context string
	Type    string
	ID      string
	Fields  map[string]string
	Pointer string // JSON pointer base for source_path, e.g. /json-ld/0
}

// HarvestStructured extracts JSON-LD script blocks, itemscope/itemprop
// microdata, and typeof/property RDFa from the page. Malformed blocks are
// skipped, never fatal.
func HarvestStructured(htmlSrc string) ([]StructuredItem, error) {
	root, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, err
	}

	var items []StructuredItem
	items = append(items, harvestJSONLD(root)...)
	items = append(items, harvestMicrodata(root)...)
	items = append(items, harvestRDFa(root)...)
	return items, nil
}

// StructuredFacts converts harvested items into structured-data facts:
// no supporting text, no anchor, anchor_missing=true, source_path pointing
// into the item.
func StructuredFacts(items []StructuredItem, domain, sourceURL string) []model.Fact {
	var facts []model.Fact
	for i, item := range items {
		subject := item.ID
		if subject == "" {
			name := strings.ToLower(item.Type)
			if name == "" {
				name = "item"
			}
			subject = fmt.Sprintf("%s#%s-%d", sourceURL, name, i)
		}

		props := make([]string, 0, len(item.Fields))
		for prop := range item.Fields {
			props = append(props, prop)
		}
		sort.Strings(props)

		for _, prop := range props {
			value := item.Fields[prop]
			if value == "" {
				continue
			}
			sourcePath := item.Pointer + "/" + escapePointerToken(prop)
			f := model.Fact{
				Domain:    domain,
				SourceURL: sourceURL,
				Triple: model.Triple{
					Subject:   subject,
					Predicate: prop,
					Object:    value,
				},
				Text:          fmt.Sprintf("%s: %s", prop, value),
				EvidenceType:  model.EvidenceTypeStructuredData,
				SourcePath:    &sourcePath,
				AnchorMissing: true,
				Confidence:    structuredConfidence,
			}
			f.AssignIdentity()
			facts = append(facts, f)
		}
	}
	return facts
}

func harvestJSONLD(root *html.Node) []StructuredItem {
	var items []StructuredItem
	idx := 0
	walkNodes(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "script" || attrValue(n, "type") != "application/ld+json" {
			return true
		}
		var raw any
		if err := json.Unmarshal([]byte(textContent(n)), &raw); err != nil {
			return false
		}
		for _, node := range flattenJSONLD(raw) {
			item := normalizeJSONLDNode(node, fmt.Sprintf("/json-ld/%d", idx))
			if item != nil {
				items = append(items, *item)
				idx++
			}
		}
		return false
	})
	return items
}

// flattenJSONLD expands top-level arrays and @graph containers into a flat
// list of object nodes.
func flattenJSONLD(raw any) []map[string]any {
	var nodes []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, el := range v {
			nodes = append(nodes, flattenJSONLD(el)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, el := range graph {
				nodes = append(nodes, flattenJSONLD(el)...)
			}
			return nodes
		}
		nodes = append(nodes, v)
	}
	return nodes
}

func normalizeJSONLDNode(node map[string]any, pointer string) *StructuredItem {
	item := StructuredItem{
		Fields:  make(map[string]string),
		Pointer: pointer,
	}
	for key, value := range node {
		switch key {
		case "@context":
			item.Context = stringifyJSONValue(value)
		case "@type":
			item.Type = stringifyJSONValue(value)
		case "@id":
			item.ID = stringifyJSONValue(value)
		case "@graph":
		default:
			if s := stringifyJSONValue(value); s != "" {
				item.Fields[key] = s
			}
		}
	}
	if item.Type == "" && len(item.Fields) == 0 {
		return nil
	}
	return &item
}

// stringifyJSONValue reduces a JSON-LD value to a flat string: nested objects
// collapse to their name or @id, arrays join with "; ".
func stringifyJSONValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return fmt.Sprintf("%t", val)
	case []any:
		var parts []string
		for _, el := range val {
			if s := stringifyJSONValue(el); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"name", "@id", "@value", "url"} {
			if s, ok := val[key].(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return ""
	}
}

func harvestMicrodata(root *html.Node) []StructuredItem {
	var items []StructuredItem
	idx := 0
	walkNodes(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || !hasAttr(n, "itemscope") {
			return true
		}
		item := StructuredItem{
			Fields:  make(map[string]string),
			Pointer: fmt.Sprintf("/microdata/%d", idx),
		}
		if t := attrValue(n, "itemtype"); t != "" {
			item.Type = lastURLSegment(t)
		}
		if id := attrValue(n, "itemid"); id != "" {
			item.ID = id
		}
		collectItemprops(n, &item)
		if item.Type != "" || len(item.Fields) > 0 {
			items = append(items, item)
			idx++
		}
		return false // nested itemscopes fold into the outer item's text values
	})
	return items
}

func collectItemprops(scope *html.Node, item *StructuredItem) {
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if prop := attrValue(c, "itemprop"); prop != "" {
			if v := microdataValue(c); v != "" {
				item.Fields[prop] = v
			}
		}
		if !hasAttr(c, "itemscope") {
			collectItemprops(c, item)
		}
	}
}

func microdataValue(n *html.Node) string {
	if v := attrValue(n, "content"); v != "" {
		return strings.TrimSpace(v)
	}
	switch n.Data {
	case "a", "link", "area":
		if v := attrValue(n, "href"); v != "" {
			return v
		}
	case "img", "audio", "video", "source", "iframe", "embed":
		if v := attrValue(n, "src"); v != "" {
			return v
		}
	case "time":
		if v := attrValue(n, "datetime"); v != "" {
			return v
		}
	case "meta":
		return ""
	}
	return collapseSpace(textContent(n))
}

func harvestRDFa(root *html.Node) []StructuredItem {
	var items []StructuredItem
	idx := 0
	walkNodes(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || attrValue(n, "typeof") == "" {
			return true
		}
		item := StructuredItem{
			Type:    lastURLSegment(attrValue(n, "typeof")),
			ID:      attrValue(n, "about"),
			Fields:  make(map[string]string),
			Pointer: fmt.Sprintf("/rdfa/%d", idx),
		}
		collectRDFaProperties(n, &item)
		if item.Type != "" || len(item.Fields) > 0 {
			items = append(items, item)
			idx++
		}
		return false
	})
	return items
}

func collectRDFaProperties(scope *html.Node, item *StructuredItem) {
	for c := scope.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if prop := attrValue(c, "property"); prop != "" {
			value := attrValue(c, "content")
			if value == "" {
				value = collapseSpace(textContent(c))
			}
			if value != "" {
				item.Fields[lastURLSegment(prop)] = value
			}
		}
		if attrValue(c, "typeof") == "" {
			collectRDFaProperties(c, item)
		}
	}
}

// walkNodes visits nodes depth-first; fn returning false prunes the subtree.
func walkNodes(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, fn)
	}
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func lastURLSegment(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "/#:"); i >= 0 && i+1 < len(s) {
		return s[i+1:]
	}
	return s
}

func escapePointerToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}
