// Package searchquery pulls the web search queries an agent issued out of its
// stream updates so they can be shown to the user while the reply streams.
//
// A query is any value stored under a key named "query" (case-insensitive),
// at any depth. Lists under such a key are flattened. A bare string update is
// itself treated as a query when it mentions "query". That string rule applies
// to the top-level value only: strings nested in objects or lists are never
// queries on their own.
package searchquery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// Collect returns every query found in v, in document order, without
// deduplication. Go maps are visited in sorted key order.
func Collect(v any) []string {
	if s, ok := v.(string); ok {
		if strings.Contains(strings.ToLower(s), "query") {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}

	return collect(toNode(v))
}

// Extract returns the queries in v trimmed, non-empty and deduplicated,
// keeping the first occurrence of each.
func Extract(v any) []string {
	return dedupe(Collect(v))
}

// FromJSON extracts the queries from a raw JSON document, honoring the key
// order of the document. Invalid JSON yields no queries.
func FromJSON(raw json.RawMessage) []string {
	n, err := parseJSON(raw)
	if err != nil {
		return nil
	}

	return dedupe(collect(n))
}

// Seen remembers queries across updates. The zero value is ready to use.
type Seen struct {
	m map[string]struct{}
}

// Filter returns the queries not seen before and records them.
func (s *Seen) Filter(queries []string) []string {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}

	var out []string
	for _, q := range queries {
		if _, ok := s.m[q]; ok {
			continue
		}
		s.m[q] = struct{}{}
		out = append(out, q)
	}

	return out
}

// Len returns the number of distinct queries recorded.
func (s *Seen) Len() int { return len(s.m) }

func dedupe(raw []string) []string {
	var (
		out  []string
		seen = make(map[string]struct{}, len(raw))
	)

	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	return out
}

// node is an order-preserving view of a decoded value.
type node struct {
	kind   kind
	text   string // kindString, kindScalar
	items  []node // kindList
	fields []field
}

type field struct {
	key string
	val node
}

type kind int

const (
	kindNull kind = iota
	kindString
	kindScalar
	kindList
	kindObject
)

func collect(n node) []string {
	switch n.kind {
	case kindList:
		var out []string
		for _, it := range n.items {
			out = append(out, collect(it)...)
		}
		return out
	case kindObject:
		var out []string
		for _, f := range n.fields {
			if strings.EqualFold(f.key, "query") {
				out = append(out, normalize(f.val)...)
				continue
			}
			out = append(out, collect(f.val)...)
		}
		return out
	default:
		return nil
	}
}

// normalize flattens the value stored under a "query" key.
func normalize(n node) []string {
	switch n.kind {
	case kindNull:
		return nil
	case kindString:
		if s := strings.TrimSpace(n.text); s != "" {
			return []string{s}
		}
		return nil
	case kindList:
		var out []string
		for _, it := range n.items {
			out = append(out, normalize(it)...)
		}
		return out
	case kindScalar:
		return []string{strings.TrimSpace(n.text)}
	default:
		return []string{strings.TrimSpace(render(n))}
	}
}

// render formats an object or list found under a "query" key back to JSON
// text.
func render(n node) string {
	var b strings.Builder
	writeNode(&b, n)

	return b.String()
}

func writeNode(b *strings.Builder, n node) {
	switch n.kind {
	case kindString:
		fmt.Fprintf(b, "%q", n.text)
	case kindObject:
		b.WriteByte('{')
		for i, f := range n.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%q: ", f.key)
			writeNode(b, f.val)
		}
		b.WriteByte('}')
	case kindList:
		b.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, it)
		}
		b.WriteByte(']')
	case kindNull:
		b.WriteString("null")
	default:
		b.WriteString(n.text)
	}
}

func toNode(v any) node {
	switch t := v.(type) {
	case nil:
		return node{}
	case string:
		return node{kind: kindString, text: t}
	case json.RawMessage:
		n, _ := parseJSON(t)
		return n
	case []byte:
		return node{kind: kindString, text: string(t)}
	case []any:
		items := make([]node, len(t))
		for i, it := range t {
			items[i] = toNode(it)
		}
		return node{kind: kindList, items: items}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]field, len(keys))
		for i, k := range keys {
			fields[i] = field{key: k, val: toNode(t[k])}
		}
		return node{kind: kindObject, fields: fields}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return node{}
		}
		return toNode(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]node, rv.Len())
		for i := range items {
			items[i] = toNode(rv.Index(i).Interface())
		}
		return node{kind: kindList, items: items}
	case reflect.Map:
		keys := rv.MapKeys()
		fields := make([]field, len(keys))
		for i, k := range keys {
			fields[i] = field{key: fmt.Sprint(k.Interface()), val: toNode(rv.MapIndex(k).Interface())}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })
		return node{kind: kindObject, fields: fields}
	case reflect.Struct:
		raw, err := json.Marshal(v)
		if err != nil {
			return node{}
		}
		n, _ := parseJSON(raw)
		return n
	default:
		return node{kind: kindScalar, text: fmt.Sprint(v)}
	}
}

func parseJSON(raw []byte) (node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	return decodeValue(dec)
}

func decodeValue(dec *json.Decoder) (node, error) {
	tok, err := dec.Token()
	if err != nil {
		return node{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var items []node
			for dec.More() {
				it, err := decodeValue(dec)
				if err != nil {
					return node{}, err
				}
				items = append(items, it)
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return node{kind: kindList, items: items}, nil
		case '{':
			var fields []field
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return node{}, err
				}
				key, _ := kt.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return node{}, err
				}
				fields = append(fields, field{key: key, val: val})
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return node{kind: kindObject, fields: fields}, nil
		}
		return node{}, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return node{}, nil
	case string:
		return node{kind: kindString, text: t}, nil
	case json.Number:
		return node{kind: kindScalar, text: t.String()}, nil
	case bool:
		return node{kind: kindScalar, text: fmt.Sprint(t)}, nil
	}

	return node{}, io.ErrUnexpectedEOF
}
