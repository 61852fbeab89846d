package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Entity is a business record (order, invoice, ...) as a flat field map.
// Only whitelisted identity fields are read from it.
type Entity map[string]any

// IDs returns the user ids stored in field. Numbers, numeric strings,
// plain strings and arrays of those are accepted; zero and empty values
// are skipped.
func (e Entity) IDs(field string) []string {
	if e == nil {
		return nil
	}
	v, ok := e[field]
	if !ok {
		return nil
	}
	return idValues(v)
}

// FirstID returns the first id found among fields, in order.
func (e Entity) FirstID(fields ...string) string {
	for _, f := range fields {
		if ids := e.IDs(f); len(ids) > 0 {
			return ids[0]
		}
	}
	return ""
}

// Flag reports whether field holds a truthy value (true, 1, "1", "true").
func (e Entity) Flag(field string) bool {
	if e == nil {
		return false
	}
	switch v := e[field].(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	case json.Number:
		return v.String() == "1"
	case string:
		s := strings.TrimSpace(strings.ToLower(v))
		return s == "1" || s == "true"
	}
	return false
}

func idValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, idValues(item)...)
		}
		return out
	case []string:
		var out []string
		for _, s := range t {
			out = append(out, idValues(s)...)
		}
		return out
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "0" {
			return nil
		}
		return []string{s}
	case float64:
		if t == 0 {
			return nil
		}
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case int:
		if t == 0 {
			return nil
		}
		return []string{strconv.Itoa(t)}
	case int64:
		if t == 0 {
			return nil
		}
		return []string{strconv.FormatInt(t, 10)}
	case json.Number:
		return idValues(t.String())
	}
	return nil
}
