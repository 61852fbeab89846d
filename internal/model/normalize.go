package model

import "strings"

// NormalizeNode cleans a node in place and returns how many whitelist-bound
// values were dropped. Unknown entity fields are removed, never rejected.
func NormalizeNode(n *Node) int {
	dropped := 0
	if s := n.Scope(); s != nil {
		if s.Type == "" {
			s.Type = ScopeTypeAll
		}
		var d int
		s.EntityFieldNames, d = FilterEntityFields(s.EntityFieldNames)
		dropped += d
		s.SelectedUserIDs = dedupe(s.SelectedUserIDs)
	}
	if t := n.Template(); t != nil {
		t.EventTypes = dedupe(t.EventTypes)
		t.EmailVariantsAvailable = dedupe(t.EmailVariantsAvailable)
	}
	return dropped
}

// NormalizeEdge cleans an edge in place for its relation kind: unsupported
// sections are removed and whitelist-bound field lists are filtered. It
// returns how many values were dropped.
func NormalizeEdge(e *Edge) int {
	caps, ok := e.Kind.Lookup()
	if !ok {
		return 0
	}
	dropped := 0

	if !caps.RelationshipType {
		e.Data.RelationshipType = ""
	} else if e.Data.RelationshipType == "" {
		e.Data.RelationshipType = RelationDirect
	}

	if v := e.Data.Visibility; v != nil {
		if !caps.Visibility {
			e.Data.Visibility = nil
		} else {
			if !caps.Permissions {
				v.Permissions = nil
			}
			if !caps.Extended || v.Extended.IsEmpty() {
				v.Extended = nil
			}
			if !caps.EntityOnly {
				v.AppliesToEntityOnly = false
			}
			if v.Scope == "" {
				v.Scope = ScopeOwn
			}
		}
	}

	if nr := e.Data.Notifications; nr != nil {
		if !caps.Notifications {
			e.Data.Notifications = nil
		} else {
			nr.EventTypes = dedupe(nr.EventTypes)
			if nr.SourceInfo != nil {
				var d int
				nr.SourceInfo.Fields, d = FilterEntityFields(nr.SourceInfo.Fields)
				dropped += d
			}
		}
	}
	return dropped
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
