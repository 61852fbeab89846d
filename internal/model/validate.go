package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e when it holds errors and nil otherwise.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Invalid builds a single-field validation error.
func Invalid(field, format string, args ...any) error {
	ve := &ValidationError{}
	ve.Add(field, format, args...)
	return ve
}

// ValidateNode checks a node for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the node is valid.
func ValidateNode(n *Node) error {
	var ve ValidationError

	if strings.TrimSpace(n.ID) == "" {
		ve.Add("id", "is required")
	}
	if !n.Kind.IsValid() {
		ve.Add("kind", "invalid value %q", n.Kind)
		return &ve
	}
	if n.Data == nil {
		ve.Add("data", "is required")
		return &ve
	}
	if n.Data.NodeKind() != n.Kind {
		ve.Add("data", "holds %s attributes but node kind is %s", n.Data.NodeKind(), n.Kind)
		return &ve
	}

	switch d := n.Data.(type) {
	case *UserData:
		if strings.TrimSpace(d.UserID) == "" {
			ve.Add("data.userId", "is required")
		}
	case *GenericRecipientData:
		if !d.Resolution.IsValid() {
			ve.Add("data.genericType", "invalid value %q", d.Resolution)
		}
	case *RoleData:
		for m := range d.ModulePermissions {
			if !m.IsValid() {
				ve.Add("data.modules", "unknown module %q", m)
			}
		}
	}

	if s := n.Scope(); s != nil && s.Type != "" && !s.Type.IsValid() {
		ve.Add("data.scopeDefinition.type", "invalid value %q", s.Type)
	}

	return ve.Err()
}

// ValidateEdge checks an edge against its endpoints. source and target must
// be the nodes the edge references; a missing endpoint is reported by the
// caller, which owns node lookup.
func ValidateEdge(e *Edge, source, target *Node) error {
	var ve ValidationError

	if strings.TrimSpace(e.ID) == "" {
		ve.Add("id", "is required")
	}
	if e.Source == e.Target {
		ve.Add("target", "must differ from source")
	}

	kind := RelationFor(source.Kind, target.Kind)
	if e.Kind != "" && e.Kind != kind {
		ve.Add("kind", "is %s but endpoints make it %s", e.Kind, kind)
	}
	if !kind.IsValid() {
		ve.Add("kind", "%s relations are not supported", kind)
		return &ve
	}

	if t := source.Template(); t != nil && len(t.EventTypes) == 0 {
		ve.Add("source", "notification template %q has no event types; add at least one event type to the template before connecting it", source.Label())
	}

	if rt := e.Data.RelationshipType; rt != "" && !rt.IsValid() {
		ve.Add("data.relationshipType", "invalid value %q", rt)
	}
	if v := e.Data.Visibility; v != nil {
		if v.Scope != "" && !v.Scope.IsValid() {
			ve.Add("data.visibility.scope", "invalid value %q", v.Scope)
		}
		for m, lvl := range v.Permissions {
			if !m.IsValid() {
				ve.Add("data.visibility.permissions", "unknown module %q", m)
			}
			if !lvl.IsValid() {
				ve.Add("data.visibility.permissions", "invalid level %q for %s", lvl, m)
			}
		}
		for m := range v.Modules {
			if !m.IsValid() {
				ve.Add("data.visibility.modules", "unknown module %q", m)
			}
		}
	}
	if nr := e.Data.Notifications; nr != nil && nr.Priority != "" && !nr.Priority.IsValid() {
		ve.Add("data.notifications.priority", "invalid value %q", nr.Priority)
	}

	return ve.Err()
}
