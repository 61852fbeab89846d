package model

// Edge is a directed relation between two nodes. Kind is derived from the
// endpoint kinds and decides which sections of Data are meaningful.
type Edge struct {
	ID     string       `json:"id"`
	Source string       `json:"source"`
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
	Data   EdgeData     `json:"data"`
}

// EdgeData holds the rule sections of an edge. Sections the relation kind
// does not support are dropped by NormalizeEdge.
type EdgeData struct {
	RelationshipType RelationshipType  `json:"relationshipType,omitempty"`
	Visibility       *VisibilityRule   `json:"visibility,omitempty"`
	Notifications    *NotificationRule `json:"notifications,omitempty"`
}

// VisibilityRule governs what a superior node may see of a subordinate node.
type VisibilityRule struct {
	Scope               VisibilityScope            `json:"scope,omitempty"`
	Modules             map[Module]bool            `json:"modules,omitempty"`
	Permissions         map[Module]PermissionLevel `json:"permissions,omitempty"`
	Extended            *ExtendedVisibility        `json:"extended,omitempty"`
	AppliesToEntityOnly bool                       `json:"appliesToEntityOnly,omitempty"`
}

// ExtendedVisibility widens a rule to extra locations, departments or
// location/department pairs.
type ExtendedVisibility struct {
	Locations    []string      `json:"locations,omitempty"`
	Departments  []string      `json:"departments,omitempty"`
	Combinations []Combination `json:"combinations,omitempty"`
}

// Combination pairs a location with a department.
type Combination struct {
	LocationID   string `json:"locationId"`
	DepartmentID string `json:"departmentId"`
}

// IsEmpty reports whether the extension names nothing.
func (e *ExtendedVisibility) IsEmpty() bool {
	return e == nil || (len(e.Locations) == 0 && len(e.Departments) == 0 && len(e.Combinations) == 0)
}

// NotificationRule routes business events along the edge.
type NotificationRule struct {
	EventTypes    []string              `json:"eventTypes,omitempty"`
	Channels      *EdgeChannels         `json:"channels,omitempty"`
	Priority      Priority              `json:"priority,omitempty"`
	ScopeFilter   ScopeFilter           `json:"scopeFilter,omitempty"`
	RecipientType RecipientType         `json:"recipientType,omitempty"`
	SourceInfo    *SourceInfoRecipients `json:"sourceInfoRecipients,omitempty"`
}

// EdgeChannels gates the delivery channels of the target's recipients.
type EdgeChannels struct {
	Email bool `json:"email"`
	InApp bool `json:"inApp"`
}

// SourceInfoRecipients adds the entity's own people as informational recipients.
// A nil Enabled means enabled.
type SourceInfoRecipients struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// IsEnabled reports whether source-info recipients should be added.
func (s *SourceInfoRecipients) IsEnabled() bool {
	return s != nil && (s.Enabled == nil || *s.Enabled)
}

// FieldNames returns the configured fields or the default set.
func (s *SourceInfoRecipients) FieldNames() []string {
	if s == nil || len(s.Fields) == 0 {
		return DefaultSourceInfoFields
	}
	return s.Fields
}

// HasEventType reports whether the rule fires for the event code.
func (r *NotificationRule) HasEventType(code string) bool {
	if r == nil {
		return false
	}
	for _, et := range r.EventTypes {
		if et == code {
			return true
		}
	}
	return false
}

// Touches reports whether the edge has nodeID as an endpoint.
func (e *Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	if v := e.Data.Visibility; v != nil {
		c := *v
		if v.Modules != nil {
			c.Modules = make(map[Module]bool, len(v.Modules))
			for k, val := range v.Modules {
				c.Modules[k] = val
			}
		}
		if v.Permissions != nil {
			c.Permissions = make(map[Module]PermissionLevel, len(v.Permissions))
			for k, val := range v.Permissions {
				c.Permissions[k] = val
			}
		}
		if v.Extended != nil {
			x := ExtendedVisibility{
				Locations:    append([]string(nil), v.Extended.Locations...),
				Departments:  append([]string(nil), v.Extended.Departments...),
				Combinations: append([]Combination(nil), v.Extended.Combinations...),
			}
			c.Extended = &x
		}
		out.Data.Visibility = &c
	}
	if n := e.Data.Notifications; n != nil {
		c := *n
		c.EventTypes = append([]string(nil), n.EventTypes...)
		if n.Channels != nil {
			ch := *n.Channels
			c.Channels = &ch
		}
		if n.SourceInfo != nil {
			si := SourceInfoRecipients{Fields: append([]string(nil), n.SourceInfo.Fields...)}
			if n.SourceInfo.Enabled != nil {
				v := *n.SourceInfo.Enabled
				si.Enabled = &v
			}
			c.SourceInfo = &si
		}
		out.Data.Notifications = &c
	}
	return out
}
