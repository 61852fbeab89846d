package model

import (
	"encoding/json"
	"fmt"
)

// Position is a node's top-left corner on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed vertex of the organization graph. Data holds the
// kind-specific variant and must agree with Kind.
type Node struct {
	ID       string
	Kind     NodeKind
	Position Position
	Data     NodeData
}

// NodeData is implemented by every node variant.
type NodeData interface {
	NodeKind() NodeKind
	Label() string
	// common exposes the attributes shared by every variant.
	common() *Common
}

// Common carries the attributes any node may have regardless of kind.
// Scope is only consulted when the node is the target of a notification edge.
type Common struct {
	Scope    *RecipientScope   `json:"scopeDefinition,omitempty"`
	Delivery *DeliveryChannels `json:"delivery,omitempty"`
}

func (c *Common) common() *Common { return c }

// RecipientScope describes how the users behind a node are selected
// when a notification is routed to it.
type RecipientScope struct {
	Type                ScopeType `json:"type"`
	SelectedUserIDs     []string  `json:"selectedIds,omitempty"`
	EntityFieldNames    []string  `json:"fields,omitempty"`
	IncludeSubordinates bool      `json:"includeSubordinates,omitempty"`
	RoleID              string    `json:"roleId,omitempty"`
}

// DeliveryChannels lists the channels a recipient is notified through.
type DeliveryChannels struct {
	Email bool `json:"email"`
	InApp bool `json:"inApp"`
	SMS   bool `json:"sms"`
}

// DefaultDelivery is used for nodes that do not specify delivery channels.
var DefaultDelivery = DeliveryChannels{Email: true, InApp: true}

// Merge returns the channel-wise OR of d and o.
func (d DeliveryChannels) Merge(o DeliveryChannels) DeliveryChannels {
	return DeliveryChannels{Email: d.Email || o.Email, InApp: d.InApp || o.InApp, SMS: d.SMS || o.SMS}
}

// Any reports whether at least one channel is enabled.
func (d DeliveryChannels) Any() bool {
	return d.Email || d.InApp || d.SMS
}

// UserData describes a person.
type UserData struct {
	Common
	UserID         string `json:"userId"`
	DisplayName    string `json:"name"`
	PositionTitle  string `json:"position,omitempty"`
	LocationRef    string `json:"locationId,omitempty"`
	DepartmentRef  string `json:"departmentId,omitempty"`
	DepartmentCode string `json:"departmentCode,omitempty"`
}

func (*UserData) NodeKind() NodeKind { return KindUser }
func (d *UserData) Label() string    { return d.DisplayName }

// RoleData describes an application role.
type RoleData struct {
	Common
	RoleID            string          `json:"roleId"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	ModulePermissions map[Module]bool `json:"modules,omitempty"`
}

func (*RoleData) NodeKind() NodeKind { return KindRole }
func (d *RoleData) Label() string    { return d.Name }

// LocationData describes a site.
type LocationData struct {
	Common
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
	Code       string `json:"code,omitempty"`
}

func (*LocationData) NodeKind() NodeKind { return KindLocation }
func (d *LocationData) Label() string    { return d.Name }

// DepartmentData describes an organizational unit.
type DepartmentData struct {
	Common
	DepartmentID string `json:"departmentId"`
	Name         string `json:"name"`
	Code         string `json:"code,omitempty"`
}

func (*DepartmentData) NodeKind() NodeKind { return KindDepartment }
func (d *DepartmentData) Label() string    { return d.Name }

// TemplateData describes a notification template. Outgoing edges may only
// be created once EventTypes is non-empty.
type TemplateData struct {
	Common
	TemplateID             string   `json:"templateId"`
	Title                  string   `json:"name"`
	EventTypes             []string `json:"eventTypes"`
	EmailVariantsAvailable []string `json:"emailVariants,omitempty"`
}

func (*TemplateData) NodeKind() NodeKind { return KindTemplate }
func (d *TemplateData) Label() string    { return d.Title }

// HasEventType reports whether the template is triggered by the event code.
func (d *TemplateData) HasEventType(code string) bool {
	for _, et := range d.EventTypes {
		if et == code {
			return true
		}
	}
	return false
}

// GenericRecipientData is a placeholder resolved at event time.
type GenericRecipientData struct {
	Common
	Resolution Resolution `json:"genericType"`
	Name       string     `json:"name,omitempty"`
}

func (*GenericRecipientData) NodeKind() NodeKind { return KindGenericRecipient }
func (d *GenericRecipientData) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return string(d.Resolution)
}

// NewNodeData returns an empty variant for kind, or an error for unknown kinds.
func NewNodeData(kind NodeKind) (NodeData, error) {
	switch kind {
	case KindUser:
		return &UserData{}, nil
	case KindRole:
		return &RoleData{}, nil
	case KindLocation:
		return &LocationData{}, nil
	case KindDepartment:
		return &DepartmentData{}, nil
	case KindTemplate:
		return &TemplateData{}, nil
	case KindGenericRecipient:
		return &GenericRecipientData{}, nil
	}
	return nil, fmt.Errorf("unknown node kind %q", kind)
}

// Scope returns the node's recipient scope, or nil.
func (n *Node) Scope() *RecipientScope {
	if n.Data == nil {
		return nil
	}
	return n.Data.common().Scope
}

// SetScope replaces the node's recipient scope.
func (n *Node) SetScope(s *RecipientScope) {
	if n.Data != nil {
		n.Data.common().Scope = s
	}
}

// Delivery returns the node's delivery channels, falling back to DefaultDelivery.
func (n *Node) Delivery() DeliveryChannels {
	if n.Data != nil {
		if d := n.Data.common().Delivery; d != nil {
			return *d
		}
	}
	return DefaultDelivery
}

// Label returns a human-readable name for the node.
func (n *Node) Label() string {
	if n.Data == nil {
		return n.ID
	}
	if l := n.Data.Label(); l != "" {
		return l
	}
	return n.ID
}

// User returns the user variant, or nil when the node is not a user.
func (n *Node) User() *UserData {
	d, _ := n.Data.(*UserData)
	return d
}

// Template returns the template variant, or nil when the node is not a template.
func (n *Node) Template() *TemplateData {
	d, _ := n.Data.(*TemplateData)
	return d
}

// EntityRef returns the catalog id the node stands for (user id, role id, ...).
func (n *Node) EntityRef() string {
	switch d := n.Data.(type) {
	case *UserData:
		return d.UserID
	case *RoleData:
		return d.RoleID
	case *LocationData:
		return d.LocationID
	case *DepartmentData:
		return d.DepartmentID
	case *TemplateData:
		return d.TemplateID
	}
	return ""
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	switch d := n.Data.(type) {
	case *UserData:
		c := *d
		c.Common = d.Common.clone()
		out.Data = &c
	case *RoleData:
		c := *d
		c.Common = d.Common.clone()
		if d.ModulePermissions != nil {
			c.ModulePermissions = make(map[Module]bool, len(d.ModulePermissions))
			for k, v := range d.ModulePermissions {
				c.ModulePermissions[k] = v
			}
		}
		out.Data = &c
	case *LocationData:
		c := *d
		c.Common = d.Common.clone()
		out.Data = &c
	case *DepartmentData:
		c := *d
		c.Common = d.Common.clone()
		out.Data = &c
	case *TemplateData:
		c := *d
		c.Common = d.Common.clone()
		c.EventTypes = append([]string(nil), d.EventTypes...)
		c.EmailVariantsAvailable = append([]string(nil), d.EmailVariantsAvailable...)
		out.Data = &c
	case *GenericRecipientData:
		c := *d
		c.Common = d.Common.clone()
		out.Data = &c
	}
	return out
}

func (c Common) clone() Common {
	out := Common{}
	if c.Scope != nil {
		s := *c.Scope
		s.SelectedUserIDs = append([]string(nil), c.Scope.SelectedUserIDs...)
		s.EntityFieldNames = append([]string(nil), c.Scope.EntityFieldNames...)
		out.Scope = &s
	}
	if c.Delivery != nil {
		d := *c.Delivery
		out.Delivery = &d
	}
	return out
}

type nodeWire struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"kind"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the node as {id, kind, position, data}.
func (n Node) MarshalJSON() ([]byte, error) {
	w := nodeWire{ID: n.ID, Kind: n.Kind, Position: n.Position}
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s data: %w", n.Kind, err)
		}
		w.Data = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the data payload into the variant selected by kind.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := NewNodeData(w.Kind)
	if err != nil {
		return err
	}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, data); err != nil {
			return fmt.Errorf("decoding %s data for node %s: %w", w.Kind, w.ID, err)
		}
	}
	*n = Node{ID: w.ID, Kind: w.Kind, Position: w.Position, Data: data}
	return nil
}
