package model

// NodeKind identifies which variant of node data a node carries.
type NodeKind string

const (
	KindUser             NodeKind = "user"
	KindRole             NodeKind = "role"
	KindLocation         NodeKind = "location"
	KindDepartment       NodeKind = "department"
	KindTemplate         NodeKind = "template"
	KindGenericRecipient NodeKind = "genericRecipient"
)

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	return string(k)
}

// IsValid checks whether the node kind is a known value.
func (k NodeKind) IsValid() bool {
	switch k {
	case KindUser, KindRole, KindLocation, KindDepartment, KindTemplate, KindGenericRecipient:
		return true
	}
	return false
}

// RelationshipType distinguishes a regular reporting line from a stand-in.
// Only meaningful on user-user edges.
type RelationshipType string

const (
	RelationDirect       RelationshipType = "direct"
	RelationSubstitution RelationshipType = "substitution"
)

// IsValid checks whether the relationship type is a known value.
func (r RelationshipType) IsValid() bool {
	switch r {
	case RelationDirect, RelationSubstitution:
		return true
	}
	return false
}

// VisibilityScope is the breadth of records a superior may see.
type VisibilityScope string

const (
	ScopeOwn      VisibilityScope = "OWN"
	ScopeTeam     VisibilityScope = "TEAM"
	ScopeLocation VisibilityScope = "LOCATION"
	ScopeAll      VisibilityScope = "ALL"
)

// IsValid checks whether the visibility scope is a known value.
func (s VisibilityScope) IsValid() bool {
	switch s {
	case ScopeOwn, ScopeTeam, ScopeLocation, ScopeAll:
		return true
	}
	return false
}

// PermissionLevel is the access granted on a module's records.
type PermissionLevel string

const (
	PermReadOnly        PermissionLevel = "READ_ONLY"
	PermReadWrite       PermissionLevel = "READ_WRITE"
	PermReadWriteDelete PermissionLevel = "READ_WRITE_DELETE"
	PermInherit         PermissionLevel = "INHERIT"
)

// IsValid checks whether the permission level is a known value.
func (p PermissionLevel) IsValid() bool {
	switch p {
	case PermReadOnly, PermReadWrite, PermReadWriteDelete, PermInherit:
		return true
	}
	return false
}

// Module names a business module whose records are subject to visibility rules.
type Module string

const (
	ModuleOrders    Module = "objednavky"
	ModuleInvoices  Module = "faktury"
	ModuleContracts Module = "smlouvy"
	ModuleCashDesk  Module = "pokladna"
	ModuleUsers     Module = "uzivatele"
	ModuleLP        Module = "lp"
)

// Modules lists every known module in display order.
var Modules = []Module{ModuleOrders, ModuleInvoices, ModuleContracts, ModuleCashDesk, ModuleUsers, ModuleLP}

// IsValid checks whether the module is a known value.
func (m Module) IsValid() bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}

// ScopeType selects how a recipient scope definition resolves to users.
type ScopeType string

const (
	ScopeTypeAll                ScopeType = "ALL"
	ScopeTypeSelected           ScopeType = "SELECTED"
	ScopeTypeDynamicFromEntity  ScopeType = "DYNAMIC_FROM_ENTITY"
	ScopeTypeEntityParticipants ScopeType = "ENTITY_PARTICIPANTS"
)

// IsValid checks whether the scope type is a known value.
func (t ScopeType) IsValid() bool {
	switch t {
	case ScopeTypeAll, ScopeTypeSelected, ScopeTypeDynamicFromEntity, ScopeTypeEntityParticipants:
		return true
	}
	return false
}

// NeedsEntity reports whether resolving this scope type reads the business entity.
func (t ScopeType) NeedsEntity() bool {
	return t == ScopeTypeDynamicFromEntity || t == ScopeTypeEntityParticipants
}

// Priority is the urgency a notification is delivered with.
type Priority string

const (
	PriorityAuto    Priority = "AUTO"
	PriorityUrgent  Priority = "URGENT"
	PriorityWarning Priority = "WARNING"
	PriorityInfo    Priority = "INFO"
)

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityAuto, PriorityUrgent, PriorityWarning, PriorityInfo:
		return true
	}
	return false
}

// Rank orders concrete priorities; higher is more urgent. AUTO and unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityWarning:
		return 2
	case PriorityInfo:
		return 1
	}
	return 0
}

// Resolution is how a generic recipient placeholder turns into a user.
type Resolution string

const (
	ResolveTriggerUser  Resolution = "TRIGGER_USER"
	ResolveEntityAuthor Resolution = "ENTITY_AUTHOR"
	ResolveEntityOwner  Resolution = "ENTITY_OWNER"
)

// IsValid checks whether the resolution kind is a known value.
func (r Resolution) IsValid() bool {
	switch r {
	case ResolveTriggerUser, ResolveEntityAuthor, ResolveEntityOwner:
		return true
	}
	return false
}

// ScopeFilter narrows notification recipients after scope resolution.
type ScopeFilter string

const (
	FilterNone               ScopeFilter = "NONE"
	FilterEntityParticipants ScopeFilter = "ENTITY_PARTICIPANTS"
)

// RecipientType records what kind of node a notification edge targets.
type RecipientType string

const (
	RecipientUser RecipientType = "USER"
	RecipientRole RecipientType = "ROLE"
)

// RecipientTypeFor derives the recipient type of an edge from its target node.
// Generic recipients use their resolution kind.
func RecipientTypeFor(kind NodeKind, res Resolution) RecipientType {
	switch kind {
	case KindRole:
		return RecipientRole
	case KindGenericRecipient:
		if res.IsValid() {
			return RecipientType(res)
		}
	}
	return RecipientUser
}
