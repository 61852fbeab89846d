package model

// RelationKind is "<source kind>-<target kind>", e.g. "template-user".
type RelationKind string

// RelationFor builds the relation kind for a pair of endpoint kinds.
func RelationFor(source, target NodeKind) RelationKind {
	return RelationKind(string(source) + "-" + string(target))
}

// Capabilities lists which edge data sections a relation kind supports.
type Capabilities struct {
	RelationshipType bool
	Visibility       bool
	Permissions      bool
	Extended         bool
	EntityOnly       bool
	Notifications    bool
}

var (
	unitCaps     = Capabilities{Visibility: true, Permissions: true, Extended: true, EntityOnly: true, Notifications: true}
	templateCaps = Capabilities{Notifications: true}
)

// relationCatalog is the fixed set of allowed endpoint pairs.
var relationCatalog = map[RelationKind]Capabilities{
	"user-user":                 {RelationshipType: true, Visibility: true, Permissions: true, Extended: true, Notifications: true},
	"user-department":           {Visibility: true, Permissions: true, Extended: true},
	"user-location":             {Visibility: true, Permissions: true, Extended: true},
	"user-role":                 {Visibility: true, Permissions: true, Notifications: true},
	"role-user":                 {Visibility: true, Permissions: true, Notifications: true},
	"department-user":           unitCaps,
	"location-user":             unitCaps,
	"department-role":           unitCaps,
	"location-role":             unitCaps,
	"template-user":             templateCaps,
	"template-role":             templateCaps,
	"template-department":       templateCaps,
	"template-location":         templateCaps,
	"template-genericRecipient": templateCaps,
}

// Lookup returns the capabilities of a relation kind and whether it is allowed.
func (k RelationKind) Lookup() (Capabilities, bool) {
	c, ok := relationCatalog[k]
	return c, ok
}

// IsValid reports whether the relation kind is in the catalog.
func (k RelationKind) IsValid() bool {
	_, ok := relationCatalog[k]
	return ok
}

// String returns the string representation of the relation kind.
func (k RelationKind) String() string {
	return string(k)
}
