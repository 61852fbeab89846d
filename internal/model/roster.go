package model

// RosterUser is a user as supplied by the user catalog.
type RosterUser struct {
	ID             string                     `json:"id" toml:"id"`
	DisplayName    string                     `json:"name" toml:"name"`
	PositionTitle  string                     `json:"position,omitempty" toml:"position"`
	DepartmentID   string                     `json:"departmentId,omitempty" toml:"department_id"`
	DepartmentName string                     `json:"department,omitempty" toml:"department"`
	DepartmentCode string                     `json:"departmentCode,omitempty" toml:"department_code"`
	LocationID     string                     `json:"locationId,omitempty" toml:"location_id"`
	RoleIDs        []string                   `json:"roleIds,omitempty" toml:"role_ids"`
	Permissions    map[Module]PermissionLevel `json:"permissions,omitempty" toml:"permissions"`
	Inactive       bool                       `json:"inactive,omitempty" toml:"inactive"`
}

// HasRole reports whether the user holds the role.
func (u *RosterUser) HasRole(roleID string) bool {
	for _, r := range u.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Roster is an ordered, indexed set of active users. Roster order is the
// stable order of every resolved recipient set.
type Roster struct {
	users []RosterUser
	index map[string]int
}

// NewRoster indexes users, skipping inactive users and duplicate ids.
func NewRoster(users []RosterUser) *Roster {
	r := &Roster{index: make(map[string]int, len(users))}
	for _, u := range users {
		if u.Inactive || u.ID == "" {
			continue
		}
		if _, dup := r.index[u.ID]; dup {
			continue
		}
		r.index[u.ID] = len(r.users)
		r.users = append(r.users, u)
	}
	return r
}

// Users returns the active users in roster order.
func (r *Roster) Users() []RosterUser {
	if r == nil {
		return nil
	}
	return r.users
}

// Len returns the number of active users.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.users)
}

// Get looks up a user by id.
func (r *Roster) Get(id string) (RosterUser, bool) {
	if r == nil {
		return RosterUser{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return RosterUser{}, false
	}
	return r.users[i], true
}

// Contains reports whether id is an active roster user.
func (r *Roster) Contains(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[id]
	return ok
}

// Ordered returns the members of ids that are on the roster, de-duplicated
// and sorted into roster order.
func (r *Roster) Ordered(ids []string) []string {
	if r == nil || len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []string
	for _, u := range r.users {
		if _, ok := want[u.ID]; ok {
			out = append(out, u.ID)
		}
	}
	return out
}

// Filter returns the ids of users matching keep, in roster order.
func (r *Roster) Filter(keep func(RosterUser) bool) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u.ID)
		}
	}
	return out
}

// MembersOf returns the population a node stands for: the user itself, or
// the members of a role, department or location. Templates and generic
// recipients have no population.
func (r *Roster) MembersOf(n Node) []string {
	ref := n.EntityRef()
	if ref == "" {
		return nil
	}
	switch n.Kind {
	case KindUser:
		if r.Contains(ref) {
			return []string{ref}
		}
		return nil
	case KindRole:
		return r.Filter(func(u RosterUser) bool { return u.HasRole(ref) })
	case KindDepartment:
		return r.Filter(func(u RosterUser) bool { return u.DepartmentID == ref })
	case KindLocation:
		return r.Filter(func(u RosterUser) bool { return u.LocationID == ref })
	}
	return nil
}
