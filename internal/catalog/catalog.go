// Package catalog loads the collaborator catalogs the graph refers to:
// users, roles, locations, departments and notification templates.
//
// A catalog file is TOML or JSON, chosen by extension:
//
//	[[users]]
//	id = "12"
//	name = "Jana Nováková"
//	position = "vedoucí"
//	department_code = "PTN KL"
//	role_ids = ["approver"]
//
//	[[templates]]
//	id = "order-approved"
//	name = "Objednávka schválena"
//	event_types = ["ORDER_APPROVED"]
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Format is a catalog file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

type Role struct {
	ID          string          `json:"id" toml:"id"`
	Name        string          `json:"name" toml:"name"`
	Description string          `json:"description,omitempty" toml:"description"`
	Modules     map[string]bool `json:"modules,omitempty" toml:"modules"`
}

type Location struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
	Code string `json:"code,omitempty" toml:"code"`
}

type Department struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
	Code string `json:"code,omitempty" toml:"code"`
}

type Template struct {
	ID            string   `json:"id" toml:"id"`
	Name          string   `json:"name" toml:"name"`
	EventTypes    []string `json:"eventTypes" toml:"event_types"`
	EmailVariants []string `json:"emailVariants,omitempty" toml:"email_variants"`
}

// Catalog is the full set of collaborator records.
type Catalog struct {
	Users       []model.RosterUser `json:"users" toml:"users"`
	Roles       []Role             `json:"roles,omitempty" toml:"roles"`
	Locations   []Location         `json:"locations,omitempty" toml:"locations"`
	Departments []Department       `json:"departments,omitempty" toml:"departments"`
	Templates   []Template         `json:"templates,omitempty" toml:"templates"`
}

// FormatFor picks the format from a file name. Anything that is not .json
// is read as TOML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatTOML
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog.
func Parse(data []byte, format Format) (*Catalog, error) {
	var c Catalog
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), &c); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects records without ids and duplicate ids within a section.
func (c *Catalog) Validate() error {
	ve := &model.ValidationError{}
	check := func(section string, n int, id func(int) string) {
		seen := make(map[string]struct{}, n)
		for i := 0; i < n; i++ {
			field := fmt.Sprintf("%s[%d].id", section, i)
			v := id(i)
			if v == "" {
				ve.Add(field, "is required")
				continue
			}
			if _, dup := seen[v]; dup {
				ve.Add(field, "duplicate id %q", v)
			}
			seen[v] = struct{}{}
		}
	}
	check("users", len(c.Users), func(i int) string { return c.Users[i].ID })
	check("roles", len(c.Roles), func(i int) string { return c.Roles[i].ID })
	check("locations", len(c.Locations), func(i int) string { return c.Locations[i].ID })
	check("departments", len(c.Departments), func(i int) string { return c.Departments[i].ID })
	check("templates", len(c.Templates), func(i int) string { return c.Templates[i].ID })
	return ve.Err()
}

// Roster indexes the active users.
func (c *Catalog) Roster() *model.Roster {
	if c == nil {
		return model.NewRoster(nil)
	}
	return model.NewRoster(c.Users)
}

// Palette returns one unplaced node per catalog record, ready to be dropped
// onto a canvas. Node ids are "<kind>-<record id>".
func (c *Catalog) Palette() []model.Node {
	if c == nil {
		return nil
	}
	var out []model.Node
	for _, u := range c.Users {
		if u.Inactive {
			continue
		}
		out = append(out, model.Node{ID: "user-" + u.ID, Kind: model.KindUser, Data: &model.UserData{
			UserID:         u.ID,
			DisplayName:    u.DisplayName,
			PositionTitle:  u.PositionTitle,
			LocationRef:    u.LocationID,
			DepartmentRef:  u.DepartmentID,
			DepartmentCode: u.DepartmentCode,
		}})
	}
	for _, r := range c.Roles {
		var mods map[model.Module]bool
		for k, v := range r.Modules {
			if mods == nil {
				mods = make(map[model.Module]bool, len(r.Modules))
			}
			mods[model.Module(k)] = v
		}
		out = append(out, model.Node{ID: "role-" + r.ID, Kind: model.KindRole, Data: &model.RoleData{
			RoleID: r.ID, Name: r.Name, Description: r.Description, ModulePermissions: mods,
		}})
	}
	for _, l := range c.Locations {
		out = append(out, model.Node{ID: "location-" + l.ID, Kind: model.KindLocation, Data: &model.LocationData{
			LocationID: l.ID, Name: l.Name, Code: l.Code,
		}})
	}
	for _, d := range c.Departments {
		out = append(out, model.Node{ID: "department-" + d.ID, Kind: model.KindDepartment, Data: &model.DepartmentData{
			DepartmentID: d.ID, Name: d.Name, Code: d.Code,
		}})
	}
	for _, t := range c.Templates {
		out = append(out, model.Node{ID: "template-" + t.ID, Kind: model.KindTemplate, Data: &model.TemplateData{
			TemplateID:             t.ID,
			Title:                  t.Name,
			EventTypes:             append([]string(nil), t.EventTypes...),
			EmailVariantsAvailable: append([]string(nil), t.EmailVariants...),
		}})
	}
	return out
}

// Template looks up a template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
