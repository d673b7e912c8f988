package privilege

import "github.com/opencanvass/canvassd/pkg/store"

// Built-in role names
const (
	RoleNone      = "none"
	RoleCanvasser = "canvasser"
	RoleStaff     = "staff"
	RoleGroupLead = "group-lead"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
)

// DefaultRoles returns the seed role catalog, one role per canonical level
func DefaultRoles() []Role {
	full := Compose(Full, Full, Full)
	readAll := Compose(Read, Read, Read)
	readOwn := Compose(None, None, Read)
	fieldwork := Compose(Read, Read|Update, Full)
	organise := Compose(CRUD, Full, Full)

	grantAll := func(mask Mask) map[Resource]Mask {
		privileges := make(map[Resource]Mask, len(Resources()))
		for _, res := range Resources() {
			privileges[res] = mask
		}
		return privileges
	}

	admin := Role{Name: RoleAdmin, Level: LevelAdmin, Privileges: grantAll(full)}

	manager := Role{Name: RoleManager, Level: LevelManager, Privileges: grantAll(organise)}
	manager.Privileges[ResourceRoles] = readAll

	groupLead := Role{Name: RoleGroupLead, Level: LevelGroupLead, Privileges: grantAll(fieldwork)}
	groupLead.Privileges[ResourceCanvasses] = organise
	groupLead.Privileges[ResourceAssignments] = organise
	groupLead.Privileges[ResourceRoles] = readAll

	staff := Role{Name: RoleStaff, Level: LevelStaff, Privileges: grantAll(fieldwork)}
	staff.Privileges[ResourceUsers] = Compose(None, Read, Full)
	staff.Privileges[ResourceRoles] = readOwn

	canvasser := Role{Name: RoleCanvasser, Level: LevelCanvasser, Privileges: map[Resource]Mask{
		ResourceUsers:         Compose(None, None, Read|Update),
		ResourceRoles:         readOwn,
		ResourcePeople:        Compose(Read, Read|Update, Full),
		ResourceParties:       readAll,
		ResourceCandidates:    readAll,
		ResourceElections:     readAll,
		ResourceVotingSystems: readAll,
		ResourceCanvasses:     readAll,
		ResourceAssignments:   Compose(None, Read, Read|Update),
		ResourceSurveys:       readAll,
		ResourceResults:       Compose(None, Read, Full),
		ResourceNotices:       readAll,
	}}

	none := Role{Name: RoleNone, Level: LevelNone, Privileges: map[Resource]Mask{
		ResourceUsers: readOwn,
		ResourceRoles: readOwn,
	}}

	return []Role{none, canvasser, staff, groupLead, manager, admin}
}

// AdminRole returns the built-in administrator role
func AdminRole() *Role {
	roles := DefaultRoles()
	for i := range roles {
		if roles[i].Level == LevelAdmin {
			return &roles[i]
		}
	}
	return nil
}

// ToDocument flattens the role for storage
func (r *Role) ToDocument() store.Document {
	privileges := make(map[string]interface{}, len(r.Privileges))
	for res, mask := range r.Privileges {
		privileges[string(res)] = float64(mask)
	}
	doc := store.Document{
		"name":       r.Name,
		"level":      float64(r.Level),
		"privileges": privileges,
	}
	if r.ID != "" {
		doc[store.FieldID] = r.ID
	}
	return doc
}

// RoleFromDocument rebuilds a role from its stored form
func RoleFromDocument(doc store.Document) *Role {
	role := &Role{
		ID:         doc.ID(),
		Privileges: make(map[Resource]Mask),
	}
	if name, ok := doc["name"].(string); ok {
		role.Name = name
	}
	if level, ok := doc["level"].(float64); ok {
		role.Level = int(level)
	}
	switch privileges := doc["privileges"].(type) {
	case map[string]interface{}:
		for res, raw := range privileges {
			if mask, ok := raw.(float64); ok {
				role.Privileges[Resource(res)] = Mask(mask)
			}
		}
	case map[Resource]Mask:
		for res, mask := range privileges {
			role.Privileges[res] = mask
		}
	}
	return role
}
