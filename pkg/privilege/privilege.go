// Package privilege implements the role and privilege-mask model gating
// every operation.
//
// A privilege mask packs three 5-bit capability sets, one per access scope:
// bits [0,4] cover every object (All), bits [5,9] a specific object by id
// (One), bits [10,14] the caller's own object (Own). Roles carry one mask
// per protected resource category plus a totally-ordered numeric level used
// for range-based access gating.
package privilege

// Capability is a 5-bit set of operation rights
type Capability uint32

const (
	Create Capability = 1 << iota
	Read
	Update
	Delete
	Batch
)

// Common capability sets
const (
	None Capability = 0
	CRUD            = Create | Read | Update | Delete
	Full            = CRUD | Batch
)

const (
	scopeBits       = 5
	capabilityMask  = 1<<scopeBits - 1
	ScopeFieldWidth = scopeBits
)

// Scope is the access scope a capability applies at
type Scope int

const (
	// ScopeAll covers every object of the resource
	ScopeAll Scope = iota
	// ScopeOne covers a specific object addressed by id
	ScopeOne
	// ScopeOwn covers the caller's own object
	ScopeOwn
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeOne:
		return "one"
	case ScopeOwn:
		return "own"
	}
	return "unknown"
}

// Mask is a packed privilege bitfield: scope k occupies bits [5k, 5k+4]
type Mask uint32

// Compose packs per-scope capability sets into one mask
func Compose(all, one, own Capability) Mask {
	return Mask(all&capabilityMask) |
		Mask(one&capabilityMask)<<(scopeBits*ScopeOne) |
		Mask(own&capabilityMask)<<(scopeBits*ScopeOwn)
}

// At extracts the capability set encoded at the given scope
func (m Mask) At(s Scope) Capability {
	return Capability(m>>(scopeBits*Scope(s))) & capabilityMask
}

// Has reports whether the mask grants the capability at the scope
func (m Mask) Has(s Scope, c Capability) bool {
	return m.At(s)&c != 0
}

// Canonical role levels. Values are load-bearing: exactly one role document
// exists per level, and renumbering requires a data migration.
const (
	LevelNone      = 0
	LevelCanvasser = 60
	LevelStaff     = 70
	LevelGroupLead = 80
	LevelManager   = 90
	LevelAdmin     = 100
)

// Resource names the protected resource categories
type Resource string

const (
	ResourceUsers         Resource = "users"
	ResourceRoles         Resource = "roles"
	ResourcePeople        Resource = "people"
	ResourceParties       Resource = "parties"
	ResourceCandidates    Resource = "candidates"
	ResourceElections     Resource = "elections"
	ResourceVotingSystems Resource = "votingSystems"
	ResourceCanvasses     Resource = "canvasses"
	ResourceAssignments   Resource = "assignments"
	ResourceSurveys       Resource = "surveys"
	ResourceResults       Resource = "results"
	ResourceNotices       Resource = "notices"
)

// Resources lists every protected resource category
func Resources() []Resource {
	return []Resource{
		ResourceUsers, ResourceRoles, ResourcePeople, ResourceParties,
		ResourceCandidates, ResourceElections, ResourceVotingSystems,
		ResourceCanvasses, ResourceAssignments, ResourceSurveys,
		ResourceResults, ResourceNotices,
	}
}

// Role is a named authority level with one privilege mask per resource
type Role struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Level      int               `json:"level"`
	Privileges map[Resource]Mask `json:"privileges"`
}

// Allows reports whether the role grants the capability on the resource at
// the scope
func (r *Role) Allows(res Resource, s Scope, c Capability) bool {
	if r == nil {
		return false
	}
	return r.Privileges[res].Has(s, c)
}
