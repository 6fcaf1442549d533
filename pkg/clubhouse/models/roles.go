package models

// Role represents a student's role within a specific club
type Role string

const (
	RoleMember        Role = "Member"
	RoleOfficer       Role = "Officer"
	RolePresident     Role = "President"
	RoleVicePresident Role = "Vice President"
	RoleTreasurer     Role = "Treasurer"
	RoleSecretary     Role = "Secretary"
)

// DefaultRole is assigned when a member is added without an explicit role
const DefaultRole = RoleMember

var roleCatalog = []Role{
	RoleMember,
	RoleOfficer,
	RolePresident,
	RoleVicePresident,
	RoleTreasurer,
	RoleSecretary,
}

// AllRoles returns the valid membership roles in catalog order
func AllRoles() []Role {
	roles := make([]Role, len(roleCatalog))
	copy(roles, roleCatalog)
	return roles
}

// IsValidRole reports whether role is one of the catalog roles.
// Matching is exact: "member" and " Member" are rejected.
func IsValidRole(role string) bool {
	for _, r := range roleCatalog {
		if string(r) == role {
			return true
		}
	}
	return false
}

// Valid reports whether r is a catalog role
func (r Role) Valid() bool {
	return IsValidRole(string(r))
}
