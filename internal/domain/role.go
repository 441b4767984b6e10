package domain

// Role enumerates caller roles supplied by the identity provider.
type Role string

const (
	RoleGeneral  Role = "GENERAL"
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// Staff reports whether the role is an internal operator role.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Valid reports whether the role is a known member of the enum.
func (r Role) Valid() bool {
	switch r {
	case RoleGeneral, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// Identity is the caller identity attached to an operation. A nil *Identity
// means the caller is anonymous.
type Identity struct {
	ID   string
	Role Role
}

// IsStaff is a nil-safe staff check for optional identities.
func (i *Identity) IsStaff() bool {
	return i != nil && i.Role.Staff()
}
