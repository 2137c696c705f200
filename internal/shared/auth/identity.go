package auth

// Role names assigned to users. The first role in a token is treated as the
// primary role.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Identity is the authenticated principal attached to every request.
type Identity struct {
	ID    int64
	Roles []string
}

// PrimaryRole returns the first role, or empty when none are assigned.
func (id Identity) PrimaryRole() string {
	if len(id.Roles) == 0 {
		return ""
	}
	return id.Roles[0]
}

// IsAdmin reports whether the primary role is admin.
func (id Identity) IsAdmin() bool {
	return id.PrimaryRole() == RoleAdmin
}

// HasAnyRole reports whether the primary role is one of the given roles.
func (id Identity) HasAnyRole(roles ...string) bool {
	primary := id.PrimaryRole()
	for _, r := range roles {
		if primary == r {
			return true
		}
	}
	return false
}

// ValidRole reports whether the given role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}
