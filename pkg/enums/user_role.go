package enums

// UserRole identifies what a token holder is allowed to do.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleStaff    UserRole = "staff"
	UserRoleAdmin    UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleCustomer,
	UserRoleStaff,
	UserRoleAdmin,
}

// IsValid reports whether the role is one of the known values.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if r == candidate {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role grants staff-level access.
func (r UserRole) IsStaff() bool {
	return r == UserRoleStaff || r == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, bool) {
	role := UserRole(value)
	return role, role.IsValid()
}
