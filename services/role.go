package services

// Role is the capability the boundary layer grants a caller after checking
// its credentials. Admin-mutating calls take it explicitly.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func requireAdmin(r Role) error {
	if !r.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
