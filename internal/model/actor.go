package model

// Role names within a tenant, mirrored from the identity provider's claims.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Actor identifies who is performing an operation. It is passed explicitly
// into every mutating engine operation instead of being read from ambient
// request context, so the engines stay testable without an HTTP framework.
type Actor struct {
	UserID uint
	Role   string
}

// CanManage reports whether the actor may perform mutating lifecycle,
// checklist, or retention-execution operations.
func (a Actor) CanManage() bool {
	return a.Role == RoleOwner || a.Role == RoleAdmin
}
