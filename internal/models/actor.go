package models

// Role is the authorization role of an actor.
type Role string

const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleDepartmentAdmin Role = "DEPARTMENT_ADMIN"
	RoleDivisionHead    Role = "DIVISION_HEAD"
	RoleOfficer         Role = "OFFICER"
	RoleInwardDesk      Role = "INWARD_DESK"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleDepartmentAdmin, RoleDivisionHead, RoleOfficer, RoleInwardDesk:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of a command.
type Actor struct {
	ActorID      uint `json:"actor_id"`
	Role         Role `json:"role"`
	DepartmentID uint `json:"department_id"`
	DivisionID   uint `json:"division_id"`
}

// IsSuperAdmin reports whether the actor holds the break-glass role.
func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// CanCreate reports whether the actor may open new files.
func (a Actor) CanCreate() bool {
	return a.Role.Valid()
}

// CanDecide reports whether the actor may approve or reject files.
func (a Actor) CanDecide() bool {
	switch a.Role {
	case RoleDivisionHead, RoleDepartmentAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdministersDepartment reports whether the actor may override custody in a department.
func (a Actor) AdministersDepartment(departmentID uint) bool {
	if a.IsSuperAdmin() {
		return true
	}
	return a.Role == RoleDepartmentAdmin && a.DepartmentID == departmentID
}
