package rbac

type Role string
type Action string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEmployee, RoleUser:
		return action == ActionRead || action == ActionWrite || action == ActionDelete
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleEmployee, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
