package rbac

const (
	RoleCoach   = "coach"
	RoleCoachee = "coachee"
	RoleAdmin   = "admin"
)

// ValidRole reports whether r is a known system role.
func ValidRole(r string) bool {
	return r == RoleCoach || r == RoleCoachee || r == RoleAdmin
}

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleCoachee: {
		"framework:view",
		"session:view",
		"report:view",
		"user:change_password",
	},
	RoleCoach: {
		"framework:view",
		"session:create",
		"session:view",
		"session:save",
		"session:status",
		"report:view",
		"users:list",
		"teams:view",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}
