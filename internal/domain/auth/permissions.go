package auth

const (
	RoleEmployee = "Employee"
	RoleManager  = "Manager"
	RoleHR       = "HR"
)

const (
	PermAppraisalRead  = "appraisal.read"
	PermAppraisalWrite = "appraisal.write"
	PermAppraisalAdmin = "appraisal.admin"
	PermAuditRead      = "audit.read"
)

// RolePermissions is fixed; roles themselves come from the token.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermAppraisalRead,
		PermAppraisalWrite,
	},
	RoleManager: {
		PermAppraisalRead,
		PermAppraisalWrite,
		PermAuditRead,
	},
	RoleHR: {
		PermAppraisalRead,
		PermAppraisalWrite,
		PermAppraisalAdmin,
		PermAuditRead,
	},
}

func HasPermission(role, permission string) bool {
	for _, granted := range RolePermissions[role] {
		if granted == permission {
			return true
		}
	}
	return false
}
