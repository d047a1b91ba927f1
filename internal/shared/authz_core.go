package shared

// View codes gating the administrative areas.
const (
	ViewRoles     = "ROLES"
	ViewUsers     = "USUARIOS"
	ViewViews     = "VISTAS"
	ViewAudit     = "AUDITORIA"
	ViewJobs      = "TAREAS"
	RoleAdminCode = "ADMIN"
)

// CoreViews lists all view codes owned by the administration module.
func CoreViews() []string {
	return []string{
		ViewRoles,
		ViewUsers,
		ViewViews,
		ViewAudit,
		ViewJobs,
	}
}
