package policy

import "housing/pkg/domain"

// Portal areas.
const (
	AreaLanding  domain.Area = "landing"
	AreaLogin    domain.Area = "login"
	AreaSignup   domain.Area = "signup"
	AreaNotFound domain.Area = "not_found"

	// AreaDashboard is the role-neutral entry point; it forwards each role to
	// its home area.
	AreaDashboard domain.Area = "dashboard"

	AreaStudentDashboard   domain.Area = "student_dashboard"
	AreaStudentProfile     domain.Area = "student_profile"
	AreaStudentRoom        domain.Area = "student_room"
	AreaStudentResidencies domain.Area = "student_residencies"
	AreaStudentContact     domain.Area = "student_contact"
	AreaStudentRequests    domain.Area = "student_requests"

	AreaAdminDashboard       domain.Area = "admin_dashboard"
	AreaAdminStudents        domain.Area = "admin_students"
	AreaAdminUserApprovals   domain.Area = "admin_user_approvals"
	AreaAdminContact         domain.Area = "admin_contact"
	AreaAdminSiteMaintenance domain.Area = "admin_site_maintenance"

	AreaServiceDashboard       domain.Area = "service_dashboard"
	AreaServiceRequests        domain.Area = "service_requests"
	AreaServiceStudents        domain.Area = "service_students"
	AreaServiceBookingRequests domain.Area = "service_booking_requests"
	AreaServiceResidencies     domain.Area = "service_residencies"

	// AreaRequestDecisions guards the decision API shared by administrators
	// and service managers.
	AreaRequestDecisions domain.Area = "request_decisions"
)

var (
	student  = []domain.Role{domain.RoleStudent}
	admin    = []domain.Role{domain.RoleAdministrator}
	service  = []domain.Role{domain.RoleServiceManager}
	deciders = []domain.Role{domain.RoleAdministrator, domain.RoleServiceManager}
)

// DefaultRules is the portal's built-in table.
func DefaultRules() []Rule {
	return []Rule{
		{Area: AreaLanding, Path: "/", Public: true},
		{Area: AreaLogin, Path: "/login", Public: true},
		{Area: AreaSignup, Path: "/signup", Public: true},
		{Area: AreaNotFound, Public: true},
		{Area: AreaDashboard, Path: "/dashboard", Roles: domain.Roles()},

		{Area: AreaStudentDashboard, Path: "/dashboard/student", Roles: student},
		{Area: AreaStudentProfile, Path: "/dashboard/student/profile", Roles: student},
		{Area: AreaStudentRoom, Path: "/dashboard/student/room", Roles: student},
		{Area: AreaStudentResidencies, Path: "/dashboard/student/residencies", Roles: student},
		{Area: AreaStudentContact, Path: "/dashboard/student/contact", Roles: student},
		{Area: AreaStudentRequests, Path: "/dashboard/student/requests", Roles: student},

		{Area: AreaAdminDashboard, Path: "/dashboard/admin", Roles: admin},
		{Area: AreaAdminStudents, Path: "/dashboard/admin/students", Roles: admin},
		{Area: AreaAdminUserApprovals, Path: "/dashboard/admin/approvals", Roles: admin},
		{Area: AreaAdminContact, Path: "/dashboard/admin/requests", Roles: admin},
		{Area: AreaAdminSiteMaintenance, Path: "/dashboard/admin/site-maintenance", Roles: admin},

		{Area: AreaServiceDashboard, Path: "/dashboard/service", Roles: service},
		{Area: AreaServiceRequests, Path: "/dashboard/service/requests", Roles: service},
		{Area: AreaServiceStudents, Path: "/dashboard/service/students", Roles: service},
		{Area: AreaServiceBookingRequests, Path: "/dashboard/service/bookings", Roles: service},
		{Area: AreaServiceResidencies, Path: "/dashboard/service/residencies", Roles: service},

		{Area: AreaRequestDecisions, Roles: deciders},
	}
}

// DefaultHomes maps each role to the area it lands on.
func DefaultHomes() map[domain.Role]domain.Area {
	return map[domain.Role]domain.Area{
		domain.RoleStudent:        AreaStudentDashboard,
		domain.RoleAdministrator:  AreaAdminDashboard,
		domain.RoleServiceManager: AreaServiceDashboard,
	}
}

// Default builds the built-in table, checked against exposed.
func Default(exposed []domain.Area) (*Table, error) {
	return Build(DefaultRules(), DefaultHomes(), exposed)
}
