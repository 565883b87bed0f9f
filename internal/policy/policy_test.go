package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
)

func TestDefaultTableIsTotal(t *testing.T) {
	table, err := Default(nil)
	require.NoError(t, err)

	for _, role := range domain.Roles() {
		home, ok := table.HomeArea(role)
		require.True(t, ok, role)
		entry, err := table.PolicyFor(home)
		require.NoError(t, err)
		assert.True(t, entry.Allows(role), "home of %s must admit it", role)
	}
}

func TestPolicyFor(t *testing.T) {
	table, err := Default(nil)
	require.NoError(t, err)

	t.Run("declared area", func(t *testing.T) {
		entry, err := table.PolicyFor(AreaRequestDecisions)
		require.NoError(t, err)
		assert.Equal(t, []domain.Role{domain.RoleAdministrator, domain.RoleServiceManager}, entry.AllowedRoles())
		assert.False(t, entry.Allows(domain.RoleStudent))
	})

	t.Run("public area admits everyone", func(t *testing.T) {
		entry, err := table.PolicyFor(AreaLogin)
		require.NoError(t, err)
		for _, r := range domain.Roles() {
			assert.True(t, entry.Allows(r))
		}
	})

	t.Run("undeclared area is a configuration fault", func(t *testing.T) {
		_, err := table.PolicyFor("billing_console")
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestBuildRejectsIncompleteTables(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		homes   map[domain.Role]domain.Area
		exposed []domain.Area
		problem string
	}{
		{
			name:    "exposed area missing",
			rules:   DefaultRules(),
			homes:   DefaultHomes(),
			exposed: []domain.Area{"laundry"},
			problem: `exposed area "laundry" has no policy entry`,
		},
		{
			name:    "role without home",
			rules:   DefaultRules(),
			homes:   map[domain.Role]domain.Area{domain.RoleStudent: AreaStudentDashboard, domain.RoleAdministrator: AreaAdminDashboard},
			problem: `role "service_manager" has no home area`,
		},
		{
			name:  "home does not admit role",
			rules: DefaultRules(),
			homes: map[domain.Role]domain.Area{
				domain.RoleStudent:        AreaAdminDashboard,
				domain.RoleAdministrator:  AreaAdminDashboard,
				domain.RoleServiceManager: AreaServiceDashboard,
			},
			problem: `home area "admin_dashboard" does not admit role "student"`,
		},
		{
			name:    "unknown role",
			rules:   append(DefaultRules(), Rule{Area: "x", Roles: []domain.Role{"admin"}}),
			homes:   DefaultHomes(),
			problem: `area "x": unknown role "admin"`,
		},
		{
			name:    "duplicate area",
			rules:   append(DefaultRules(), Rule{Area: AreaLogin, Public: true}),
			homes:   DefaultHomes(),
			problem: `area "login" declared twice`,
		},
		{
			name:    "duplicate path",
			rules:   append(DefaultRules(), Rule{Area: "other_login", Path: "/login", Public: true}),
			homes:   DefaultHomes(),
			problem: `path "/login" bound to both "login" and "other_login"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.rules, tt.homes, tt.exposed)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, cfgErr.Problems, tt.problem)
		})
	}
}

func TestResolve(t *testing.T) {
	table, err := Default(nil)
	require.NoError(t, err)

	cases := map[string]domain.Area{
		"/":                               AreaLanding,
		"":                                AreaLanding,
		"/login":                          AreaLogin,
		"/dashboard":                      AreaDashboard,
		"/dashboard/":                     AreaDashboard,
		"/dashboard/student":              AreaStudentDashboard,
		"/dashboard/student/profile":      AreaStudentProfile,
		"/dashboard/student/profile/edit": AreaStudentProfile,
		"/dashboard/service/bookings":     AreaServiceBookingRequests,
		"/dashboard/admin/approvals":      AreaAdminUserApprovals,
	}
	for path, want := range cases {
		got, ok := table.Resolve(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := table.Resolve("/dashboard/studentx")
	assert.True(t, ok, "falls back to the dashboard prefix")
	_, ok = table.Resolve("/nowhere")
	assert.False(t, ok)
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
areas:
  - area: landing
    path: /
    public: true
  - area: student_home
    path: /s
    roles: [student]
  - area: staff_home
    path: /staff
    roles: [administrator, service_manager]
homes:
  student: student_home
  administrator: staff_home
  service_manager: staff_home
`)
	table, err := Parse(doc, []domain.Area{"landing", "student_home"})
	require.NoError(t, err)

	home, ok := table.HomeArea(domain.RoleServiceManager)
	require.True(t, ok)
	assert.Equal(t, domain.Area("staff_home"), home)

	_, err = Parse([]byte("areas: [unterminated"), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
