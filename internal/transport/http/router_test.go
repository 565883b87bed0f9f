package httptransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"housing/internal/gateway"
	identityservice "housing/internal/identity/service"
	identitystore "housing/internal/identity/store"
	"housing/internal/platform/logger"
	"housing/internal/platform/metrics"
	"housing/internal/policy"
	"housing/internal/session"
	"housing/internal/workflow/models"
	workflowservice "housing/internal/workflow/service"
	workflowstore "housing/internal/workflow/store"
	"housing/pkg/domain"
	"housing/pkg/secrets"
	"housing/pkg/testutil"
)

func TestMain(m *testing.M) {
	secrets.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

const testBillingToken = "billing-secret"

type portal struct {
	router   http.Handler
	identity *identityservice.Service
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	log := logger.Discard()
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)

	identitySvc := identityservice.New(identitystore.NewInMemory(), identityservice.WithLogger(log))
	engine := workflowservice.New(workflowstore.NewInMemory(),
		workflowservice.WithLogger(log),
		workflowservice.WithMetrics(mx),
		workflowservice.WithAccountStatusSetter(identitySvc),
	)
	identitySvc.AttachApprovals(engine)

	sessions := session.NewManager(
		session.NewMemoryCredentialStore(),
		session.NewTokenService("router-key", "housing-test"),
		session.WithLogger(log),
		session.WithMetrics(mx),
		session.WithIdentityResolver(identitySvc),
	)
	table, err := policy.Default(ExposedAreas())
	require.NoError(t, err)
	gw, err := gateway.New(table, ExposedAreas(),
		gateway.WithLogger(log), gateway.WithMetrics(mx), gateway.WithSessions(sessions))
	require.NoError(t, err)

	router := NewRouter(RouterConfig{Logger: log, Metrics: mx, Gatherer: reg},
		NewAuthHandler(identitySvc, sessions, nil, gw, log, CookieConfig{}),
		NewRequestHandler(engine, gw, log),
		NewBillingHandler(engine, testBillingToken, log),
	)
	return &portal{router: router, identity: identitySvc}
}

func (p *portal) do(t *testing.T, req *http.Request, key string) *httptest.ResponseRecorder {
	t.Helper()
	if key != "" {
		req = testutil.WithBearer(req, key)
	}
	return testutil.DoRequest(p.router, req)
}

func (p *portal) signup(t *testing.T, email, role string) *SignupResponse {
	t.Helper()
	rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/auth/signup", SignupRequest{
		Email: email, Password: "password-123", Role: role, StudentNumber: "20230001",
	}), "")
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[SignupResponse](t, rr)
}

func (p *portal) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}), "")
	testutil.AssertStatusOK(t, rr)
	return testutil.UnmarshalResponse[LoginResponse](t, rr).SessionKey
}

func (p *portal) decide(t *testing.T, key string, id domain.RequestID, body DecisionRequest) *httptest.ResponseRecorder {
	t.Helper()
	return p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/requests/"+id.String()+"/decision", body), key)
}

func TestPortalRoomBookingLifecycle(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()

	_, err := p.identity.EnsureAdministrator(ctx, "dean@univ.dz", "admin-pass-1")
	require.NoError(t, err)
	adminKey := p.login(t, "dean@univ.dz", "admin-pass-1")

	student := p.signup(t, "karim@univ.dz", "student")
	manager := p.signup(t, "housing@univ.dz", "service_manager")
	studentKey := p.login(t, "karim@univ.dz", "password-123")

	var bookingID domain.RequestID

	testutil.Given(t, "a student whose account is pending", func(t *testing.T) {
		testutil.When(t, "they try to book a room", func(t *testing.T) {
			rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/requests/room-bookings", RoomBookingRequest{
				ResidencyID: domain.NewResidencyID().String(), RoomRef: "B-204",
			}), studentKey)

			testutil.Then(t, "they are sent to login with the area kept", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rr.Code)
				d := testutil.UnmarshalResponse[gateway.Decision](t, rr)
				assert.Equal(t, gateway.RedirectToLogin(policy.AreaLogin, policy.AreaStudentRequests), *d)
			})
		})
	})

	testutil.Given(t, "the administrator reviews account approvals", func(t *testing.T) {
		rr := p.do(t, testutil.NewRequest(t, http.MethodGet, "/requests?kind=account_approval"), adminKey)
		testutil.AssertStatusOK(t, rr)
		list := testutil.UnmarshalResponse[ListResponse](t, rr)
		require.Equal(t, 2, list.Count)

		for _, id := range []domain.RequestID{student.ApprovalRequestID, manager.ApprovalRequestID} {
			rr := p.decide(t, adminKey, id, DecisionRequest{Action: "approve"})
			testutil.AssertStatusOK(t, rr)
			assert.Equal(t, models.StatusApproved, testutil.UnmarshalResponse[TransitionResponse](t, rr).NewStatus)
		}

		testutil.Then(t, "a repeated approval is an invalid transition", func(t *testing.T) {
			rr := p.decide(t, adminKey, student.ApprovalRequestID, DecisionRequest{Action: "approve"})
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
			assert.Equal(t, models.StatusApproved, testutil.UnmarshalResponse[TransitionErrorResponse](t, rr).NewStatus)
		})
	})

	testutil.Given(t, "the approved student", func(t *testing.T) {
		testutil.When(t, "they book a room", func(t *testing.T) {
			rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/requests/room-bookings", RoomBookingRequest{
				ResidencyID: domain.NewResidencyID().String(), RoomRef: "B-204",
			}), studentKey)
			testutil.AssertStatus(t, rr, http.StatusCreated)
			created := testutil.UnmarshalResponse[models.Request](t, rr)
			assert.Equal(t, models.StatusPending, created.Status)
			bookingID = created.ID
		})

		testutil.When(t, "they book a second room", func(t *testing.T) {
			rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/requests/room-bookings", RoomBookingRequest{
				ResidencyID: domain.NewResidencyID().String(), RoomRef: "C-001",
			}), studentKey)
			testutil.Then(t, "it conflicts with the open booking", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
			})
		})

		testutil.When(t, "they try to decide their own booking", func(t *testing.T) {
			rr := p.decide(t, studentKey, bookingID, DecisionRequest{Action: "approve"})
			testutil.Then(t, "they are sent to their home area", func(t *testing.T) {
				assert.Equal(t, http.StatusForbidden, rr.Code)
				d := testutil.UnmarshalResponse[gateway.Decision](t, rr)
				assert.Equal(t, gateway.RedirectTo(policy.AreaStudentDashboard), *d)
			})
		})
	})

	managerKey := p.login(t, "housing@univ.dz", "password-123")

	testutil.Given(t, "the service manager's pending queue", func(t *testing.T) {
		rr := p.do(t, testutil.NewRequest(t, http.MethodGet, "/requests?kind=room_booking"), managerKey)
		testutil.AssertStatusOK(t, rr)
		list := testutil.UnmarshalResponse[ListResponse](t, rr)
		require.Equal(t, 1, list.Count)
		assert.Equal(t, bookingID, list.Requests[0].ID)
		seenVersion := list.Requests[0].Version

		testutil.When(t, "rejecting without a reason", func(t *testing.T) {
			rr := p.decide(t, managerKey, bookingID, DecisionRequest{Action: "reject"})
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})

		testutil.When(t, "approving with a room override", func(t *testing.T) {
			rr := p.decide(t, managerKey, bookingID, DecisionRequest{Action: "approve", AssignedRoomRef: "B-210"})
			testutil.AssertStatusOK(t, rr)
			resp := testutil.UnmarshalResponse[TransitionResponse](t, rr)
			assert.Equal(t, models.StatusApprovedAwaitingPayment, resp.NewStatus)
			assert.Equal(t, "B-210", resp.Request.Payload.RoomBooking.AssignedRoomRef)
			assert.NotNil(t, resp.Request.Payload.RoomBooking.PaymentDeadline)
			assert.Equal(t, workflowservice.PaymentDetailsSent, resp.Request.Notes)
		})

		testutil.When(t, "the administrator rejects from the same read", func(t *testing.T) {
			rr := p.decide(t, adminKey, bookingID, DecisionRequest{Action: "reject", Reason: "full", Version: seenVersion})
			testutil.Then(t, "the decision is stale and reports the winner's status", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "stale_state")
				body := testutil.UnmarshalResponse[TransitionErrorResponse](t, rr)
				assert.Equal(t, models.StatusApprovedAwaitingPayment, body.NewStatus)
			})
		})
	})

	testutil.Given(t, "the billing collaborator", func(t *testing.T) {
		confirm := func(token, ref string) *httptest.ResponseRecorder {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/billing/payments", PaymentConfirmationRequest{
				RequestID: bookingID.String(), PaymentRef: ref,
			})
			if token != "" {
				req.Header.Set(HeaderBillingToken, token)
			}
			return testutil.DoRequest(p.router, req)
		}

		testutil.Then(t, "a missing token is refused", func(t *testing.T) {
			testutil.AssertStatusAndError(t, confirm("", "pay_123"), http.StatusUnauthorized, "unauthorized")
		})
		testutil.Then(t, "a student session is no substitute for the token", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/billing/payments",
				PaymentConfirmationRequest{RequestID: bookingID.String(), PaymentRef: "pay_123"}), studentKey)
			assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(p.router, req).Code)
		})
		testutil.Then(t, "a malformed reference is invalid", func(t *testing.T) {
			testutil.AssertStatusAndError(t, confirm(testBillingToken, "cash"), http.StatusBadRequest, "validation_error")
		})
		testutil.Then(t, "a valid confirmation confirms the booking", func(t *testing.T) {
			rr := confirm(testBillingToken, "pay_8H2k")
			testutil.AssertStatusOK(t, rr)
			assert.Equal(t, models.StatusConfirmed, testutil.UnmarshalResponse[TransitionResponse](t, rr).NewStatus)
		})
		testutil.Then(t, "repeating it is an invalid transition", func(t *testing.T) {
			rr := confirm(testBillingToken, "pay_8H2k")
			testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_transition")
			assert.Equal(t, models.StatusConfirmed, testutil.UnmarshalResponse[TransitionErrorResponse](t, rr).NewStatus)
		})
	})

	testutil.Given(t, "the student's own request list", func(t *testing.T) {
		rr := p.do(t, testutil.NewRequest(t, http.MethodGet, "/requests/mine?kind=room_booking"), studentKey)
		testutil.AssertStatusOK(t, rr)
		list := testutil.UnmarshalResponse[ListResponse](t, rr)
		require.Equal(t, 1, list.Count)
		assert.Equal(t, models.StatusConfirmed, list.Requests[0].Status)

		testutil.Then(t, "an unknown status filter is rejected", func(t *testing.T) {
			rr := p.do(t, testutil.NewRequest(t, http.MethodGet, "/requests/mine?status=lost"), studentKey)
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		})
	})
}

func TestPortalCancelOwnership(t *testing.T) {
	p := newPortal(t)
	ctx := context.Background()
	_, err := p.identity.EnsureAdministrator(ctx, "dean@univ.dz", "admin-pass-1")
	require.NoError(t, err)
	adminKey := p.login(t, "dean@univ.dz", "admin-pass-1")

	var keys []string
	for _, addr := range []string{"a@univ.dz", "b@univ.dz"} {
		su := p.signup(t, addr, "student")
		testutil.AssertStatusOK(t, p.decide(t, adminKey, su.ApprovalRequestID, DecisionRequest{Action: "approve"}))
		keys = append(keys, p.login(t, addr, "password-123"))
	}

	rr := p.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/requests/profile-changes", ProfileChangeRequest{
		Fields: map[string]string{"phone": "0555 00 00 00"},
	}), keys[0])
	testutil.AssertStatus(t, rr, http.StatusCreated)
	change := testutil.UnmarshalResponse[models.Request](t, rr)

	rr = p.do(t, testutil.NewRequest(t, http.MethodPost, "/requests/"+change.ID.String()+"/cancel"), keys[1])
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = p.do(t, testutil.NewRequest(t, http.MethodPost, "/requests/"+change.ID.String()+"/cancel"), keys[0])
	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, models.StatusCancelled, testutil.UnmarshalResponse[TransitionResponse](t, rr).NewStatus)

	rr = p.do(t, testutil.NewRequest(t, http.MethodPost, "/requests/not-a-uuid/cancel"), keys[0])
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterOperationalEndpoints(t *testing.T) {
	p := newPortal(t)

	rr := testutil.DoRequest(p.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	// Generate at least one observation before scraping.
	testutil.DoRequest(p.router, testutil.NewRequest(t, http.MethodGet, "/navigate?path=/"))
	rr = testutil.DoRequest(p.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "housing_gateway_decisions_total")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouterReadiness(t *testing.T) {
	healthy := func(context.Context) error { return nil }

	rr := testutil.DoRequest(NewRouter(RouterConfig{Checks: map[string]func(context.Context) error{"db": healthy}}),
		testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ready")

	down := func(context.Context) error { return assert.AnError }
	rr = testutil.DoRequest(NewRouter(RouterConfig{Checks: map[string]func(context.Context) error{"db": healthy, "redis": down}}),
		testutil.NewRequest(t, http.MethodGet, "/readyz"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
	assert.NotContains(t, rr.Body.String(), `"db"`)
}
