package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/api/http/handlers"
	"github.com/spec-kit/enrollment-service/internal/auth"
	"github.com/spec-kit/enrollment-service/internal/config"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/observability"
	"github.com/spec-kit/enrollment-service/internal/repository/testutil"
	"github.com/spec-kit/enrollment-service/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app      *fiber.App
	students *testutil.StudentStore
	denylist *testutil.Denylist
	auth     *service.AuthService
}

func newTestServer(t *testing.T, deps ...handlers.Dependency) *testServer {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "router-test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}}

	students := testutil.NewStudentStore()
	users := testutil.NewUserStore()
	denylist := testutil.NewDenylist()
	logger := zap.NewNop()

	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: users, Revoker: denylist})
	studentService := service.NewStudentService(service.StudentDependencies{
		StudentRepo: students,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      logger,
	})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("student-enrollment-service", "test", deps...),
		Auth:           handlers.NewAuthHandler(authService),
		Students:       handlers.NewStudentsHandler(studentService),
		Analytics:      handlers.NewAnalyticsHandler(service.NewAnalyticsService(students)),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), users, denylist),
	})

	return &testServer{app: app, students: students, denylist: denylist, auth: authService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (s *testServer) register(t *testing.T, name, email string) (token, userID string) {
	t.Helper()
	res, err := s.auth.RegisterUser(context.Background(), name, email, "password123")
	require.NoError(t, err)
	return res.Token, res.User.ID
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	_, _, err := s.auth.EnsureAdmin(ctx, "Admin", "admin@x.com", "adminpass1")
	require.NoError(t, err)
	res, err := s.auth.LoginUser(ctx, "admin@x.com", "adminpass1")
	require.NoError(t, err)
	return res.Token
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func studentBody(name, email, course, day string) map[string]string {
	return map[string]string{"name": name, "email": email, "course": course, "enrollment_date": day}
}

func TestStudentsRequireAuthentication(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodGet, "/students", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", decode[errorBody](t, raw).Error.Code)

	status, _ = srv.do(t, fiber.MethodGet, "/students", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateBindsOwner(t *testing.T) {
	srv := newTestServer(t)
	token, userID := srv.register(t, "Uma", "uma@x.com")

	status, raw := srv.do(t, fiber.MethodPost, "/students", token, studentBody("Ana", "ana@x.com", "React", "2024-09-01"))
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	created := decode[dto.StudentResponse](t, raw)
	assert.Equal(t, created.ID, created.MongoID)
	require.NotNil(t, created.Owner)
	assert.Equal(t, userID, *created.Owner)
	assert.Equal(t, "2024-09-01", created.EnrollmentDate)

	status, raw = srv.do(t, fiber.MethodPost, "/students", srv.admin(t), studentBody("Bob", "bob@x.com", "Node", "2024-09-02T10:00:00Z"))
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.NotContains(t, string(raw), `"user"`)
	assert.Equal(t, "2024-09-02", decode[dto.StudentResponse](t, raw).EnrollmentDate)
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")

	cases := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing name", map[string]string{"email": "a@x.com", "course": "React", "enrollment_date": "2024-09-01"}, "name"},
		{"bad email", studentBody("Ana", "not-an-email", "React", "2024-09-01"), "email"},
		{"blank course", studentBody("Ana", "a@x.com", " ", "2024-09-01"), "course"},
		{"bad date", studentBody("Ana", "a@x.com", "React", "01/09/2024"), "enrollment_date"},
		{"blank date", studentBody("Ana", "a@x.com", "React", ""), "enrollment_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, raw := srv.do(t, fiber.MethodPost, "/students", token, tc.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			body := decode[errorBody](t, raw)
			assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
			assert.Equal(t, tc.field, body.Error.Details["field"])
		})
	}
	assert.Zero(t, srv.students.Size())
}

func TestCreateMalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")

	req := httptest.NewRequest(fiber.MethodPost, "/students", strings.NewReader("{"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.admin(t)

	status, _ := srv.do(t, fiber.MethodPost, "/students", admin, studentBody("Ana", "a@x.com", "React", "2024-09-01"))
	require.Equal(t, fiber.StatusCreated, status)

	status, raw := srv.do(t, fiber.MethodPost, "/students", admin, studentBody("Bob", "a@x.com", "Node", "2024-09-01"))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", decode[errorBody](t, raw).Error.Code)
	assert.Equal(t, 1, srv.students.Size())
}

func TestOwnershipScoping(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.admin(t)
	tokenU, _ := srv.register(t, "Uma", "uma@x.com")
	tokenV, _ := srv.register(t, "Vic", "vic@x.com")

	_, raw := srv.do(t, fiber.MethodPost, "/students", tokenU, studentBody("Ana", "a@x.com", "React", "2024-09-01"))
	owned := decode[dto.StudentResponse](t, raw)
	_, raw = srv.do(t, fiber.MethodPost, "/students", admin, studentBody("Bob", "b@x.com", "Node", "2024-09-01"))
	unbound := decode[dto.StudentResponse](t, raw)

	status, raw := srv.do(t, fiber.MethodGet, "/students", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	all := decode[[]dto.StudentResponse](t, raw)
	require.Len(t, all, 2)
	assert.Equal(t, unbound.ID, all[0].ID)
	assert.Equal(t, owned.ID, all[1].ID)

	_, raw = srv.do(t, fiber.MethodGet, "/students", tokenU, nil)
	mine := decode[[]dto.StudentResponse](t, raw)
	require.Len(t, mine, 1)
	assert.Equal(t, owned.ID, mine[0].ID)

	status, raw = srv.do(t, fiber.MethodGet, "/students", tokenV, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))

	for _, id := range []string{owned.ID, unbound.ID} {
		status, _ = srv.do(t, fiber.MethodGet, "/students/"+id, tokenV, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
		status, _ = srv.do(t, fiber.MethodPut, "/students/"+id, tokenV, map[string]string{"course": "Go"})
		assert.Equal(t, fiber.StatusForbidden, status)
		status, _ = srv.do(t, fiber.MethodDelete, "/students/"+id, tokenV, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
	}
	assert.Equal(t, 2, srv.students.Size())
}

func TestGetByIDRoutes(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")
	_, raw := srv.do(t, fiber.MethodPost, "/students", token, studentBody("Ana", "a@x.com", "React", "2024-09-01"))
	created := decode[dto.StudentResponse](t, raw)

	for _, path := range []string{"/students/" + created.ID, "/students/getbyid/" + created.ID} {
		status, raw := srv.do(t, fiber.MethodGet, path, token, nil)
		require.Equal(t, fiber.StatusOK, status, path)
		got := decode[[]dto.StudentResponse](t, raw)
		require.Len(t, got, 1)
		assert.Equal(t, created.ID, got[0].ID)
	}

	status, raw := srv.do(t, fiber.MethodGet, "/students/missing-id", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, raw).Error.Code)
}

func TestUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	token, userID := srv.register(t, "Uma", "uma@x.com")
	_, raw := srv.do(t, fiber.MethodPost, "/students", token, studentBody("Ana", "a@x.com", "React", "2024-09-01"))
	created := decode[dto.StudentResponse](t, raw)
	path := "/students/" + created.ID

	status, raw := srv.do(t, fiber.MethodPut, path, token, map[string]string{"course": "Node"})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"updated":1}`, string(raw))

	_, raw = srv.do(t, fiber.MethodGet, path, token, nil)
	got := decode[[]dto.StudentResponse](t, raw)[0]
	assert.Equal(t, "Node", got.Course)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, userID, *got.Owner)

	status, raw = srv.do(t, fiber.MethodPut, path, token, map[string]string{"name": "A"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "name", decode[errorBody](t, raw).Error.Details["field"])

	status, raw = srv.do(t, fiber.MethodDelete, path, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"deleted":1}`, string(raw))

	status, _ = srv.do(t, fiber.MethodDelete, path, token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAnalytics(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.admin(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")

	status, _ := srv.do(t, fiber.MethodGet, "/analytics", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw := srv.do(t, fiber.MethodGet, "/analytics", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"total":0,"byCourse":[],"recent":[]}`, string(raw))

	for i, course := range []string{"React", "Node", "Node", "React", "Node"} {
		body := studentBody("Student", strings.Repeat("x", i+1)+"@x.com", course, "2024-09-01")
		status, _ := srv.do(t, fiber.MethodPost, "/students", admin, body)
		require.Equal(t, fiber.StatusCreated, status)
	}

	_, raw = srv.do(t, fiber.MethodGet, "/analytics", admin, nil)
	summary := decode[dto.SummaryResponse](t, raw)
	assert.EqualValues(t, 5, summary.Total)
	assert.Equal(t, []dto.CourseCountResponse{{Course: "Node", Count: 3}, {Course: "React", Count: 2}}, summary.ByCourse)
	assert.Len(t, summary.Recent, 5)
	assert.Equal(t, "Node", summary.Recent[0].Course)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.admin(t)
	srv.students.Fail("list", errors.New("pq: relation students does not exist"))

	status, raw := srv.do(t, fiber.MethodGet, "/students", admin, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	body := decode[errorBody](t, raw)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, string(raw), "relation")
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	status, raw := srv.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": "Uma", "email": "uma@x.com", "password": "password123",
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	registered := decode[struct {
		User dto.UserResponse `json:"user"`
		Auth dto.AuthResponse `json:"auth"`
	}](t, raw)
	assert.Equal(t, "student", string(registered.User.Role))

	status, _ = srv.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "uma@x.com", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, raw = srv.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "uma@x.com", "password": "password123"})
	require.Equal(t, fiber.StatusOK, status)
	token := decode[struct {
		Auth dto.AuthResponse `json:"auth"`
	}](t, raw).Auth.Token

	status, raw = srv.do(t, fiber.MethodGet, "/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "uma@x.com")

	status, _ = srv.do(t, fiber.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, raw = srv.do(t, fiber.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "token revoked", decode[errorBody](t, raw).Error.Message)
}

func TestRevocationLookupFailureIsRejected(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")
	srv.denylist.Break(errors.New("redis down"))

	status, _ := srv.do(t, fiber.MethodGet, "/students", token, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t,
		handlers.Dependency{Name: "postgres", Pinger: pingerFunc(func(context.Context) error { return nil })},
		handlers.Dependency{Name: "redis", Pinger: pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") })},
	)

	status, raw := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `"alive"`)

	status, raw = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	body := decode[errorBody](t, raw)
	assert.Equal(t, "ok", body.Error.Details["postgres"])
	assert.Equal(t, "dial tcp: refused", body.Error.Details["redis"])
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	status, raw := srv.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, raw).Error.Code)
}

func TestMetricsAdminOnly(t *testing.T) {
	srv := newTestServer(t)
	token, _ := srv.register(t, "Uma", "uma@x.com")
	admin := srv.admin(t)

	srv.do(t, fiber.MethodGet, "/students", token, nil)

	status, _ := srv.do(t, fiber.MethodGet, "/metrics", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw := srv.do(t, fiber.MethodGet, "/metrics", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	snap := decode[observability.Snapshot](t, raw)
	var listed bool
	for _, s := range snap.Requests {
		if strings.HasPrefix(s.Key, "/students") && strings.HasSuffix(s.Key, "|GET|200") {
			listed = true
		}
	}
	assert.True(t, listed, "%+v", snap.Requests)
	assert.NotEmpty(t, snap.Errors)
}

func TestErrorMetricsKeyedByRoutePattern(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.admin(t)

	ids := []string{
		"01890000-0000-7000-8000-00000000aaa1",
		"01890000-0000-7000-8000-00000000aaa2",
		"01890000-0000-7000-8000-00000000aaa3",
	}
	for _, id := range ids {
		status, _ := srv.do(t, fiber.MethodGet, "/students/"+id, admin, nil)
		require.Equal(t, fiber.StatusNotFound, status)
	}
	srv.do(t, fiber.MethodGet, "/no-such-route-1", "", nil)
	srv.do(t, fiber.MethodGet, "/no-such-route-2", "", nil)

	status, raw := srv.do(t, fiber.MethodGet, "/metrics", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	snap := decode[observability.Snapshot](t, raw)

	var byPattern int64
	for _, s := range snap.Errors {
		assert.NotContains(t, s.Key, "aaa", "error key carries a raw id: %s", s.Key)
		assert.NotContains(t, s.Key, "no-such-route", "error key carries a raw path: %s", s.Key)
		if s.Key == "/students/:id|GET|NOT_FOUND" {
			byPattern = s.Count
		}
	}
	assert.EqualValues(t, len(ids), byPattern, "%+v", snap.Errors)
}
