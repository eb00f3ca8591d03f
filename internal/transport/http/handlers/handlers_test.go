package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/chibuezedev/florin-server/internal/core/domain"
	"github.com/chibuezedev/florin-server/internal/transport/http/middleware"
	"github.com/chibuezedev/florin-server/internal/usecase"
)

type fakeAuth struct {
	registerIn  usecase.RegisterInput
	registerErr error
	loginIn     usecase.LoginInput
	loginErr    error
	refreshErr  error
	logoutCalls []string
	meErr       error
}

func (f *fakeAuth) Register(_ context.Context, in usecase.RegisterInput) (usecase.AuthResult, error) {
	f.registerIn = in
	if f.registerErr != nil {
		return usecase.AuthResult{}, f.registerErr
	}
	return usecase.AuthResult{
		Account: domain.Account{ID: "acc-1", Name: in.Name, Email: in.Email, Role: domain.RoleStudent, IsActive: true},
		Tokens:  domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
	}, nil
}

func (f *fakeAuth) Login(_ context.Context, in usecase.LoginInput) (usecase.AuthResult, error) {
	f.loginIn = in
	if f.loginErr != nil {
		return usecase.AuthResult{}, f.loginErr
	}
	return usecase.AuthResult{
		Account: domain.Account{ID: "acc-1", Email: "ada@uni.edu", Role: domain.RoleStudent, IsActive: true},
		Tokens:  domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
	}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (string, time.Time, error) {
	if f.refreshErr != nil {
		return "", time.Time{}, f.refreshErr
	}
	return "new-access-for-" + token, time.Now(), nil
}

func (f *fakeAuth) Logout(_ context.Context, accountID, token string) error {
	f.logoutCalls = append(f.logoutCalls, accountID+":"+token)
	return nil
}

func (f *fakeAuth) Me(_ context.Context, accountID string) (domain.Account, error) {
	if f.meErr != nil {
		return domain.Account{}, f.meErr
	}
	return domain.Account{ID: accountID, Name: "Ada", Email: "ada@uni.edu", Role: domain.RoleFaculty, IsActive: true}, nil
}

type fakeAlerts struct {
	filter     domain.AlertFilter
	resolveErr error
	resolvedBy string
	notes      *string
}

func (f *fakeAlerts) List(_ context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	f.filter = filter
	return []domain.Alert{{ID: "al-1", AccountID: "acc-9", Type: domain.AlertTypeBehavioral, Severity: domain.RiskTierCritical, AnomalyScore: 88}}, nil
}

func (f *fakeAlerts) Resolve(_ context.Context, alertID, resolverID string, notes *string) (*domain.Alert, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	f.resolvedBy, f.notes = resolverID, notes
	return &domain.Alert{ID: alertID, Resolved: true, ResolvedBy: &resolverID, Notes: notes}, nil
}

type fakeSamples struct {
	scope   string
	limit   int
	listErr error
}

func (f *fakeSamples) History(_ context.Context, accountID string, limit int) ([]domain.BehavioralSample, error) {
	f.scope, f.limit = accountID, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []domain.BehavioralSample{
		{ID: "s-1", Assessment: &domain.RiskAssessment{AnomalyScore: 42, Tier: domain.RiskTierMedium}},
		{ID: "s-2"},
	}, nil
}

func (f *fakeSamples) Recent(_ context.Context, limit int) ([]domain.OwnedSample, error) {
	f.scope, f.limit = "", limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []domain.OwnedSample{{
		BehavioralSample: domain.BehavioralSample{ID: "s-7", AccountID: "acc-9"},
		OwnerName:        "Grace",
		OwnerEmail:       "grace@uni.edu",
	}}, nil
}

func (f *fakeSamples) AnomalyTimeline(_ context.Context, accountID string) ([]domain.TimelineBucket, error) {
	f.scope = accountID
	return []domain.TimelineBucket{{Hour: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), AvgScore: 20, MaxScore: 30, Count: 2}}, nil
}

func asPrincipal(p domain.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, p)
		c.Next()
	}
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestRegisterReturnsCreatedUserAndTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	h := NewAuthHandler(auth)

	router := gin.New()
	router.POST("/register", h.Register)

	rr := serve(router, http.MethodPost, "/register", `{"name":"Ada","email":"ada@uni.edu","password":"secret1","student_id":"S-1"}`)

	require.Equal(t, http.StatusCreated, rr.Code)
	resp := decode[AuthResponse](t, rr)
	require.Equal(t, "acc-1", resp.User.ID)
	require.Equal(t, "access", resp.AccessToken)
	require.Equal(t, "refresh", resp.RefreshToken)
	require.NotNil(t, auth.registerIn.StudentID)
	require.Equal(t, "S-1", *auth.registerIn.StudentID)
	require.NotContains(t, rr.Body.String(), "password")
}

func TestRegisterValidationFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/register", NewAuthHandler(&fakeAuth{}).Register)

	rr := serve(router, http.MethodPost, "/register", `{"email":"not-an-email","role":"root"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[middleware.ErrorResponse](t, rr)
	require.Equal(t, middleware.CodeValidation, body.Code)
	require.Equal(t, "is required", body.Fields["name"])
	require.Equal(t, "is required", body.Fields["password"])
	require.Equal(t, "must be a valid email address", body.Fields["email"])
	require.Contains(t, body.Fields["role"], "must be one of")
}

func TestAuthErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"taken", usecase.ErrEmailTaken, http.StatusConflict, middleware.CodeEmailTaken},
		{"invalid input", usecase.ErrInvalidInput, http.StatusBadRequest, middleware.CodeValidation},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, middleware.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/register", NewAuthHandler(&fakeAuth{registerErr: tc.err}).Register)

			rr := serve(router, http.MethodPost, "/register", `{"name":"Ada","email":"ada@uni.edu","password":"secret1"}`)
			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, tc.code, decode[middleware.ErrorResponse](t, rr).Code)
		})
	}
}

func TestLoginByStudentIDAndFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	router := gin.New()
	router.POST("/login", NewAuthHandler(auth).Login)

	rr := serve(router, http.MethodPost, "/login", `{"student_id":"S-7","password":"pw"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "S-7", auth.loginIn.StudentID)

	rr = serve(router, http.MethodPost, "/login", `{"password":"pw"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "is required", decode[middleware.ErrorResponse](t, rr).Fields["email"])

	auth.loginErr = usecase.ErrInvalidCredentials
	rr = serve(router, http.MethodPost, "/login", `{"email":"ada@uni.edu","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, middleware.CodeInvalidCreds, decode[middleware.ErrorResponse](t, rr).Code)

	auth.loginErr = usecase.ErrInactiveAccount
	rr = serve(router, http.MethodPost, "/login", `{"email":"ada@uni.edu","password":"pw"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, middleware.CodeAccountInactive, decode[middleware.ErrorResponse](t, rr).Code)
}

func TestRefreshReturnsAccessTokenOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	router := gin.New()
	router.POST("/refresh-token", NewAuthHandler(auth).Refresh)

	rr := serve(router, http.MethodPost, "/refresh-token", `{"refresh_token":"r1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"access_token":"new-access-for-r1"}`, rr.Body.String())

	auth.refreshErr = usecase.ErrInvalidRefreshToken
	rr = serve(router, http.MethodPost, "/refresh-token", `{"refresh_token":"r1"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, middleware.CodeInvalidToken, decode[middleware.ErrorResponse](t, rr).Code)
}

func TestLogoutAndMeUseThePrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuth{}
	h := NewAuthHandler(auth)

	router := gin.New()
	authed := router.Group("/", asPrincipal(domain.Principal{AccountID: "acc-5", Role: domain.RoleFaculty}))
	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	router.GET("/anonymous-me", h.Me)

	rr := serve(router, http.MethodPost, "/logout", `{"refresh_token":"r9"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"acc-5:r9"}, auth.logoutCalls)

	rr = serve(router, http.MethodGet, "/me", "")
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[MeResponse](t, rr)
	require.Equal(t, "acc-5", me.User.ID)
	require.Equal(t, domain.RoleFaculty, me.User.Role)

	rr = serve(router, http.MethodGet, "/anonymous-me", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAlertListPassesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	alerts := &fakeAlerts{}
	router := gin.New()
	router.GET("/alerts", NewAlertHandler(alerts).List)

	rr := serve(router, http.MethodGet, "/alerts?filter=all&user_id=6f1c1f7e-4c69-4f6a-9a51-6a1b9f0e2c11&limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, domain.AlertStatusAll, alerts.filter.Status)
	require.Equal(t, "6f1c1f7e-4c69-4f6a-9a51-6a1b9f0e2c11", alerts.filter.AccountID)
	require.Equal(t, 10, alerts.filter.Limit)

	resp := decode[AlertListResponse](t, rr)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "acc-9", resp.Alerts[0].UserID)

	rr = serve(router, http.MethodGet, "/alerts?filter=bogus", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[middleware.ErrorResponse](t, rr).Fields, "filter")
}

func TestAlertResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	alerts := &fakeAlerts{}
	router := gin.New()
	router.PATCH("/alerts/:id/resolve", asPrincipal(domain.Principal{AccountID: "sec-1", Role: domain.RoleSecurity}), NewAlertHandler(alerts).Resolve)

	rr := serve(router, http.MethodPatch, "/alerts/al-1/resolve", `{"notes":"false positive"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "sec-1", alerts.resolvedBy)
	require.NotNil(t, alerts.notes)
	require.Equal(t, "false positive", *alerts.notes)

	rr = serve(router, http.MethodPatch, "/alerts/al-1/resolve", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, alerts.notes)

	alerts.resolveErr = usecase.ErrAlertNotFound
	rr = serve(router, http.MethodPatch, "/alerts/missing/resolve", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, middleware.CodeNotFound, decode[middleware.ErrorResponse](t, rr).Code)
}

func TestBiometricsEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	samples := &fakeSamples{}
	h := NewBiometricsHandler(samples, 50)

	router := gin.New()
	authed := router.Group("/", asPrincipal(domain.Principal{AccountID: "acc-3"}))
	authed.GET("/history", h.History)
	authed.GET("/anomalies", h.Anomalies)
	router.GET("/timeline", h.Timeline)
	router.GET("/recent", h.Recent)

	rr := serve(router, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "acc-3", samples.scope)
	require.Equal(t, 50, samples.limit)
	history := decode[HistoryResponse](t, rr)
	require.Equal(t, 2, history.Count)
	require.NotNil(t, history.Samples[0].AnomalyScore)
	require.Equal(t, 42.0, *history.Samples[0].AnomalyScore)
	require.Nil(t, history.Samples[1].AnomalyScore)

	rr = serve(router, http.MethodGet, "/anomalies", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "acc-3", samples.scope)
	require.Len(t, decode[TimelineResponse](t, rr).Timeline, 1)

	rr = serve(router, http.MethodGet, "/timeline", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, samples.scope)

	rr = serve(router, http.MethodGet, "/recent", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 50, samples.limit)
	recent := decode[RecentSamplesResponse](t, rr)
	require.Equal(t, 1, recent.Count)
	require.Equal(t, "s-7", recent.Samples[0].ID)
	require.Equal(t, SampleOwner{ID: "acc-9", Name: "Grace", Email: "grace@uni.edu"}, recent.Samples[0].User)

	samples.listErr = errors.New("db down")
	rr = serve(router, http.MethodGet, "/recent", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	rr = serve(router, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(
		WithReadinessCheck("postgres", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)
	router := gin.New()
	router.GET("/healthz", h.Status)
	router.GET("/readyz", h.Readiness)

	rr := serve(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decode[ReadinessResponse](t, rr)
	require.Equal(t, "ok", resp.Checks["postgres"])
	require.Equal(t, "connection refused", resp.Checks["redis"])
}
