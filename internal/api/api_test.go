package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/locomotion-ai/locomotion/internal/auth"
	"github.com/locomotion-ai/locomotion/internal/profile"
	"github.com/locomotion-ai/locomotion/internal/storage"
)

// stubVerifier maps bearer tokens to identities for handler tests.
type stubVerifier struct {
	identities map[string]*auth.AccountIdentity
	err        error
}

func (s *stubVerifier) Verify(_ context.Context, token string) (*auth.AccountIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	if id, ok := s.identities[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

type testEnv struct {
	store    *storage.SQLiteStore
	verifier *stubVerifier
	handler  http.Handler
	tenantID string // the tenant the technician can access
	otherID  string // a tenant the technician cannot access
}

func newTestEnv(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, storage.Seed(ctx, store, false))

	for _, tn := range []*storage.Tenant{
		{ID: "t-arl", Name: "Arlington", Code: "ARL", Type: "shop", IsActive: true},
		{ID: "t-dal", Name: "Dallas", Code: "DAL", Type: "parts", IsActive: true},
	} {
		require.NoError(t, store.CreateTenant(ctx, tn))
	}

	ownerRole, err := store.GetRoleByName(ctx, "owner")
	require.NoError(t, err)
	techRole, err := store.GetRoleByName(ctx, "technician")
	require.NoError(t, err)

	require.NoError(t, store.CreateUser(ctx, &storage.User{
		ID: "acct-owner", Email: "owner@example.com", RoleID: ownerRole.ID, IsActive: true,
	}))
	require.NoError(t, store.CreateUser(ctx, &storage.User{
		ID: "acct-tech", Email: "tech@example.com", RoleID: techRole.ID,
		TenantAccess: []string{"t-arl"}, IsActive: true,
	}))

	verifier := &stubVerifier{identities: map[string]*auth.AccountIdentity{
		"tok-owner": {ID: "acct-owner", Email: "owner@example.com"},
		"tok-tech":  {ID: "acct-tech", Email: "tech@example.com"},
		"tok-ghost": {ID: "acct-ghost", Email: "ghost@example.com"},
	}}

	resolver := profile.NewResolver(store, nil)
	profiles, err := profile.NewCache(resolver, 64, time.Minute)
	require.NoError(t, err)

	srv := NewServer(store, verifier, profiles, opts...)
	return &testEnv{
		store:    store,
		verifier: verifier,
		handler:  srv.Router(),
		tenantID: "t-arl",
		otherID:  "t-dal",
	}
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestProfileEndpoint_OK(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-owner", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Success bool            `json:"success"`
		Profile profile.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "owner", body.Profile.Role.Name)
	assert.Equal(t, "owner@example.com", body.Profile.Email)
	// Owner's empty stored access expands to every active tenant.
	assert.ElementsMatch(t, []string{"t-arl", "t-dal"}, body.Profile.TenantAccess)
}

func TestProfileEndpoint_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/auth/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, resp.Body.String())
}

func TestProfileEndpoint_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-bogus", "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, resp.Body.String())
}

func TestProfileEndpoint_Unprovisioned(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-ghost", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
		UserID  string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "User profile not found", body.Error)
	assert.NotEmpty(t, body.Details)
	assert.Equal(t, "acct-ghost", body.UserID)
}

func TestProfileEndpoint_VerifierOutage(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.err = errors.New("auth service unreachable")

	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-owner", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	// An outage is never an auth failure: no 401, no empty error body.
	assert.Contains(t, resp.Body.String(), `"error"`)
}

func TestHomeRoute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/auth/home", "tok-tech", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"route":"/dashboard/lift-worker"}`, resp.Body.String())
}

func TestDashboard_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/dashboard/owner", "", "")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/login?redirectTo=%2Fdashboard%2Fowner", resp.Header().Get("Location"))
}

func TestDashboard_WrongRoleRedirectsHome(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/dashboard/owner", "tok-tech", "")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/dashboard/lift-worker", resp.Header().Get("Location"))
}

func TestDashboard_AllowedViaCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/lift-worker", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "tok-tech"})
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)
}

func TestDashboard_VerifierOutageIs500NotRedirect(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.err = errors.New("auth service unreachable")

	resp := env.do(http.MethodGet, "/dashboard/owner", "tok-owner", "")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Empty(t, resp.Header().Get("Location"))
}

func TestSignIn_SanitizesRedirect(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/login?redirectTo=https%3A%2F%2Fevil.example.com%2F", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"redirectTo":"/dashboard"}`, resp.Body.String())
}

func TestSignIn_SignedInVisitorBounced(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/login", "tok-owner", "")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/dashboard/owner", resp.Header().Get("Location"))
}

func TestSignIn_UnmappedRoleStaysOnSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A role outside the dashboard route table has no home to bounce to.
	require.NoError(t, env.store.CreateRole(ctx, &storage.Role{
		ID: "r-aud", Name: "auditor", Permissions: []string{"read"},
	}))
	require.NoError(t, env.store.CreateUser(ctx, &storage.User{
		ID: "acct-aud", Email: "aud@example.com", RoleID: "r-aud",
		TenantAccess: []string{"t-arl"}, IsActive: true,
	}))
	env.verifier.identities["tok-aud"] = &auth.AccountIdentity{ID: "acct-aud", Email: "aud@example.com"}

	resp := env.do(http.MethodGet, "/login", "tok-aud", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Location"))
	assert.JSONEq(t, `{"redirectTo":"/dashboard"}`, resp.Body.String())
}

func TestSignIn_AdvertisesProviderEndpoints(t *testing.T) {
	env := newTestEnv(t, WithAuthEndpoints(oauth2.Endpoint{
		AuthURL:  "https://auth.example.com/authorize",
		TokenURL: "https://auth.example.com/token",
	}))

	resp := env.do(http.MethodGet, "/login", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{
		"redirectTo": "/dashboard",
		"authorizationUrl": "https://auth.example.com/authorize",
		"tokenUrl": "https://auth.example.com/token"
	}`, resp.Body.String())
}

func TestAdminUsers_RequiresWildcard(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/admin/users", "tok-tech", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/api/admin/users", "tok-owner", "")
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestAdminUsers_ProvisionThenResolve(t *testing.T) {
	env := newTestEnv(t)

	// Ghost account starts unprovisioned.
	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-ghost", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodPost, "/api/admin/users", "tok-owner",
		`{"id":"acct-ghost","email":"ghost@example.com","full_name":"Gabe Ghost","role":"front_desk","tenant_access":["t-arl"]}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = env.do(http.MethodGet, "/api/auth/profile", "tok-ghost", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"front_desk"`)
}

func TestAdminUsers_UpdateInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)

	// Warm the cache.
	resp := env.do(http.MethodGet, "/api/auth/profile", "tok-tech", "")
	require.Equal(t, http.StatusOK, resp.Code)

	// Deactivate; the change must bite immediately, not after cache TTL.
	resp = env.do(http.MethodPatch, "/api/admin/users/acct-tech", "tok-owner",
		`{"is_active":false}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.do(http.MethodGet, "/api/auth/profile", "tok-tech", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUnprovisionedOnBusinessRouteIs403(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/customers", "tok-ghost", "")
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestTenants_ScopedToAccess(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/tenants", "tok-tech", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Tenants []TenantDTO `json:"tenants"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Tenants, 1)
	assert.Equal(t, "t-arl", body.Tenants[0].ID)
}

func TestCustomers_CrossTenantForbidden(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/customers", "tok-tech",
		`{"tenant_id":"t-dal","last_name":"Smith"}`)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodPost, "/api/customers", "tok-tech",
		`{"tenant_id":"t-arl","last_name":"Smith"}`)
	assert.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func TestWorkOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/customers", "tok-tech",
		`{"tenant_id":"t-arl","last_name":"Smith"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	var cust struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cust))

	resp = env.do(http.MethodPost, "/api/vehicles", "tok-tech",
		`{"customer_id":"`+cust.ID+`","make":"Ford","model":"F-150","year":2019}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var veh struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &veh))

	resp = env.do(http.MethodPost, "/api/work-orders", "tok-tech",
		`{"tenant_id":"t-arl","customer_id":"`+cust.ID+`","vehicle_id":"`+veh.ID+`","description":"brake job","priority":"high"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var wo struct {
		ID       string `json:"id"`
		RONumber string `json:"ro_number"`
		Status   string `json:"status"`
		Creator  string `json:"created_by"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &wo))
	assert.Equal(t, "open", wo.Status)
	assert.True(t, strings.HasPrefix(wo.RONumber, "RO-"), wo.RONumber)
	assert.Equal(t, "acct-tech", wo.Creator)

	resp = env.do(http.MethodPatch, "/api/work-orders/"+wo.ID, "tok-tech",
		`{"status":"completed","total_labor_cost":250,"total_parts_cost":100,"assigned_technician":"acct-tech"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"total_cost":350`)

	// Explicit zeros and empty strings are writes, not absent fields: a
	// misquoted labor cost can be reset and a technician unassigned.
	resp = env.do(http.MethodPatch, "/api/work-orders/"+wo.ID, "tok-tech",
		`{"total_labor_cost":0,"assigned_technician":""}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var patched WorkOrderDTO
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &patched))
	assert.Zero(t, patched.TotalLaborCost)
	assert.Equal(t, float64(100), patched.TotalCost)
	assert.Empty(t, patched.AssignedTechnician)
	// An absent field stays untouched.
	assert.Equal(t, "completed", patched.Status)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}
