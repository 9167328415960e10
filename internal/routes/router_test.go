package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/controllers"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

// newTestRouter mounts controllers without services; every request in these
// tests is answered by the router or middleware before a handler needs one.
func newTestRouter() http.Handler {
	return NewRouter(Controllers{
		Auth:      controllers.NewAuthController(nil),
		Property:  controllers.NewPropertyController(nil),
		Tenant:    controllers.NewTenantController(nil),
		Bill:      controllers.NewBillController(nil),
		Payment:   controllers.NewPaymentController(nil, nil),
		Complaint: controllers.NewComplaintController(nil),
		SMS:       controllers.NewSMSController(nil),
		Health:    controllers.NewHealthController(okPinger{}, time.Now()),
	}, testSecret)
}

func bearer(t *testing.T, role models.Role) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  constants.TokenIssuer,
		"sub":  uuid.NewString(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	h := newTestRouter()

	require.Equal(t, http.StatusOK, serve(h, http.MethodGet, Health, "", "").Code)

	// Undecodable callbacks are acknowledged without touching the gateway.
	rec := serve(h, http.MethodPost, MpesaCallback, "", "garbage")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ResultCode":0`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter()
	id := uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, Properties},
		{http.MethodGet, "/api/properties/" + id},
		{http.MethodGet, Bills},
		{http.MethodGet, BillsStats},
		{http.MethodPost, "/api/bills/" + id + "/payments"},
		{http.MethodGet, Payments},
		{http.MethodGet, AuthMe},
		{http.MethodGet, Complaints},
	} {
		rec := serve(h, tc.method, tc.path, "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestManagerRoutesRejectTenants(t *testing.T) {
	h := newTestRouter()
	tenant := bearer(t, models.RoleTenant)
	id := uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, Properties},
		{http.MethodPut, "/api/properties/" + id},
		{http.MethodPost, "/api/properties/" + id + "/floors"},
		{http.MethodPut, "/api/properties/" + id + "/assign-tenant"},
		{http.MethodPost, Tenants},
		{http.MethodGet, Tenants},
		{http.MethodDelete, TenantsAll},
		{http.MethodPost, Bills},
		{http.MethodPut, "/api/complaints/" + id},
		{http.MethodPost, SMSSend},
	} {
		rec := serve(h, tc.method, tc.path, tenant, "{}")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
		require.Contains(t, rec.Body.String(), `"code":"`+utils.ErrCodeNotPermitted+`"`, "%s %s", tc.method, tc.path)
	}
}

func TestManagerRoutesAdmitLandlords(t *testing.T) {
	h := newTestRouter()

	// Reaches the handler, which rejects the empty body before any service call.
	rec := serve(h, http.MethodPost, Properties, bearer(t, models.RoleLandlord), "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, Properties, bearer(t, models.RoleAdmin), "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageRoutesOnlyMountedWithController(t *testing.T) {
	h := newTestRouter()
	rec := serve(h, http.MethodGet, Messages, bearer(t, models.RoleLandlord), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
