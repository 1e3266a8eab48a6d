package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	authrepository "github.com/smallbiznis/nanolite/internal/auth/repository"
	authservice "github.com/smallbiznis/nanolite/internal/auth/service"
	"github.com/smallbiznis/nanolite/internal/auth/session"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/claim/claimtest"
	"github.com/smallbiznis/nanolite/internal/config"
	dashboardservice "github.com/smallbiznis/nanolite/internal/dashboard/service"
	garansidomain "github.com/smallbiznis/nanolite/internal/garansi/domain"
	garansirepository "github.com/smallbiznis/nanolite/internal/garansi/repository"
	garansiservice "github.com/smallbiznis/nanolite/internal/garansi/service"
	orderdomain "github.com/smallbiznis/nanolite/internal/order/domain"
	orderrepository "github.com/smallbiznis/nanolite/internal/order/repository"
	orderservice "github.com/smallbiznis/nanolite/internal/order/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "rahasia-123"

type testServer struct {
	h      *claimtest.Harness
	engine *gin.Engine
	auth   authdomain.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := claimtest.New(t, &garansidomain.Garansi{}, &orderdomain.Order{}, &authdomain.Session{})

	users, sessions := authrepository.New(h.DB)
	authSvc := authservice.New(authservice.Params{
		Log:         h.Log,
		Repo:        users,
		SessionRepo: sessions,
		GenID:       h.GenID,
		Clock:       h.Clock,
	})
	for _, u := range []authdomain.User{claimtest.Admin, claimtest.Sales} {
		require.NoError(t, authSvc.ChangePassword(t.Context(), u.ID, 0, testPassword))
	}

	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	enforcer, err := authorization.NewEnforcer(h.DB, holder)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: h.DB, Log: h.Log, Enforcer: enforcer, Access: holder})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      config.Config{},
		Log:      h.Log,
		Authsvc:  authSvc,
		Sessions: session.NewManager(config.Config{}, h.Clock),
		AuthzSvc: authz,
		AuditSvc: h.Audit,
		Refrepo:  h.RefRepo,
		Stages:   h.Stages,
		Store:    h.Store,
		GaransiSvc: garansiservice.New(garansiservice.Params{
			DB: h.DB, Log: h.Log, GenID: h.GenID, Repo: garansirepository.Provide(), RefRepo: h.RefRepo,
			Stages: h.Stages, Artifacts: h.Artifacts, Store: h.Store,
		}),
		OrderSvc: orderservice.New(orderservice.Params{
			DB: h.DB, Log: h.Log, GenID: h.GenID, Repo: orderrepository.Provide(), RefRepo: h.RefRepo,
			Stages: h.Stages, Artifacts: h.Artifacts, Store: h.Store,
		}),
		DashboardSvc: dashboardservice.New(dashboardservice.Params{DB: h.DB, Log: h.Log, Stages: h.Stages}),
	})
	registerRoutes(srv)

	return &testServer{h: h, engine: engine, auth: authSvc}
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (ts *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Errors []struct {
			Field string `json:"field"`
			Code  string `json:"code"`
		} `json:"errors"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func garansiBody() map[string]any {
	return map[string]any{
		"department_id":        claimtest.DepartmentID.String(),
		"employee_id":          claimtest.EmployeeID.String(),
		"customer_id":          claimtest.CustomerID.String(),
		"customer_category_id": claimtest.CustomerCategoryID.String(),
		"phone":                "08123456789",
		"address":              "Jl. Merdeka 1",
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  claimtest.ProductID.String(),
			"color":       0,
			"quantity":    1,
		}},
		"purchase_date": "2025-04-01",
		"claim_date":    "2025-04-20",
		"reason":        "Lampu berkedip",
	}
}

func TestRequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/garansi", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error.Type)

	rec = ts.do(t, http.MethodGet, "/api/garansi", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSetsCookieAndAudits(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": claimtest.Sales.Email, "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": claimtest.Sales.Email, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), session.DefaultCookieName+"=")
	assert.Contains(t, ts.h.AuditActions(t), auditdomain.ActionUserLogin)

	token := ts.login(t, claimtest.Sales.Email)
	rec = ts.do(t, http.MethodGet, "/api/garansi/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Data userProfile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, claimtest.Sales.ID.String(), me.Data.ID)
	require.NotNil(t, me.Data.EmployeeID)
	assert.Equal(t, claimtest.EmployeeID.String(), *me.Data.EmployeeID)
}

func TestLogoutRevokesSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Admin.Email)

	rec := ts.do(t, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGaransiCreateListAndGet(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Sales.Email)

	rec := ts.do(t, http.MethodPost, "/api/garansi", token, garansiBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data garansidomain.Resource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Data.Code)

	rec = ts.do(t, http.MethodGet, "/api/garansi?filter[code]="+created.Data.Code+"&per_page=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Data []garansidomain.Resource `json:"data"`
		Meta struct {
			CurrentPage int   `json:"current_page"`
			PerPage     int   `json:"per_page"`
			Total       int64 `json:"total"`
			LastPage    int   `json:"last_page"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, int64(1), list.Meta.Total)
	assert.Equal(t, 5, list.Meta.PerPage)

	rec = ts.do(t, http.MethodGet, "/api/garansi/"+created.Data.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/garansi/"+created.Data.ID+"/pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".pdf")

	rec = ts.do(t, http.MethodGet, "/api/garansi/"+created.Data.ID+"/zip", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGaransiValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Admin.Email)

	body := garansiBody()
	delete(body, "reason")
	rec := ts.do(t, http.MethodPost, "/api/garansi", token, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decodeError(t, rec)
	assert.Equal(t, "validation_error", resp.Error.Type)
	fields := make([]string, 0, len(resp.Error.Errors))
	for _, e := range resp.Error.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "reason")

	rec = ts.do(t, http.MethodGet, "/api/garansi?sort=reason", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "sort", decodeError(t, rec).Error.Errors[0].Field)

	rec = ts.do(t, http.MethodGet, "/api/garansi?filter[claim_date_from]=20-04-2025", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "filter.claim_date_from", decodeError(t, rec).Error.Errors[0].Field)
}

func TestSalesCannotChangeStatus(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Sales.Email)

	rec := ts.do(t, http.MethodPost, "/api/garansi", token, garansiBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data garansidomain.Resource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = ts.do(t, http.MethodPut, "/api/garansi/"+created.Data.ID, token, map[string]any{"submission_status": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "forbidden", decodeError(t, rec).Error.Type)
}

func TestCustomerLookupsRequireParams(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Admin.Email)

	rec := ts.do(t, http.MethodGet, "/api/garansi/customers?employee_id="+claimtest.EmployeeID.String(), token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, decodeError(t, rec).Error.Errors, 2)

	rec = ts.do(t, http.MethodGet, "/api/garansi/customer-categories", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/garansi/customers?department_id="+claimtest.DepartmentID.String()+
		"&employee_id="+claimtest.EmployeeID.String()+"&category_id="+claimtest.CustomerCategoryID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var customers struct {
		Data []customerOption `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &customers))
	require.Len(t, customers.Data, 1)
	assert.Equal(t, "Toko Terang", customers.Data[0].Name)
}

func TestOrderExportStreamsSpreadsheet(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, claimtest.Admin.Email)

	rec := ts.do(t, http.MethodGet, "/api/orders/export?has_discount=maybe", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "filter.has_discount", decodeError(t, rec).Error.Errors[0].Field)

	rec = ts.do(t, http.MethodGet, "/api/orders/export?filter[payment_status]=unpaid", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Orders-")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestAuditLogsAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, claimtest.Admin.Email)
	sales := ts.login(t, claimtest.Sales.Email)

	rec := ts.do(t, http.MethodGet, "/api/audit-logs", sales, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/audit-logs?action="+auditdomain.ActionUserLogin, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var logs struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.NotEmpty(t, logs.Data)

	rec = ts.do(t, http.MethodGet, "/api/dashboard/overview", sales, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "pending_orders")
}

func TestUnknownRouteIsJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Type)
}
