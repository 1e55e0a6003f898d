package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/finlink-next/internal/config"
	"github.com/finlink-next/internal/models"
	"github.com/finlink-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const routerTestSecret = "router-secret"
const routerTestWebhookToken = "hook-secret"

type routerTestEnv struct {
	engine *gin.Engine
	db     *gorm.DB
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterTest(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	cfg := &config.Config{
		JWT: config.JWTConfig{SecretKey: routerTestSecret},
		Tracking: config.TrackingConfig{
			NodeID:                   1,
			DefaultAttributionWindow: 30,
			ExpiryDays:               30,
			WebhookToken:             routerTestWebhookToken,
		},
		Fraud: config.FraudConfig{
			IPClickThreshold:         10,
			IPLookbackHours:          24,
			FastConversionSeconds:    30,
			BotUserAgentPatterns:     []string{"bot"},
			FraudulentScoreThreshold: 50,
		},
		Analytics: config.AnalyticsConfig{MaxRangeDays: 366, TopProductsLimit: 10},
	}
	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	t.Cleanup(container.Close)
	return &routerTestEnv{engine: SetupRouter(cfg, container), db: db}
}

func (env *routerTestEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0)")
	req.Header.Set("Referer", "https://blog.example.com/best-loans")
	req.RemoteAddr = "203.0.113.7:4321"
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func adminHeaders(t *testing.T, roles []string, isSuper bool) map[string]string {
	t.Helper()
	token := signAdminToken(t, routerTestSecret, AdminClaims{
		Roles:            roles,
		IsSuper:          isSuper,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops-1"},
	})
	return map[string]string{"Authorization": "Bearer " + token}
}

func createRouterTestPartnerAndProduct(t *testing.T, env *routerTestEnv) (uint, uint) {
	t.Helper()
	manager := adminHeaders(t, []string{"partner_manager"}, false)
	w := env.do(t, http.MethodPost, "/api/v1/admin/partners", map[string]interface{}{
		"name":                    "Lender A",
		"type":                    "loan",
		"commission_type":         "fixed",
		"commission_amount":       500,
		"currency":                "INR",
		"attribution_window_days": 30,
	}, manager)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("create partner failed: %s", w.Body.String())
	}
	var partner struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &partner); err != nil || partner.ID == 0 {
		t.Fatalf("decode partner failed: %v %s", err, string(resp.Data))
	}

	w = env.do(t, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"partner_id":      partner.ID,
		"name":            "Personal Loan",
		"type":            "personal_loan",
		"application_url": "https://apply.example.com/loan?lang=en",
	}, manager)
	resp = decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("create product failed: %s", w.Body.String())
	}
	var product struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &product); err != nil || product.ID == 0 {
		t.Fatalf("decode product failed: %v %s", err, string(resp.Data))
	}
	return partner.ID, product.ID
}

func TestHealthz(t *testing.T) {
	env := setupRouterTest(t)
	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("healthz status_code want 0 got %d", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Data), `"database":"ok"`) || !strings.Contains(string(resp.Data), `"redis":"disabled"`) {
		t.Fatalf("healthz should report database ok, got %s", string(resp.Data))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupRouterTest(t)
	w := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "finlink_") {
		t.Fatalf("metrics output should contain finlink namespace")
	}
}

func TestTrackingLinkAndRedirect(t *testing.T) {
	env := setupRouterTest(t)
	partnerID, productID := createRouterTestPartnerAndProduct(t, env)

	w := env.do(t, http.MethodPost, "/api/v1/tracking/links", map[string]interface{}{
		"partner_id":   partnerID,
		"product_id":   productID,
		"utm_source":   "blog",
		"utm_campaign": "spring",
	}, nil)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("generate link failed: %s", w.Body.String())
	}
	var link struct {
		TrackingID  string `json:"tracking_id"`
		TrackingURL string `json:"tracking_url"`
	}
	if err := json.Unmarshal(resp.Data, &link); err != nil {
		t.Fatalf("decode link failed: %v", err)
	}
	parsed, err := url.Parse(link.TrackingURL)
	if err != nil {
		t.Fatalf("tracking url invalid: %v", err)
	}
	query := parsed.Query()
	if query.Get("ref") != link.TrackingID || query.Get("lang") != "en" || query.Get("utm_source") != "blog" {
		t.Fatalf("unexpected tracking url: %s", link.TrackingURL)
	}
	if query.Has("utm_medium") {
		t.Fatalf("empty utm_medium should be omitted: %s", link.TrackingURL)
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tracking/go/%d/%d?utm_source=email", partnerID, productID), nil, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("redirect status want 302 got %d body=%s", w.Code, w.Body.String())
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "https://apply.example.com/loan?") || !strings.Contains(location, "ref=") {
		t.Fatalf("unexpected redirect location: %s", location)
	}

	var count int64
	if err := env.db.Model(&models.Click{}).Count(&count).Error; err != nil {
		t.Fatalf("count clicks failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("clicks want 2 got %d", count)
	}
}

func TestTrackClickErrors(t *testing.T) {
	env := setupRouterTest(t)
	partnerID, productID := createRouterTestPartnerAndProduct(t, env)

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{name: "missing partner id", body: map[string]interface{}{"product_id": productID}, want: 400},
		{name: "unknown partner", body: map[string]interface{}{"partner_id": partnerID + 100, "product_id": productID}, want: 404},
		{name: "unknown product", body: map[string]interface{}{"partner_id": partnerID, "product_id": productID + 100}, want: 404},
		{name: "ok", body: map[string]interface{}{"partner_id": partnerID, "product_id": productID}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/tracking/clicks", tc.body, nil)
			if got := decodeEnvelope(t, w).StatusCode; got != tc.want {
				t.Fatalf("status_code want %d got %d body=%s", tc.want, got, w.Body.String())
			}
		})
	}
}

func TestConversionWebhook(t *testing.T) {
	env := setupRouterTest(t)
	partnerID, productID := createRouterTestPartnerAndProduct(t, env)

	w := env.do(t, http.MethodPost, "/api/v1/tracking/clicks", map[string]interface{}{
		"partner_id": partnerID,
		"product_id": productID,
	}, nil)
	var click struct {
		TrackingID string `json:"tracking_id"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &click); err != nil || click.TrackingID == "" {
		t.Fatalf("decode click failed: %v %s", err, w.Body.String())
	}

	body := map[string]interface{}{
		"tracking_id":     click.TrackingID,
		"conversion_type": "application_approved",
		"metadata":        map[string]interface{}{"application_id": "APP-1"},
	}
	w = env.do(t, http.MethodPost, "/api/v1/tracking/conversions", body, nil)
	if got := decodeEnvelope(t, w).StatusCode; got != 401 {
		t.Fatalf("missing webhook token want 401 got %d", got)
	}

	token := map[string]string{webhookHeaderForTest: routerTestWebhookToken}
	w = env.do(t, http.MethodPost, "/api/v1/tracking/conversions", body, token)
	resp := decodeEnvelope(t, w)
	if resp.StatusCode != 0 || !strings.Contains(string(resp.Data), `"success":true`) {
		t.Fatalf("conversion failed: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/tracking/conversions", body, token)
	if got := decodeEnvelope(t, w).StatusCode; got != 404 {
		t.Fatalf("second conversion want 404 got %d", got)
	}

	w = env.do(t, http.MethodPost, "/api/v1/tracking/conversions", map[string]interface{}{
		"tracking_id":     "missing",
		"conversion_type": "application_submitted",
	}, token)
	if got := decodeEnvelope(t, w).StatusCode; got != 404 {
		t.Fatalf("unknown tracking id want 404 got %d", got)
	}

	analyst := adminHeaders(t, []string{"analyst"}, false)
	w = env.do(t, http.MethodGet, "/api/v1/admin/clicks/"+click.TrackingID, nil, analyst)
	resp = decodeEnvelope(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("get click failed: %s", w.Body.String())
	}
	var view struct {
		Converted        bool   `json:"converted"`
		CommissionAmount string `json:"commission_amount"`
		Status           string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode click view failed: %v", err)
	}
	if !view.Converted || view.CommissionAmount != "250.00" || view.Status != "converted" {
		t.Fatalf("unexpected click view: %+v", view)
	}
}

const webhookHeaderForTest = "X-Webhook-Token"

func TestAdminRBAC(t *testing.T) {
	env := setupRouterTest(t)
	partnerID, productID := createRouterTestPartnerAndProduct(t, env)
	w := env.do(t, http.MethodPost, "/api/v1/tracking/clicks", map[string]interface{}{
		"partner_id": partnerID,
		"product_id": productID,
	}, nil)
	var click struct {
		TrackingID string `json:"tracking_id"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &click); err != nil {
		t.Fatalf("decode click failed: %v", err)
	}

	analyst := adminHeaders(t, []string{"analyst"}, false)
	reviewer := adminHeaders(t, []string{"fraud_reviewer"}, false)
	super := adminHeaders(t, nil, true)
	nobody := adminHeaders(t, []string{"unknown"}, false)

	cases := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		headers map[string]string
		want    int
	}{
		{name: "anonymous", method: http.MethodGet, path: "/api/v1/admin/clicks", want: 401},
		{name: "analyst lists clicks", method: http.MethodGet, path: "/api/v1/admin/clicks", headers: analyst, want: 0},
		{name: "analyst reads summary", method: http.MethodGet, path: "/api/v1/admin/analytics/summary?range=7d", headers: analyst, want: 0},
		{name: "analyst bad range", method: http.MethodGet, path: "/api/v1/admin/analytics/summary?range=custom", headers: analyst, want: 400},
		{name: "analyst cannot check fraud", method: http.MethodGet, path: "/api/v1/admin/clicks/" + click.TrackingID + "/fraud", headers: analyst, want: 403},
		{name: "reviewer checks fraud", method: http.MethodGet, path: "/api/v1/admin/clicks/" + click.TrackingID + "/fraud", headers: reviewer, want: 0},
		{name: "reviewer unknown click", method: http.MethodGet, path: "/api/v1/admin/clicks/missing/fraud", headers: reviewer, want: 404},
		{name: "analyst cannot create partner", method: http.MethodPost, path: "/api/v1/admin/partners", body: map[string]interface{}{"name": "X", "type": "loan", "commission_type": "fixed"}, headers: analyst, want: 403},
		{name: "unknown role forbidden", method: http.MethodGet, path: "/api/v1/admin/clicks", headers: nobody, want: 403},
		{name: "authz me without rbac", method: http.MethodGet, path: "/api/v1/admin/authz/me", headers: nobody, want: 0},
		{name: "super lists roles", method: http.MethodGet, path: "/api/v1/admin/authz/roles", headers: super, want: 0},
		{name: "analyst cannot list roles", method: http.MethodGet, path: "/api/v1/admin/authz/roles", headers: analyst, want: 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, tc.method, tc.path, tc.body, tc.headers)
			if got := decodeEnvelope(t, w).StatusCode; got != tc.want {
				t.Fatalf("status_code want %d got %d body=%s", tc.want, got, w.Body.String())
			}
		})
	}
}

func TestAdminPartnerValidation(t *testing.T) {
	env := setupRouterTest(t)
	manager := adminHeaders(t, []string{"partner_manager"}, false)

	w := env.do(t, http.MethodPost, "/api/v1/admin/partners", map[string]interface{}{
		"name":                    "Broker B",
		"type":                    "broker",
		"commission_type":         "percentage",
		"commission_amount":       150,
		"attribution_window_days": 30,
	}, manager)
	if got := decodeEnvelope(t, w).StatusCode; got != 400 {
		t.Fatalf("percentage above 100 want 400 got %d", got)
	}

	w = env.do(t, http.MethodPut, "/api/v1/admin/partners/999", map[string]interface{}{
		"name":                    "Broker B",
		"type":                    "broker",
		"commission_type":         "fixed",
		"attribution_window_days": 30,
	}, manager)
	if got := decodeEnvelope(t, w).StatusCode; got != 404 {
		t.Fatalf("update missing partner want 404 got %d", got)
	}

	w = env.do(t, http.MethodPut, "/api/v1/admin/partners/abc", map[string]interface{}{}, manager)
	if got := decodeEnvelope(t, w).StatusCode; got != 400 {
		t.Fatalf("invalid id want 400 got %d", got)
	}
}
