package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tvms/models"
	"tvms/pkg/metrics"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var (
	testServerOnce sync.Once
	testServer     *gin.Engine
	testServerDB   *gorm.DB
	testServerErr  error
)

// setupTestServer builds the router once; the metrics collectors register
// with the default prometheus registry and must not be created twice.
func setupTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	testServerOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		_ = os.Setenv("UPLOAD_BASE", os.TempDir())
		db, err := initDB(os.Getenv("DB_DSN"))
		if err != nil {
			testServerErr = err
			return
		}
		a := newApp(db, []byte("test-secret"), metrics.New())
		r := gin.Default()
		a.setupRoutes(r)
		testServer = r
		testServerDB = db
	})
	if testServerErr != nil {
		t.Fatalf("init test server: %v", testServerErr)
	}
	return testServer
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Message string         `json:"message"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %s: %v", resp.Body.String(), err)
	}
	if !envelope.Success {
		t.Fatalf("request failed: %s", envelope.Message)
	}
	return envelope.Data
}

func decodeList(t *testing.T, resp *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var envelope struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %s: %v", resp.Body.String(), err)
	}
	return envelope.Data
}

// the flow commits real rows; remove them afterwards so repeated runs start
// from a clean store
func cleanupViolation(t *testing.T, id float64) {
	t.Cleanup(func() {
		testServerDB.Where("violation_id = ?", uint(id)).Delete(&models.Payment{})
		testServerDB.Delete(&models.Violation{}, uint(id))
	})
}

func cleanupUser(t *testing.T, id uint) {
	t.Cleanup(func() {
		testServerDB.Delete(&models.User{}, id)
	})
}

func loginAs(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	data := decodeData(t, resp)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", data)
	}
	return token
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)
	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("webuser%d", suffix)

	// 1. Register a citizen
	regBody, _ := json.Marshal(map[string]string{
		"username":  username,
		"password":  "pass123",
		"full_name": "Web User",
		"email":     fmt.Sprintf("webuser%d@example.com", suffix),
		"phone":     "9876543210",
	})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	citizenData := decodeData(t, resp)
	citizenID := uint(citizenData["user_id"].(float64))
	cleanupUser(t, citizenID)

	// 2. Login as citizen and as the seeded admin
	citizenTok := loginAs(t, r, username, "pass123")
	adminTok := loginAs(t, r, "admin", "admin123")

	// 3. Wrong password is a 401 and never a 500
	badBody, _ := json.Marshal(map[string]string{"username": username, "password": "nope"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(badBody), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password got %d", resp.Code)
	}

	// 4. Pick a seeded violation type and area
	types := decodeList(t, performRequest(r, http.MethodGet, "/api/violation-types", nil, adminTok, ""))
	areas := decodeList(t, performRequest(r, http.MethodGet, "/api/areas", nil, adminTok, ""))
	if len(types) == 0 || len(areas) == 0 {
		t.Fatal("seed data missing: no violation types or areas")
	}
	typeID := types[0]["type_id"].(float64)
	areaID := areas[0]["area_id"].(float64)

	// 5. Citizens cannot register violations
	vBody, _ := json.Marshal(map[string]any{
		"vehicle_number": "KA01AB1234",
		"user_id":        citizenID,
		"type_id":        typeID,
		"area_id":        areaID,
		"fine_amount":    500,
		"notes":          "full flow",
	})
	resp = performRequest(r, http.MethodPost, "/api/violations", bytes.NewBuffer(vBody), citizenTok, "application/json")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen creating violation got %d", resp.Code)
	}

	// 6. Admin registers the violation
	resp = performRequest(r, http.MethodPost, "/api/violations", bytes.NewBuffer(vBody), adminTok, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create violation failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	violationID := decodeData(t, resp)["violation_id"].(float64)
	cleanupViolation(t, violationID)

	// 7. Citizen sees it in their own list and stats
	resp = performRequest(r, http.MethodGet, "/api/violations", nil, citizenTok, "")
	if resp.Code != 200 {
		t.Fatalf("list violations failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/api/stats", nil, citizenTok, "")
	if resp.Code != 200 {
		t.Fatalf("stats failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 8. Citizen pays the fine
	pBody, _ := json.Marshal(map[string]any{
		"violation_id": violationID,
		"amount":       500,
		"method":       "online",
	})
	resp = performRequest(r, http.MethodPost, "/api/payments", bytes.NewBuffer(pBody), citizenTok, "application/json")
	if resp.Code != 200 {
		t.Fatalf("process payment failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	payment := decodeData(t, resp)
	paymentID := payment["payment_id"].(float64)
	txn, _ := payment["transaction_id"].(string)
	if txn == "" {
		t.Fatalf("empty transaction id in payment response: %+v", payment)
	}

	// 9. Paying again is a 409
	resp = performRequest(r, http.MethodPost, "/api/payments", bytes.NewBuffer(pBody), citizenTok, "application/json")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double payment got %d body=%s", resp.Code, resp.Body.String())
	}

	// 10. The receipt verifies by transaction id
	resp = performRequest(r, http.MethodGet, "/api/payments/verify/"+txn, nil, citizenTok, "")
	if resp.Code != 200 {
		t.Fatalf("verify transaction failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	verified := decodeData(t, resp)
	if verified["violation_id"].(float64) != violationID {
		t.Fatalf("verified payment points at violation %v want %v", verified["violation_id"], violationID)
	}

	// 11. Refund is admin-only
	refundPath := fmt.Sprintf("/api/payments/%.0f", paymentID)
	resp = performRequest(r, http.MethodDelete, refundPath, nil, citizenTok, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen refund got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodDelete, refundPath, nil, adminTok, "")
	if resp.Code != 200 {
		t.Fatalf("refund failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 12. After the refund the violation is back in the system as unpaid
	vPath := fmt.Sprintf("/api/violations/%.0f", violationID)
	resp = performRequest(r, http.MethodGet, vPath, nil, adminTok, "")
	if resp.Code != 200 {
		t.Fatalf("get violation failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	if status := decodeData(t, resp)["status"]; status != "unpaid" {
		t.Fatalf("expected unpaid after refund got %v", status)
	}

	// A zero fine is legal (waived offenses) and must bind and settle
	zeroBody, _ := json.Marshal(map[string]any{
		"vehicle_number": "KA02ZZ0000",
		"type_id":        typeID,
		"area_id":        areaID,
		"fine_amount":    0,
	})
	resp = performRequest(r, http.MethodPost, "/api/violations", bytes.NewBuffer(zeroBody), adminTok, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create zero-fine violation failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	zeroID := decodeData(t, resp)["violation_id"].(float64)
	cleanupViolation(t, zeroID)
	zeroPay, _ := json.Marshal(map[string]any{"violation_id": zeroID, "amount": 0, "method": "cash"})
	resp = performRequest(r, http.MethodPost, "/api/payments", bytes.NewBuffer(zeroPay), citizenTok, "application/json")
	if resp.Code != 200 {
		t.Fatalf("zero-amount payment failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 13. Analytics is admin-gated
	resp = performRequest(r, http.MethodGet, "/api/analytics/summary", nil, citizenTok, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen analytics got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodGet, "/api/analytics/summary", nil, adminTok, "")
	if resp.Code != 200 {
		t.Fatalf("analytics summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 14. Missing ids are 404s, not 500s
	resp = performRequest(r, http.MethodGet, "/api/violations/99999999", nil, adminTok, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing violation got %d", resp.Code)
	}

	// 15. No token means 401
	resp = performRequest(r, http.MethodGet, "/api/violations", nil, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	// 16. Metrics endpoint is public
	resp = performRequest(r, http.MethodGet, "/metrics", nil, "", "")
	if resp.Code != 200 {
		t.Fatalf("metrics endpoint failed status=%d", resp.Code)
	}
}
