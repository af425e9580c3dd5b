package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/service"
	"fairywren/backend/internal/storage"
	"fairywren/backend/internal/store/memory"
)

const testPepper = "test-pepper-0123"

// newTestServer wires a full server over the seeded in-memory store so
// handler tests exercise the complete request path, auth included.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo := memory.NewSeeded(testPepper)
	svc := service.New(repo, storage.NewMemory(""), nil, service.Options{
		PINPepper:          testPepper,
		AllowNegativeStock: true,
		Logger:             log.New(io.Discard, "", 0),
	})
	auth := NewAuthManager(repo, testPepper, "test-secret-key-test-secret-key!", time.Hour)

	return NewServer(svc, auth, Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		BodyLimitBytes: 2 << 20,
		Logger:         log.New(io.Discard, "", 0),
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func loginWithPIN(t *testing.T, srv *Server, pin string) string {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{PIN: pin})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with PIN %s failed, status %d (body: %s)", pin, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected token in login response")
	}
	return resp.Token
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] == "" || body["timestamp"] == "" {
		t.Fatalf("expected status, service and timestamp, got %v", body)
	}
}

func TestLoginSuccessReturnsTokenAndUser(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{PIN: "3333"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Role != domain.RoleManager {
		t.Fatalf("expected manager, got %q", resp.User.Role)
	}
	if resp.User.Name != "Mwangi" {
		t.Fatalf("expected seeded manager name, got %q", resp.User.Name)
	}
}

func TestLoginWrongPIN(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{PIN: "0000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Invalid PIN" {
		t.Fatalf("expected Invalid PIN, got %q", msg)
	}
}

func TestLoginEmptyPIN(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "PIN is required" {
		t.Fatalf("expected PIN is required, got %q", msg)
	}
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 6; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{PIN: "0000"})
		if i < 5 && rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, rec.Code)
		}
		if i == 5 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", rec.Code)
		}
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/products", "not-a-real-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestWaitressCannotCreateProducts(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "1111")

	price := 100.0
	rec := doJSON(t, srv, http.MethodPost, "/api/products", token, domain.ProductCreateRequest{Name: "Tusker", Price: &price})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for waitress, got %d", rec.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "3333")

	rec := doJSON(t, srv, http.MethodPost, "/api/products", token, domain.ProductCreateRequest{Name: "Tusker"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if msg := errorMessage(t, rec); msg != "Product name and price are required" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBillFlowThroughHandlers(t *testing.T) {
	srv := newTestServer(t)
	waitress := loginWithPIN(t, srv, "1111")
	bartender := loginWithPIN(t, srv, "2222")

	// The seeded catalog ships with products; pick one.
	rec := doJSON(t, srv, http.MethodGet, "/api/products", waitress, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products: %d", rec.Code)
	}
	var products []domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	product := products[0]

	rec = doJSON(t, srv, http.MethodPost, "/api/bills", waitress, domain.BillCreateRequest{CustomerName: "Table 7"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var bill domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&bill); err != nil {
		t.Fatalf("decode bill: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/bills/"+bill.ID+"/rounds", waitress, domain.RoundAddRequest{
		Items: []domain.RoundItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add round: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var added domain.RoundAddResponse
	if err := json.NewDecoder(rec.Body).Decode(&added); err != nil {
		t.Fatalf("decode round: %v", err)
	}
	if added.Round.RoundNumber != 1 || len(added.Items) != 1 {
		t.Fatalf("expected round 1 with one item, got %+v", added)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/bills/"+bill.ID, waitress, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bill: %d", rec.Code)
	}
	var afterRound domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&afterRound); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	if afterRound.TotalAmount != product.Price*2 {
		t.Fatalf("expected total %.2f, got %.2f", product.Price*2, afterRound.TotalAmount)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/bills/"+bill.ID+"/mark-paid", waitress, domain.MarkPaidRequest{
		PaymentMethod: "mpesa",
		MpesaCode:     "QX99ZZZ",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark paid: %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Confirmation belongs to the counter, not the floor.
	rec = doJSON(t, srv, http.MethodPatch, "/api/bills/"+bill.ID+"/confirm", waitress, domain.ConfirmPaymentRequest{})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for waitress confirm, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/bills/"+bill.ID+"/confirm", bartender, domain.ConfirmPaymentRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var done domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&done); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	if done.Status != domain.BillStatusCompleted {
		t.Fatalf("expected completed, got %q", done.Status)
	}

	// Open bill listing must no longer include it.
	rec = doJSON(t, srv, http.MethodGet, "/api/bills/open", waitress, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list open bills: %d", rec.Code)
	}
	var open []domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&open); err != nil {
		t.Fatalf("decode open bills: %v", err)
	}
	for _, b := range open {
		if b.ID == bill.ID {
			t.Fatalf("completed bill still listed as open")
		}
	}
}

func TestGetMissingBillReturns404(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "1111")

	rec := doJSON(t, srv, http.MethodGet, "/api/bills/no-such-bill", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMarkPaidAcceptsClientAmount(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "1111")

	rec := doJSON(t, srv, http.MethodPost, "/api/bills", token, domain.BillCreateRequest{CustomerName: "Table 12"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill: %d", rec.Code)
	}
	var bill domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&bill); err != nil {
		t.Fatalf("decode bill: %v", err)
	}

	// Older clients send a computed amount; the server ignores it and
	// bills the recorded rounds.
	rec = doJSON(t, srv, http.MethodPatch, "/api/bills/"+bill.ID+"/mark-paid", token, map[string]any{
		"paymentMethod": "cash",
		"amount":        map[string]float64{"total": 999},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mark paid with amount: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var paid domain.Bill
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	if paid.TotalAmount != 0 {
		t.Fatalf("client amount must not set the total, got %.2f", paid.TotalAmount)
	}
}

func TestDeleteProductTogglesActiveFromBody(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "3333")

	rec := doJSON(t, srv, http.MethodGet, "/api/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products: %d", rec.Code)
	}
	var products []domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	id := products[0].ID

	rec = doJSON(t, srv, http.MethodDelete, "/api/products/"+id, token, map[string]bool{"status": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete product: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var product domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if product.Active {
		t.Fatalf("expected product deactivated, got %+v", product)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/products/"+id, token, map[string]bool{"active": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("reactivate product: %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if !product.Active {
		t.Fatalf("expected product reactivated, got %+v", product)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/products/"+id, token, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a toggle, got %d", rec.Code)
	}
}

func TestImageUploadRejectsBadType(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "3333")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("productName", "Menu Card"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="menu.pdf"`},
		"Content-Type":        {"application/pdf"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-fake")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/products/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if msg := errorMessage(t, rec); msg != "Invalid file type" {
		t.Fatalf("expected Invalid file type, got %q", msg)
	}
}

func TestImageUploadRequiresProductName(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "3333")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="tusker.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/products/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if msg := errorMessage(t, rec); msg != "Product name is required" {
		t.Fatalf("expected Product name is required, got %q", msg)
	}
}

func TestImageUploadAndDelete(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "4444")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("productName", "Tusker Lager"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="tusker.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/products/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var result domain.UploadResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode upload result: %v", err)
	}
	if result.ImagePath == "" || result.ImageURL == "" {
		t.Fatalf("expected path and URL, got %+v", result)
	}

	del := doJSON(t, srv, http.MethodDelete, "/api/products/delete-image", token, map[string]string{"path": result.ImagePath})
	if del.Code != http.StatusOK {
		t.Fatalf("delete image: %d (body: %s)", del.Code, del.Body.String())
	}

	missing := doJSON(t, srv, http.MethodDelete, "/api/products/delete-image", token, map[string]string{"path": ""})
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing path, got %d", missing.Code)
	}
	if msg := errorMessage(t, missing); msg != "Image path required" {
		t.Fatalf("expected Image path required, got %q", msg)
	}
}

func TestUsersEndpointIsOwnerOnly(t *testing.T) {
	srv := newTestServer(t)
	manager := loginWithPIN(t, srv, "3333")
	owner := loginWithPIN(t, srv, "4444")

	rec := doJSON(t, srv, http.MethodGet, "/api/users", manager, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for manager, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/users", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", rec.Code)
	}
	// Serialized users must never expose hashes or fingerprints.
	if body := rec.Body.String(); bytes.Contains([]byte(body), []byte("pin_hash")) || bytes.Contains([]byte(body), []byte("fingerprint")) {
		t.Fatalf("user payload leaks PIN material: %s", body)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected unknown origin rejected, got %q", got)
	}
}

func TestSecurityHeadersSet(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
}

func TestSalesReportRequiresManager(t *testing.T) {
	srv := newTestServer(t)
	waitress := loginWithPIN(t, srv, "1111")
	manager := loginWithPIN(t, srv, "3333")

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/sales", waitress, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for waitress, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/reports/sales", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for manager, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var report domain.SalesReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	srv := newTestServer(t)
	token := loginWithPIN(t, srv, "1111")

	req := httptest.NewRequest(http.MethodPost, "/api/bills", bytes.NewReader([]byte(`{"customerName":"T1","bogus":true}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
