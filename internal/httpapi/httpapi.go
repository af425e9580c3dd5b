// Package httpapi exposes the service over JSON HTTP for the bar floor
// clients.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/service"
	"fairywren/backend/internal/store"
)

type Options struct {
	AllowedOrigins []string
	BodyLimitBytes int64
	Logger         *log.Logger
}

type Server struct {
	svc    *service.Service
	auth   *AuthManager
	logger *log.Logger

	allowedOrigins map[string]struct{}
	bodyLimit      int64
	loginLimiter   *attemptLimiter

	mux *http.ServeMux
}

func NewServer(svc *service.Service, auth *AuthManager, opts Options) *Server {
	s := &Server{
		svc:            svc,
		auth:           auth,
		logger:         opts.Logger,
		allowedOrigins: make(map[string]struct{}, len(opts.AllowedOrigins)),
		bodyLimit:      opts.BodyLimitBytes,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
		mux:            http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.bodyLimit <= 0 {
		s.bodyLimit = 2 << 20
	}
	for _, origin := range opts.AllowedOrigins {
		s.allowedOrigins[origin] = struct{}{}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)

	s.mux.HandleFunc("/api/products", s.requireAuth(s.handleProducts))
	s.mux.HandleFunc("/api/products/", s.requireAuth(s.handleProductSub))

	s.mux.HandleFunc("/api/bills", s.requireAuth(s.handleBills))
	s.mux.HandleFunc("/api/bills/", s.requireAuth(s.handleBillSub))

	s.mux.HandleFunc("/api/categories", s.requireAuth(s.handleCategories))
	s.mux.HandleFunc("/api/categories/", s.requireAuth(s.handleCategorySub))

	s.mux.HandleFunc("/api/suppliers", s.requireAuth(s.handleSuppliers))
	s.mux.HandleFunc("/api/suppliers/", s.requireAuth(s.handleSupplierSub))

	s.mux.HandleFunc("/api/accounts", s.requireAuth(s.handleAccounts))
	s.mux.HandleFunc("/api/accounts/", s.requireAuth(s.handleAccountSub))

	s.mux.HandleFunc("/api/expenses", s.requireAuth(s.handleExpenses))

	s.mux.HandleFunc("/api/users", s.requireAuth(s.handleUsers))
	s.mux.HandleFunc("/api/users/", s.requireAuth(s.handleUserSub))

	s.mux.HandleFunc("/api/reports/sales", s.requireAuth(s.handleSalesReport))
}

// Handler wraps the mux with CORS, request logging and the body limit.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		origin := r.Header.Get("Origin")
		if origin != "" {
			if _, ok := s.allowedOrigins[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.logger.Printf("[httpapi] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Auth plumbing

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
			return
		}
		actor, err := s.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return false
	}
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "Insufficient permissions")
	return false
}

// Health and auth

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "fairywren-backend",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}
	var req domain.LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.auth.Login(r.Context(), req.PIN)
	if err != nil {
		switch {
		case errors.Is(err, errPINRequired):
			writeError(w, http.StatusBadRequest, errPINRequired.Error())
		case errors.Is(err, errInvalidPIN):
			writeError(w, http.StatusUnauthorized, errInvalidPIN.Error())
		default:
			s.writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Products

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := s.svc.ListProducts(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		var req domain.ProductCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		product, err := s.svc.CreateProduct(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleProductSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/products/"), "/")
	switch rest {
	case "":
		s.handleProducts(w, r)
		return
	case "stock-take":
		s.handleStockTake(w, r)
		return
	case "stock-takes":
		s.handleStockTakeList(w, r)
		return
	case "upload-image":
		s.handleImageUpload(w, r)
		return
	case "delete-image":
		s.handleImageDelete(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		s.handleProductByID(w, r, parts[0])
	case 2:
		s.handleProductAction(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		product, err := s.svc.GetProduct(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		var req domain.ProductUpdateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		product, err := s.svc.UpdateProduct(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodDelete:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		product, err := s.svc.SetProductActive(r.Context(), id, active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleProductAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w, http.MethodPatch)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}

	switch action {
	case "stock":
		var req domain.StockSetRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		product, err := s.svc.SetProductStock(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case "add-stock":
		var req domain.StockSetRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		product, err := s.svc.AddProductStock(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case "status":
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		product, err := s.svc.SetProductActive(r.Context(), id, active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleStockTake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w, http.MethodPut)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}
	var req domain.StockTakeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	stockTake, err := s.svc.PerformStockTake(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stockTake)
}

func (s *Server) handleStockTakeList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	stockTakes, err := s.svc.ListStockTakes(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockTakes)
}

func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}

	if err := r.ParseMultipartForm(s.bodyLimit); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	result, err := s.svc.UploadProductImage(r.Context(), r.FormValue("productName"), header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}

	var req struct {
		Path      string `json:"path"`
		ImagePath string `json:"imagePath"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	path := req.Path
	if path == "" {
		path = req.ImagePath
	}
	if err := s.svc.DeleteProductImage(r.Context(), path); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Bills

func (s *Server) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bills, err := s.svc.ListBills(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bills)
	case http.MethodPost:
		var req domain.BillCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		bill, err := s.svc.CreateBill(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, bill)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleBillSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/bills/"), "/")
	if rest == "" {
		s.handleBills(w, r)
		return
	}
	if rest == "open" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		bills, err := s.svc.ListOpenBills(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bills)
		return
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		bill, err := s.svc.GetBill(r.Context(), parts[0])
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	case 2:
		s.handleBillAction(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleBillAction(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "rounds":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		var req domain.RoundAddRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		added, err := s.svc.AddRound(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	case "mark-paid":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w, http.MethodPatch)
			return
		}
		var req domain.MarkPaidRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		bill, err := s.svc.MarkBillPaid(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	case "confirm":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w, http.MethodPatch)
			return
		}
		if !s.authorize(w, r, domain.RoleBartender, domain.RoleManager, domain.RoleOwner) {
			return
		}
		var req domain.ConfirmPaymentRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		bill, err := s.svc.ConfirmBill(r.Context(), id, req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Categories

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.svc.ListCategories(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		var req domain.CategoryCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		category, err := s.svc.CreateCategory(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCategorySub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/categories/"), "/")
	if rest == "" {
		s.handleCategories(w, r)
		return
	}
	parts := strings.Split(rest, "/")

	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var req domain.CategoryUpdateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		category, err := s.svc.UpdateCategory(r.Context(), parts[0], req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, category)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		category, err := s.svc.SetCategoryActive(r.Context(), parts[0], active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, category)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Suppliers

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		suppliers, err := s.svc.ListSuppliers(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, suppliers)
	case http.MethodPost:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		var req domain.SupplierCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		supplier, err := s.svc.CreateSupplier(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, supplier)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleSupplierSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/suppliers/"), "/")
	if rest == "" {
		s.handleSuppliers(w, r)
		return
	}
	parts := strings.Split(rest, "/")

	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var req domain.SupplierCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		supplier, err := s.svc.UpdateSupplier(r.Context(), parts[0], req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, supplier)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		supplier, err := s.svc.SetSupplierActive(r.Context(), parts[0], active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, supplier)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Chart of accounts

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
			return
		}
		accounts, err := s.svc.ListAccounts(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	case http.MethodPost:
		if !s.authorize(w, r, domain.RoleOwner) {
			return
		}
		var req domain.AccountCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		account, err := s.svc.CreateAccount(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAccountSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/accounts/"), "/")
	if rest == "" {
		s.handleAccounts(w, r)
		return
	}
	parts := strings.Split(rest, "/")

	if !s.authorize(w, r, domain.RoleOwner) {
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var req domain.AccountUpdateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		account, err := s.svc.UpdateAccount(r.Context(), parts[0], req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		account, err := s.svc.SetAccountActive(r.Context(), parts[0], active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Expenses

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		expenses, err := s.svc.ListExpenses(r.Context(), r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		expense, err := s.svc.CreateExpense(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, expense)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// Users

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, domain.RoleOwner) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := s.svc.ListUsers(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req domain.UserCreateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		user, err := s.svc.CreateUser(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleUserSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if rest == "" {
		s.handleUsers(w, r)
		return
	}
	if !s.authorize(w, r, domain.RoleOwner) {
		return
	}
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		user, err := s.svc.GetUser(r.Context(), parts[0])
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case len(parts) == 1 && r.Method == http.MethodPut:
		var req domain.UserUpdateRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		user, err := s.svc.UpdateUser(r.Context(), parts[0], req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
		active, ok := s.decodeActiveToggle(w, r)
		if !ok {
			return
		}
		user, err := s.svc.SetUserActive(r.Context(), parts[0], active)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// Reports

func (s *Server) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if !s.authorize(w, r, domain.RoleManager, domain.RoleOwner) {
		return
	}
	report, err := s.svc.SalesReport(r.Context(), r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// attemptLimiter tracks recent attempts per key inside a sliding window.
// It protects the four-digit PIN space from online guessing.
type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// JSON helpers

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) decodeActiveToggle(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req domain.ActiveToggleRequest
	if !s.decodeJSON(w, r, &req) {
		return false, false
	}
	switch {
	case req.Active != nil:
		return *req.Active, true
	case req.Status != nil:
		return *req.Status, true
	default:
		writeError(w, http.StatusBadRequest, "Active flag is required")
		return false, false
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Printf("[httpapi] ERROR: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
