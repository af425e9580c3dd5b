// Package service implements the business rules on top of the persistence
// and storage boundaries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"fairywren/backend/internal/cache"
	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/pin"
	"fairywren/backend/internal/storage"
	"fairywren/backend/internal/store"
)

type actorKey struct{}

// WithActor attaches the authenticated staff member to the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the staff member set by the auth layer.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}

// requestError carries a caller-facing message while unwrapping to one of
// the store sentinels for status mapping.
type requestError struct {
	kind error
	msg  string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return e.kind }

func invalid(msg string) error {
	return &requestError{kind: store.ErrInvalid, msg: msg}
}

func conflict(msg string) error {
	return &requestError{kind: store.ErrConflict, msg: msg}
}

const dateLayout = "2006-01-02"

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Options struct {
	PINPepper          string
	AllowNegativeStock bool
	StaleBillAfter     time.Duration
	Logger             *log.Logger
	Now                func() time.Time
}

type Service struct {
	repo    store.Repository
	objects storage.ObjectStore
	catalog cache.CatalogCache

	pepper             string
	allowNegativeStock bool
	staleBillAfter     time.Duration

	logger *log.Logger
	now    func() time.Time
}

func New(repo store.Repository, objects storage.ObjectStore, catalog cache.CatalogCache, opts Options) *Service {
	s := &Service{
		repo:               repo,
		objects:            objects,
		catalog:            catalog,
		pepper:             opts.PINPepper,
		allowNegativeStock: opts.AllowNegativeStock,
		staleBillAfter:     opts.StaleBillAfter,
		logger:             opts.Logger,
		now:                opts.Now,
	}
	if s.catalog == nil {
		s.catalog = cache.NewNoop()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.staleBillAfter <= 0 {
		s.staleBillAfter = 6 * time.Hour
	}
	return s
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.InvalidateProducts(ctx); err != nil {
		s.logger.Printf("[service] WARN: catalog invalidation failed: %v", err)
	}
}

// Users

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.PIN == "" || req.Role == "" {
		return nil, invalid("Name, PIN and role are required")
	}
	if !domain.IsValidRole(req.Role) {
		return nil, invalid("Invalid role")
	}
	if !validPIN(req.PIN) {
		return nil, invalid("PIN must be 4 to 6 digits")
	}

	hash, err := pin.Hash(req.PIN)
	if err != nil {
		return nil, err
	}

	user := domain.User{
		ID:             uuid.NewString(),
		Name:           name,
		Role:           req.Role,
		PINHash:        hash,
		PINFingerprint: pin.Fingerprint(s.pepper, req.PIN),
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}
	created, err := s.repo.CreateUser(ctx, user)
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("PIN already in use")
	}
	return created, err
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Name is required")
		}
		user.Name = name
	}
	if req.Role != nil {
		if !domain.IsValidRole(*req.Role) {
			return nil, invalid("Invalid role")
		}
		user.Role = *req.Role
	}
	if req.PIN != nil {
		if !validPIN(*req.PIN) {
			return nil, invalid("PIN must be 4 to 6 digits")
		}
		hash, err := pin.Hash(*req.PIN)
		if err != nil {
			return nil, err
		}
		user.PINHash = hash
		user.PINFingerprint = pin.Fingerprint(s.pepper, *req.PIN)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	saved, err := s.repo.UpdateUser(ctx, *user)
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("PIN already in use")
	}
	return saved, err
}

func (s *Service) SetUserActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Active = active
	return s.repo.UpdateUser(ctx, *user)
}

func validPIN(p string) bool {
	if len(p) < 4 || len(p) > 6 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Categories

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("Category name is required")
	}
	category := domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     req.Color,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryUpdateRequest) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Category name is required")
		}
		category.Name = name
	}
	if req.Color != nil {
		category.Color = *req.Color
	}
	saved, err := s.repo.UpdateCategory(ctx, *category)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

func (s *Service) SetCategoryActive(ctx context.Context, id string, active bool) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category.Active = active
	saved, err := s.repo.UpdateCategory(ctx, *category)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

// Products

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cached, err := s.catalog.GetProducts(ctx)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Printf("[service] WARN: catalog read failed: %v", err)
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SetProducts(ctx, products); err != nil {
		s.logger.Printf("[service] WARN: catalog fill failed: %v", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Price == nil {
		return nil, invalid("Product name and price are required")
	}
	if *req.Price < 0 {
		return nil, invalid("Price cannot be negative")
	}

	product := domain.Product{
		ID:         uuid.NewString(),
		Name:       name,
		Price:      *req.Price,
		CategoryID: req.CategoryID,
		Stock:      req.Stock,
		Image:      req.Image,
		ImageURL:   req.ImageURL,
		ImagePath:  req.ImagePath,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Product name is required")
		}
		product.Name = name
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, invalid("Price cannot be negative")
		}
		product.Price = *req.Price
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.ImagePath != nil {
		product.ImagePath = *req.ImagePath
	}

	saved, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

// DeactivateProduct is the delete operation. Products are never removed
// because completed bills reference them.
func (s *Service) DeactivateProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.SetProductActive(ctx, id, false)
}

func (s *Service) SetProductActive(ctx context.Context, id string, active bool) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Active = active
	saved, err := s.repo.UpdateProduct(ctx, *product)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

func (s *Service) SetProductStock(ctx context.Context, id string, req domain.StockSetRequest) (*domain.Product, error) {
	if req.Quantity == nil {
		return nil, invalid("Quantity is required")
	}
	if *req.Quantity < 0 {
		return nil, invalid("Quantity cannot be negative")
	}
	saved, err := s.repo.SetStock(ctx, id, *req.Quantity)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

func (s *Service) AddProductStock(ctx context.Context, id string, req domain.StockSetRequest) (*domain.Product, error) {
	if req.Quantity == nil {
		return nil, invalid("Quantity is required")
	}
	if *req.Quantity <= 0 {
		return nil, invalid("Quantity must be positive")
	}
	saved, err := s.repo.AdjustStock(ctx, id, *req.Quantity, true)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return saved, nil
}

// Stock takes

func (s *Service) PerformStockTake(ctx context.Context, req domain.StockTakeRequest) (*domain.StockTake, error) {
	if len(req.Items) == 0 {
		return nil, invalid("Stock take needs at least one item")
	}

	performedBy := req.PerformedBy
	performedByName := req.PerformedByName
	if actor, ok := ActorFromContext(ctx); ok {
		if performedBy == "" {
			performedBy = actor.ID
		}
		if performedByName == "" {
			performedByName = actor.Name
		}
	}

	stockTake := domain.StockTake{
		ID:              uuid.NewString(),
		PerformedBy:     performedBy,
		PerformedByName: performedByName,
		Notes:           req.Notes,
		CreatedAt:       s.now().UTC(),
		Items:           make([]domain.StockTakeItem, 0, len(req.Items)),
	}

	for _, input := range req.Items {
		if input.ProductID == "" {
			return nil, invalid("Each stock take item needs a product")
		}
		name := input.ProductName
		if name == "" {
			if product, err := s.repo.GetProductByID(ctx, input.ProductID); err == nil {
				name = product.Name
			}
		}
		stockTake.Items = append(stockTake.Items, domain.StockTakeItem{
			ID:          uuid.NewString(),
			StockTakeID: stockTake.ID,
			ProductID:   input.ProductID,
			ProductName: name,
			Expected:    input.Expected,
			Actual:      input.Actual,
			Variance:    input.Actual - input.Expected,
		})
	}

	created, err := s.repo.CreateStockTake(ctx, stockTake)
	if err != nil {
		return nil, err
	}

	// Counted quantities become the new stock levels.
	for _, item := range created.Items {
		if _, err := s.repo.SetStock(ctx, item.ProductID, item.Actual); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Printf("[service] WARN: stock reset after stock take failed for %s: %v", item.ProductID, err)
		}
	}
	s.invalidateCatalog(ctx)
	return created, nil
}

func (s *Service) ListStockTakes(ctx context.Context, limit int) ([]domain.StockTake, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListStockTakes(ctx, limit)
}

// Product images

func (s *Service) UploadProductImage(ctx context.Context, productName, contentType string, data []byte) (*domain.UploadResult, error) {
	if len(data) == 0 {
		return nil, invalid("No file uploaded")
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, invalid("Invalid file type")
	}
	if strings.TrimSpace(productName) == "" {
		return nil, invalid("Product name is required")
	}

	path := fmt.Sprintf("products/%d_%s%s", s.now().UnixMilli(), slugify(productName), ext)
	if err := s.objects.Upload(ctx, path, contentType, data); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, conflict("An image with this name was just uploaded, try again")
		}
		return nil, err
	}

	return &domain.UploadResult{
		ImageURL:  s.objects.PublicURL(path),
		ImagePath: path,
	}, nil
}

func (s *Service) DeleteProductImage(ctx context.Context, path string) error {
	if path == "" {
		return invalid("Image path required")
	}
	if !strings.HasPrefix(path, "products/") {
		return invalid("Image path required")
	}
	err := s.objects.Remove(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}

func slugify(name string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		slug = "image"
	}
	return slug
}

// Bills

func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (*domain.Bill, error) {
	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		return nil, invalid("Customer name is required")
	}

	createdBy := req.WaitressID
	createdByName := req.WaitressName
	if actor, ok := ActorFromContext(ctx); ok {
		if createdBy == "" {
			createdBy = actor.ID
		}
		if createdByName == "" {
			createdByName = actor.Name
		}
	}

	bill := domain.Bill{
		ID:            uuid.NewString(),
		CustomerName:  customerName,
		CreatedBy:     createdBy,
		CreatedByName: createdByName,
		Status:        domain.BillStatusOpen,
		TotalAmount:   0,
		CreatedAt:     s.now().UTC(),
		Rounds:        []domain.Round{},
	}
	return s.repo.CreateBill(ctx, bill)
}

func (s *Service) ListBills(ctx context.Context) ([]domain.Bill, error) {
	return s.repo.ListBills(ctx, false)
}

func (s *Service) ListOpenBills(ctx context.Context) ([]domain.Bill, error) {
	return s.repo.ListBills(ctx, true)
}

func (s *Service) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	return s.repo.GetBillByID(ctx, id)
}

// AddRound appends a round to an open or awaiting bill. Item names and
// prices are snapshotted from the catalog at this moment, so later price
// edits never change what the table owes.
func (s *Service) AddRound(ctx context.Context, billID string, req domain.RoundAddRequest) (*domain.RoundAddResponse, error) {
	if len(req.Items) == 0 {
		return nil, invalid("A round needs at least one item")
	}

	bill, err := s.repo.GetBillByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status == domain.BillStatusCompleted {
		return nil, conflict("Bill is already completed")
	}

	roundNumber := req.RoundNumber
	if roundNumber <= 0 {
		roundNumber = len(bill.Rounds) + 1
	}

	createdBy := req.AddedBy
	if actor, ok := ActorFromContext(ctx); ok && createdBy == "" {
		createdBy = actor.ID
	}

	round := domain.Round{
		ID:          uuid.NewString(),
		BillID:      billID,
		RoundNumber: roundNumber,
		CreatedBy:   createdBy,
		CreatedAt:   s.now().UTC(),
		Items:       make([]domain.RoundItem, 0, len(req.Items)),
	}

	for _, input := range req.Items {
		if input.ProductID == "" || input.Quantity <= 0 {
			return nil, invalid("Each item needs a product and a positive quantity")
		}
		// The client's price and name are the snapshot of record: the table
		// pays what the menu showed when the order was taken. The catalog
		// only fills in what the request left blank.
		name := input.ProductName
		price := input.Price
		if name == "" || price == 0 {
			product, err := s.repo.GetProductByID(ctx, input.ProductID)
			switch {
			case err == nil:
				if name == "" {
					name = product.Name
				}
				if price == 0 {
					price = product.Price
				}
			case errors.Is(err, store.ErrNotFound):
				// Deleted between the client loading the menu and ordering.
				// The round still lands with the client-provided snapshot.
			default:
				return nil, err
			}
		}
		round.Items = append(round.Items, domain.RoundItem{
			ID:          uuid.NewString(),
			RoundID:     round.ID,
			ProductID:   input.ProductID,
			ProductName: name,
			Price:       price,
			Quantity:    input.Quantity,
		})
	}

	created, err := s.repo.AddRound(ctx, round, s.allowNegativeStock)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			return nil, conflict("Not enough stock for this round")
		}
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return &domain.RoundAddResponse{Round: *created, Items: created.Items}, nil
}

func (s *Service) MarkBillPaid(ctx context.Context, billID string, req domain.MarkPaidRequest) (*domain.Bill, error) {
	if req.PaymentMethod == "" {
		return nil, invalid("Payment method is required")
	}

	bill, err := s.repo.GetBillByID(ctx, billID)
	if err != nil {
		return nil, err
	}

	markedBy := req.MarkedBy
	if actor, ok := ActorFromContext(ctx); ok && markedBy == "" {
		markedBy = actor.ID
	}

	payment := domain.Payment{
		ID:          uuid.NewString(),
		BillID:      billID,
		Amount:      bill.TotalAmount,
		PaymentType: req.PaymentMethod,
		RefCode:     req.MpesaCode,
		CreatedBy:   markedBy,
	}

	saved, err := s.repo.MarkBillPaid(ctx, billID, payment, markedBy, s.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Bill is already completed")
	}
	return saved, err
}

func (s *Service) ConfirmBill(ctx context.Context, billID string, req domain.ConfirmPaymentRequest) (*domain.Bill, error) {
	confirmedBy := req.ConfirmedBy
	if actor, ok := ActorFromContext(ctx); ok && confirmedBy == "" {
		confirmedBy = actor.ID
	}

	saved, err := s.repo.ConfirmBill(ctx, billID, confirmedBy, s.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Bill is not awaiting confirmation")
	}
	return saved, err
}

// Reports

func (s *Service) SalesReport(ctx context.Context, startDate, endDate string) (*domain.SalesReport, error) {
	var from, to *time.Time
	if startDate != "" || endDate != "" {
		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, invalid("Invalid date range")
		}
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, invalid("Invalid date range")
		}
		if end.Before(start) {
			return nil, invalid("Invalid date range")
		}
		endOfDay := end.Add(24*time.Hour - time.Nanosecond)
		from, to = &start, &endOfDay
	}

	bills, err := s.repo.ListCompletedBills(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &domain.SalesReport{Bills: bills}
	for _, bill := range bills {
		report.TotalSales += bill.TotalAmount
	}
	report.BillCount = len(bills)
	return report, nil
}

// Suppliers

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("Supplier name is required")
	}
	supplier := domain.Supplier{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     req.Phone,
		Email:     req.Email,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	supplier, err := s.repo.GetSupplierByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		supplier.Name = name
	}
	supplier.Phone = req.Phone
	supplier.Email = req.Email
	return s.repo.UpdateSupplier(ctx, *supplier)
}

func (s *Service) SetSupplierActive(ctx context.Context, id string, active bool) (*domain.Supplier, error) {
	supplier, err := s.repo.GetSupplierByID(ctx, id)
	if err != nil {
		return nil, err
	}
	supplier.Active = active
	return s.repo.UpdateSupplier(ctx, *supplier)
}

// Chart of accounts

func (s *Service) CreateAccount(ctx context.Context, req domain.AccountCreateRequest) (*domain.Account, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" || req.Type == "" {
		return nil, invalid("Account code, name and type are required")
	}
	if !domain.IsValidAccountType(req.Type) {
		return nil, invalid("Invalid account type")
	}

	account := domain.Account{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      name,
		Type:      req.Type,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.repo.CreateAccount(ctx, account)
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Account code already in use")
	}
	return created, err
}

func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *Service) UpdateAccount(ctx context.Context, id string, req domain.AccountUpdateRequest) (*domain.Account, error) {
	account, err := s.repo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return nil, invalid("Account code is required")
		}
		account.Code = code
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("Account name is required")
		}
		account.Name = name
	}
	if req.Type != nil {
		if !domain.IsValidAccountType(*req.Type) {
			return nil, invalid("Invalid account type")
		}
		account.Type = *req.Type
	}
	saved, err := s.repo.UpdateAccount(ctx, *account)
	if errors.Is(err, store.ErrConflict) {
		return nil, conflict("Account code already in use")
	}
	return saved, err
}

func (s *Service) SetAccountActive(ctx context.Context, id string, active bool) (*domain.Account, error) {
	account, err := s.repo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Active = active
	return s.repo.UpdateAccount(ctx, *account)
}

// Expenses

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" || req.Amount == nil {
		return nil, invalid("Description and amount are required")
	}
	if *req.Amount <= 0 {
		return nil, invalid("Amount must be positive")
	}

	date := s.now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			return nil, invalid("Invalid expense date")
		}
		date = parsed
	}

	createdBy := req.AddedBy
	createdByName := req.AddedByName
	if actor, ok := ActorFromContext(ctx); ok {
		if createdBy == "" {
			createdBy = actor.ID
		}
		if createdByName == "" {
			createdByName = actor.Name
		}
	}

	expense := domain.Expense{
		ID:            uuid.NewString(),
		Date:          date,
		SupplierID:    req.SupplierID,
		AccountID:     req.AccountID,
		Description:   description,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        *req.Amount,
		CreatedBy:     createdBy,
		CreatedByName: createdByName,
		CreatedAt:     s.now().UTC(),
	}
	return s.repo.CreateExpense(ctx, expense)
}

func (s *Service) ListExpenses(ctx context.Context, startDate, endDate string) ([]domain.Expense, error) {
	var from, to *time.Time
	if startDate != "" || endDate != "" {
		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, invalid("Invalid date range")
		}
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, invalid("Invalid date range")
		}
		endOfDay := end.Add(24*time.Hour - time.Nanosecond)
		from, to = &start, &endOfDay
	}
	return s.repo.ListExpenses(ctx, from, to)
}

// LogStaleOpenBills flags bills that have sat open past the configured
// cutoff. It only logs; closing a table stays a human decision.
func (s *Service) LogStaleOpenBills(ctx context.Context) {
	bills, err := s.repo.ListBills(ctx, true)
	if err != nil {
		s.logger.Printf("[service] WARN: stale bill sweep failed: %v", err)
		return
	}
	cutoff := s.now().Add(-s.staleBillAfter)
	for _, bill := range bills {
		if bill.CreatedAt.Before(cutoff) {
			s.logger.Printf("[service] WARN: bill %s (%s) open since %s, total %.2f",
				bill.ID, bill.CustomerName, bill.CreatedAt.Format(time.RFC3339), bill.TotalAmount)
		}
	}
}
