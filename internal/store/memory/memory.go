package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/pin"
	"fairywren/backend/internal/store"
)

// Store is an in-memory Repository used for tests and dev mode. All methods
// take the single lock, so multi-row mutations are atomic by construction.
type Store struct {
	mu sync.RWMutex

	usersByID      map[string]domain.User
	categoriesByID map[string]domain.Category
	productsByID   map[string]domain.Product
	billsByID      map[string]domain.Bill
	paymentsByBill map[string]domain.Payment
	stockTakesByID map[string]domain.StockTake
	suppliersByID  map[string]domain.Supplier
	accountsByID   map[string]domain.Account
	expensesByID   map[string]domain.Expense
}

func New() *Store {
	return &Store{
		usersByID:      make(map[string]domain.User),
		categoriesByID: make(map[string]domain.Category),
		productsByID:   make(map[string]domain.Product),
		billsByID:      make(map[string]domain.Bill),
		paymentsByBill: make(map[string]domain.Payment),
		stockTakesByID: make(map[string]domain.StockTake),
		suppliersByID:  make(map[string]domain.Supplier),
		accountsByID:   make(map[string]domain.Account),
		expensesByID:   make(map[string]domain.Expense),
	}
}

// NewSeeded builds a store preloaded with demo staff, categories and products.
// Staff PINs come from SEED_<ROLE>_PIN environment variables with hardcoded
// dev defaults; the given pepper is used to derive lookup fingerprints.
func NewSeeded(pepper string) *Store {
	s := New()
	now := time.Now().UTC()

	for _, u := range []struct {
		name string
		role string
		env  string
		def  string
	}{
		{"Achieng", domain.RoleWaitress, "SEED_WAITRESS_PIN", "1111"},
		{"Baraka", domain.RoleBartender, "SEED_BARTENDER_PIN", "2222"},
		{"Mwangi", domain.RoleManager, "SEED_MANAGER_PIN", "3333"},
		{"Njeri", domain.RoleOwner, "SEED_OWNER_PIN", "4444"},
	} {
		plain := envOr(u.env, u.def)
		if os.Getenv(u.env) == "" {
			log.Printf("[memory-store] WARNING: using default dev PIN for %s. Set %s to override.", u.role, u.env)
		}
		hash, err := pin.Hash(plain)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed PIN for %s: %v", u.role, err)
		}
		id := uuid.NewString()
		s.usersByID[id] = domain.User{
			ID:             id,
			Name:           u.name,
			Role:           u.role,
			PINHash:        hash,
			PINFingerprint: pin.Fingerprint(pepper, plain),
			Active:         true,
			CreatedAt:      now,
		}
	}

	categories := []domain.Category{
		{ID: uuid.NewString(), Name: "Beer", Color: "#f59e0b", Active: true, CreatedAt: now},
		{ID: uuid.NewString(), Name: "Spirits", Color: "#8b5cf6", Active: true, CreatedAt: now},
		{ID: uuid.NewString(), Name: "Soft Drinks", Color: "#10b981", Active: true, CreatedAt: now},
		{ID: uuid.NewString(), Name: "Food", Color: "#ef4444", Active: true, CreatedAt: now},
	}
	for _, c := range categories {
		s.categoriesByID[c.ID] = c
	}

	products := []struct {
		name     string
		price    float64
		category int
		stock    int
		image    string
	}{
		{"Tusker Lager", 250, 0, 48, "🍺"},
		{"White Cap", 250, 0, 36, "🍺"},
		{"Guinness", 300, 0, 24, "🍺"},
		{"Kenya Cane 250ml", 350, 1, 20, "🥃"},
		{"Gilbeys Gin 250ml", 400, 1, 15, "🥃"},
		{"Coca Cola 500ml", 100, 2, 60, "🥤"},
		{"Soda Water", 80, 2, 40, "🥤"},
		{"Nyama Choma Platter", 800, 3, 0, "🍖"},
		{"Chips Masala", 250, 3, 0, "🍟"},
	}
	for _, p := range products {
		id := uuid.NewString()
		s.productsByID[id] = domain.Product{
			ID:         id,
			Name:       p.name,
			Price:      p.price,
			CategoryID: categories[p.category].ID,
			Stock:      p.stock,
			Image:      p.image,
			Active:     true,
			CreatedAt:  now,
		}
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Users

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.usersByID {
		if existing.PINFingerprint == user.PINFingerprint {
			return nil, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.usersByID[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *Store) GetUserByFingerprint(_ context.Context, fingerprint string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.usersByID {
		if u.PINFingerprint == fingerprint && u.Active {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[user.ID]; !ok {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.usersByID {
		if id != user.ID && existing.PINFingerprint == user.PINFingerprint {
			return nil, store.ErrConflict
		}
	}
	s.usersByID[user.ID] = user
	saved := user
	return &saved, nil
}

// Categories

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) GetCategoryByID(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categoriesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := category
	return &found, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categoriesByID[category.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.categoriesByID[category.ID] = category
	saved := category
	return &saved, nil
}

// Products

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	s.productsByID[product.ID] = product
	created := s.withCategory(product)
	return &created, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, s.withCategory(p))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := s.withCategory(product)
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.productsByID[product.ID]; !ok {
		return nil, store.ErrNotFound
	}
	product.Category = nil
	s.productsByID[product.ID] = product
	saved := s.withCategory(product)
	return &saved, nil
}

func (s *Store) SetStock(_ context.Context, productID string, quantity int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.productsByID[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Stock = quantity
	s.productsByID[productID] = product
	saved := s.withCategory(product)
	return &saved, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int, allowNegative bool) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.productsByID[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := product.Stock + delta
	if next < 0 && !allowNegative {
		return nil, store.ErrInsufficientStock
	}
	product.Stock = next
	s.productsByID[productID] = product
	saved := s.withCategory(product)
	return &saved, nil
}

func (s *Store) CreateStockTake(_ context.Context, stockTake domain.StockTake) (*domain.StockTake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stockTake.ID == "" {
		stockTake.ID = uuid.NewString()
	}
	items := make([]domain.StockTakeItem, len(stockTake.Items))
	copy(items, stockTake.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].StockTakeID = stockTake.ID
	}
	stockTake.Items = items
	s.stockTakesByID[stockTake.ID] = stockTake
	created := stockTake
	return &created, nil
}

func (s *Store) ListStockTakes(_ context.Context, limit int) ([]domain.StockTake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	takes := make([]domain.StockTake, 0, len(s.stockTakesByID))
	for _, st := range s.stockTakesByID {
		takes = append(takes, st)
	}
	sort.Slice(takes, func(i, j int) bool { return takes[i].CreatedAt.After(takes[j].CreatedAt) })
	if limit > 0 && len(takes) > limit {
		takes = takes[:limit]
	}
	return takes, nil
}

// Bills

func (s *Store) CreateBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if bill.Rounds == nil {
		bill.Rounds = []domain.Round{}
	}
	s.billsByID[bill.ID] = bill
	created := bill
	return &created, nil
}

func (s *Store) GetBillByID(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.billsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneBill(bill)
	return &found, nil
}

func (s *Store) ListBills(_ context.Context, onlyOpen bool) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0, len(s.billsByID))
	for _, b := range s.billsByID {
		if onlyOpen && b.Status != domain.BillStatusOpen {
			continue
		}
		bills = append(bills, cloneBill(b))
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].CreatedAt.After(bills[j].CreatedAt) })
	return bills, nil
}

func (s *Store) ListCompletedBills(_ context.Context, from, to *time.Time) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.Bill, 0)
	for _, b := range s.billsByID {
		if b.Status != domain.BillStatusCompleted {
			continue
		}
		if from != nil && b.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && b.CreatedAt.After(*to) {
			continue
		}
		bills = append(bills, cloneBill(b))
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].CreatedAt.After(bills[j].CreatedAt) })
	return bills, nil
}

// AddRound appends the round and applies every stock decrement under the
// single lock. When negative stock is disallowed the decrements are validated
// up front so a failure leaves nothing half-applied.
func (s *Store) AddRound(_ context.Context, round domain.Round, allowNegative bool) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.billsByID[round.BillID]
	if !ok {
		return nil, store.ErrNotFound
	}

	if !allowNegative {
		for _, item := range round.Items {
			product, exists := s.productsByID[item.ProductID]
			if exists && product.Stock-item.Quantity < 0 {
				return nil, store.ErrInsufficientStock
			}
		}
	}

	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	items := make([]domain.RoundItem, len(round.Items))
	copy(items, round.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].RoundID = round.ID
	}
	round.Items = items

	for _, item := range round.Items {
		product, exists := s.productsByID[item.ProductID]
		if !exists {
			continue
		}
		product.Stock -= item.Quantity
		s.productsByID[item.ProductID] = product
	}

	bill.Rounds = append(bill.Rounds, round)
	bill.TotalAmount = billTotal(bill)
	s.billsByID[bill.ID] = bill

	created := round
	return &created, nil
}

func (s *Store) MarkBillPaid(_ context.Context, billID string, payment domain.Payment, markedBy string, at time.Time) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.billsByID[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if bill.Status == domain.BillStatusCompleted {
		return nil, store.ErrConflict
	}

	bill.Status = domain.BillStatusAwaiting
	bill.PaymentMethod = payment.PaymentType
	bill.PaymentRef = payment.RefCode
	bill.MarkedPaidBy = markedBy
	markedAt := at
	bill.MarkedPaidAt = &markedAt
	s.billsByID[billID] = bill

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.BillID = billID
	payment.CreatedAt = at
	s.paymentsByBill[billID] = payment

	saved := cloneBill(bill)
	return &saved, nil
}

func (s *Store) ConfirmBill(_ context.Context, billID string, confirmedBy string, at time.Time) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.billsByID[billID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if bill.Status != domain.BillStatusAwaiting {
		return nil, store.ErrConflict
	}

	bill.Status = domain.BillStatusCompleted
	bill.ConfirmedBy = confirmedBy
	confirmedAt := at
	bill.ConfirmedAt = &confirmedAt
	s.billsByID[billID] = bill

	if payment, ok := s.paymentsByBill[billID]; ok {
		payment.Confirmed = true
		s.paymentsByBill[billID] = payment
	}

	saved := cloneBill(bill)
	return &saved, nil
}

// Suppliers

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = uuid.NewString()
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sp := range s.suppliersByID {
		suppliers = append(suppliers, sp)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].Name > suppliers[j].Name })
	return suppliers, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := supplier
	return &found, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[supplier.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.suppliersByID[supplier.ID] = supplier
	saved := supplier
	return &saved, nil
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, account domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accountsByID {
		if strings.EqualFold(existing.Code, account.Code) {
			return nil, store.ErrConflict
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	s.accountsByID[account.ID] = account
	created := account
	return &created, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(s.accountsByID))
	for _, a := range s.accountsByID {
		accounts = append(accounts, a)
	}
	// Mirrors the API contract: ordered by type descending, then code.
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Type != accounts[j].Type {
			return accounts[i].Type > accounts[j].Type
		}
		return accounts[i].Code < accounts[j].Code
	})
	return accounts, nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accountsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := account
	return &found, nil
}

func (s *Store) UpdateAccount(_ context.Context, account domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accountsByID[account.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.accountsByID[account.ID] = account
	saved := account
	return &saved, nil
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	s.expensesByID[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, from, to *time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		expenses = append(expenses, e)
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].Date.After(expenses[j].Date) })
	return expenses, nil
}

// withCategory attaches the category row to a product copy. Callers must hold
// at least the read lock.
func (s *Store) withCategory(product domain.Product) domain.Product {
	if product.CategoryID == "" {
		return product
	}
	if category, ok := s.categoriesByID[product.CategoryID]; ok {
		c := category
		product.Category = &c
	}
	return product
}

func cloneBill(bill domain.Bill) domain.Bill {
	rounds := make([]domain.Round, len(bill.Rounds))
	copy(rounds, bill.Rounds)
	for i := range rounds {
		items := make([]domain.RoundItem, len(rounds[i].Items))
		copy(items, rounds[i].Items)
		rounds[i].Items = items
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber < rounds[j].RoundNumber })
	bill.Rounds = rounds
	return bill
}

func billTotal(bill domain.Bill) float64 {
	total := 0.0
	for _, round := range bill.Rounds {
		for _, item := range round.Items {
			total += item.Price * float64(item.Quantity)
		}
	}
	return total
}
