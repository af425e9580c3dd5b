package store

import (
	"context"
	"errors"
	"time"

	"fairywren/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the persistence boundary. Implementations must apply every
// multi-row mutation (bill round + items + stock decrements, stock-take
// header + items) atomically.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByFingerprint(ctx context.Context, fingerprint string) (*domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)

	// Categories
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)

	// Products
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetStock(ctx context.Context, productID string, quantity int) (*domain.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int, allowNegative bool) (*domain.Product, error)
	CreateStockTake(ctx context.Context, stockTake domain.StockTake) (*domain.StockTake, error)
	ListStockTakes(ctx context.Context, limit int) ([]domain.StockTake, error)

	// Bills
	CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	GetBillByID(ctx context.Context, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, onlyOpen bool) ([]domain.Bill, error)
	ListCompletedBills(ctx context.Context, from, to *time.Time) ([]domain.Bill, error)
	AddRound(ctx context.Context, round domain.Round, allowNegative bool) (*domain.Round, error)
	MarkBillPaid(ctx context.Context, billID string, payment domain.Payment, markedBy string, at time.Time) (*domain.Bill, error)
	ConfirmBill(ctx context.Context, billID string, confirmedBy string, at time.Time) (*domain.Bill, error)

	// Suppliers
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	// Chart of accounts
	CreateAccount(ctx context.Context, account domain.Account) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, account domain.Account) (*domain.Account, error)

	// Expenses
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from, to *time.Time) ([]domain.Expense, error)
}
