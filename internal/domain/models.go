package domain

import (
	"encoding/json"
	"time"
)

// Role names as stored on a profile row. The frontend decides which screens
// each role sees; the backend only gates mutating admin endpoints.
const (
	RoleWaitress  = "waitress"
	RoleBartender = "bartender"
	RoleManager   = "manager"
	RoleOwner     = "owner"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleWaitress, RoleBartender, RoleManager, RoleOwner:
		return true
	}
	return false
}

// Bill statuses. Transitions are strictly forward:
// open -> awaiting_confirmation -> completed.
const (
	BillStatusOpen      = "open"
	BillStatusAwaiting  = "awaiting_confirmation"
	BillStatusCompleted = "completed"
)

// Chart-of-account types.
const (
	AccountTypeAsset            = "asset"
	AccountTypeCurrentAsset     = "current_asset"
	AccountTypeLiability        = "liability"
	AccountTypeCurrentLiability = "current_liability"
	AccountTypeEquity           = "equity"
	AccountTypeIncome           = "income"
	AccountTypeExpense          = "expense"
	AccountTypeCostOfSales      = "cost_of_sales"
)

func IsValidAccountType(accountType string) bool {
	switch accountType {
	case AccountTypeAsset, AccountTypeCurrentAsset, AccountTypeLiability,
		AccountTypeCurrentLiability, AccountTypeEquity, AccountTypeIncome,
		AccountTypeExpense, AccountTypeCostOfSales:
		return true
	}
	return false
}

// User is a staff profile. PIN credentials never leave the backend.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	PINHash        string    `json:"-"`
	PINFingerprint string    `json:"-"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
	Role string `json:"role"`
}

type UserUpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	PIN    *string `json:"pin,omitempty"`
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type CategoryUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Product prices are floating-point KES amounts, matching the rest of the
// system. Image holds an emoji fallback when no uploaded image exists.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	CategoryID string    `json:"category_id,omitempty"`
	Category   *Category `json:"category,omitempty"`
	Stock      int       `json:"stock"`
	Image      string    `json:"image"`
	ImageURL   string    `json:"image_url,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	CategoryID string   `json:"category_id"`
	Stock      int      `json:"stock"`
	Image      string   `json:"image"`
	ImageURL   string   `json:"image_url"`
	ImagePath  string   `json:"image_path"`
	Active     *bool    `json:"active"`
}

type ProductUpdateRequest struct {
	Name       *string  `json:"name,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	CategoryID *string  `json:"category_id,omitempty"`
	Stock      *int     `json:"stock,omitempty"`
	Image      *string  `json:"image,omitempty"`
	ImageURL   *string  `json:"image_url,omitempty"`
	ImagePath  *string  `json:"image_path,omitempty"`
}

type StockSetRequest struct {
	Quantity *int `json:"quantity"`
}

// ActiveToggleRequest accepts either field name: the frontend sends {active}
// on PATCH .../status and {status} on DELETE /products/:id.
type ActiveToggleRequest struct {
	Active *bool `json:"active"`
	Status *bool `json:"status"`
}

// RoundItem snapshots product name and unit price at sale time so later
// catalog edits never alter historical bills.
type RoundItem struct {
	ID          string  `json:"id"`
	RoundID     string  `json:"round_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type Round struct {
	ID          string      `json:"id"`
	BillID      string      `json:"bill_id"`
	RoundNumber int         `json:"round_number"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	Items       []RoundItem `json:"round_items"`
}

type Bill struct {
	ID            string     `json:"id"`
	CustomerName  string     `json:"customer_name"`
	CreatedBy     string     `json:"created_by"`
	CreatedByName string     `json:"created_by_name,omitempty"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	PaymentRef    string     `json:"payment_ref,omitempty"`
	MarkedPaidBy  string     `json:"marked_paid_by,omitempty"`
	MarkedPaidAt  *time.Time `json:"marked_paid_at,omitempty"`
	ConfirmedBy   string     `json:"confirmed_by,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	TotalAmount   float64    `json:"total_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	Rounds        []Round    `json:"rounds"`
}

type Payment struct {
	ID          string    `json:"id"`
	BillID      string    `json:"bill_id"`
	Amount      float64   `json:"amount"`
	PaymentType string    `json:"payment_type"`
	RefCode     string    `json:"ref_code,omitempty"`
	Confirmed   bool      `json:"confirmed"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type BillCreateRequest struct {
	CustomerName string `json:"customerName"`
	WaitressID   string `json:"waitressId"`
	WaitressName string `json:"waitressName"`
}

type RoundItemInput struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type RoundAddRequest struct {
	RoundNumber int              `json:"roundNumber"`
	Items       []RoundItemInput `json:"items"`
	AddedBy     string           `json:"addedBy"`
}

type RoundAddResponse struct {
	Round Round       `json:"round"`
	Items []RoundItem `json:"items"`
}

// MarkPaidRequest ignores the client-sent amount; the server bills the sum
// of the recorded rounds.
type MarkPaidRequest struct {
	PaymentMethod string          `json:"paymentMethod"`
	MpesaCode     string          `json:"mpesaCode"`
	MarkedBy      string          `json:"markedBy"`
	Amount        json.RawMessage `json:"amount,omitempty"`
}

type ConfirmPaymentRequest struct {
	ConfirmedBy string `json:"confirmedBy"`
}

type StockTakeItem struct {
	ID          string `json:"id"`
	StockTakeID string `json:"stock_take_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Expected    int    `json:"expected_quantity"`
	Actual      int    `json:"actual_quantity"`
	Variance    int    `json:"variance"`
}

type StockTake struct {
	ID              string          `json:"id"`
	PerformedBy     string          `json:"performed_by"`
	PerformedByName string          `json:"performed_by_name"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []StockTakeItem `json:"items"`
}

type StockTakeItemInput struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Expected    int    `json:"expected"`
	Actual      int    `json:"actual"`
}

type StockTakeRequest struct {
	PerformedBy     string               `json:"performedBy"`
	PerformedByName string               `json:"performedByName"`
	Notes           string               `json:"notes"`
	Items           []StockTakeItemInput `json:"items"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Account struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountCreateRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type AccountUpdateRequest struct {
	Code *string `json:"code,omitempty"`
	Name *string `json:"name,omitempty"`
	Type *string `json:"type,omitempty"`
}

type Expense struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	Description   string    `json:"description"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	Amount        float64   `json:"amount"`
	CreatedBy     string    `json:"created_by"`
	CreatedByName string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Date          string   `json:"date"`
	SupplierID    string   `json:"supplierId"`
	AccountID     string   `json:"accountId"`
	Description   string   `json:"description"`
	InvoiceNumber string   `json:"invoiceNumber"`
	Amount        *float64 `json:"amount"`
	AddedBy       string   `json:"addedBy"`
	AddedByName   string   `json:"addedByName"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Actor is the decoded token identity attached to each request.
type Actor struct {
	ID   string
	Role string
	Name string
}

type UploadResult struct {
	ImageURL  string `json:"image_url"`
	ImagePath string `json:"image_path"`
}

type SalesReport struct {
	TotalSales float64 `json:"totalSales"`
	BillCount  int     `json:"billCount"`
	Bills      []Bill  `json:"bills"`
}
