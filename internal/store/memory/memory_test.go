package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/pin"
	"fairywren/backend/internal/store"
)

func seedProduct(t *testing.T, s *Store, name string, price float64, stock int) domain.Product {
	t.Helper()
	product, err := s.CreateProduct(context.Background(), domain.Product{
		Name:      name,
		Price:     price,
		Stock:     stock,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return *product
}

func seedBill(t *testing.T, s *Store) domain.Bill {
	t.Helper()
	bill, err := s.CreateBill(context.Background(), domain.Bill{
		CustomerName: "Table 1",
		CreatedBy:    "staff-1",
		Status:       domain.BillStatusOpen,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	return *bill
}

func TestAddRoundRecomputesBillTotal(t *testing.T) {
	s := New()
	ctx := context.Background()

	product := seedProduct(t, s, "Tusker", 100, 10)
	bill := seedBill(t, s)

	_, err := s.AddRound(ctx, domain.Round{
		BillID:      bill.ID,
		RoundNumber: 1,
		Items:       []domain.RoundItem{{ProductID: product.ID, ProductName: product.Name, Price: 100, Quantity: 2}},
	}, true)
	if err != nil {
		t.Fatalf("add round: %v", err)
	}

	got, err := s.GetBillByID(ctx, bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if got.TotalAmount != 200 {
		t.Fatalf("expected total 200, got %.2f", got.TotalAmount)
	}

	after, err := s.GetProductByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 8 {
		t.Fatalf("expected stock 8, got %d", after.Stock)
	}
}

func TestAddRoundRejectedLeavesNothingBehind(t *testing.T) {
	s := New()
	ctx := context.Background()

	cheap := seedProduct(t, s, "Soda", 80, 10)
	scarce := seedProduct(t, s, "Guinness", 300, 1)
	bill := seedBill(t, s)

	_, err := s.AddRound(ctx, domain.Round{
		BillID: bill.ID,
		Items: []domain.RoundItem{
			{ProductID: cheap.ID, Price: 80, Quantity: 2},
			{ProductID: scarce.ID, Price: 300, Quantity: 3},
		},
	}, false)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// The first item's decrement must not have been applied.
	got, err := s.GetProductByID(ctx, cheap.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 10 {
		t.Fatalf("expected stock 10 untouched, got %d", got.Stock)
	}
	reloaded, err := s.GetBillByID(ctx, bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(reloaded.Rounds) != 0 {
		t.Fatalf("expected no rounds after rejection, got %d", len(reloaded.Rounds))
	}
}

func TestBillStatusIsForwardOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	bill := seedBill(t, s)
	now := time.Now().UTC()

	if _, err := s.ConfirmBill(ctx, bill.ID, "staff-2", now); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict confirming open bill, got %v", err)
	}

	if _, err := s.MarkBillPaid(ctx, bill.ID, domain.Payment{PaymentType: "cash"}, "staff-1", now); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	done, err := s.ConfirmBill(ctx, bill.ID, "staff-2", now)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if done.Status != domain.BillStatusCompleted {
		t.Fatalf("expected completed, got %q", done.Status)
	}

	if _, err := s.MarkBillPaid(ctx, bill.ID, domain.Payment{PaymentType: "cash"}, "staff-1", now); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict re-marking completed bill, got %v", err)
	}
	if _, err := s.ConfirmBill(ctx, bill.ID, "staff-2", now); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict re-confirming completed bill, got %v", err)
	}
}

func TestFingerprintUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	fp := pin.Fingerprint("pepper", "1234")
	_, err := s.CreateUser(ctx, domain.User{Name: "A", Role: domain.RoleWaitress, PINFingerprint: fp, Active: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err = s.CreateUser(ctx, domain.User{Name: "B", Role: domain.RoleManager, PINFingerprint: fp, Active: true})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate fingerprint, got %v", err)
	}
}

func TestGetUserByFingerprintSkipsInactive(t *testing.T) {
	s := New()
	ctx := context.Background()

	fp := pin.Fingerprint("pepper", "1234")
	user, err := s.CreateUser(ctx, domain.User{Name: "A", Role: domain.RoleWaitress, PINFingerprint: fp, Active: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := s.GetUserByFingerprint(ctx, fp); err != nil {
		t.Fatalf("expected active user found, got %v", err)
	}

	user.Active = false
	if _, err := s.UpdateUser(ctx, *user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.GetUserByFingerprint(ctx, fp); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected inactive user hidden, got %v", err)
	}
}

func TestAccountCodeUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, domain.Account{Code: "4000", Name: "Sales", Type: domain.AccountTypeIncome, Active: true})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	_, err = s.CreateAccount(ctx, domain.Account{Code: "4000", Name: "Other", Type: domain.AccountTypeIncome, Active: true})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate code, got %v", err)
	}
}

func TestListCompletedBillsFiltersByRange(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for _, createdAt := range []time.Time{old, recent} {
		bill, err := s.CreateBill(ctx, domain.Bill{CustomerName: "T", CreatedBy: "x", Status: domain.BillStatusOpen, CreatedAt: createdAt})
		if err != nil {
			t.Fatalf("create bill: %v", err)
		}
		if _, err := s.MarkBillPaid(ctx, bill.ID, domain.Payment{PaymentType: "cash"}, "x", createdAt); err != nil {
			t.Fatalf("mark paid: %v", err)
		}
		if _, err := s.ConfirmBill(ctx, bill.ID, "y", createdAt); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	bills, err := s.ListCompletedBills(ctx, &from, &to)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("expected 1 bill in range, got %d", len(bills))
	}
	if !bills[0].CreatedAt.Equal(recent) {
		t.Fatalf("wrong bill returned: %+v", bills[0])
	}
}

func TestSeededStoreHasStaffAndCatalog(t *testing.T) {
	s := NewSeeded("test-pepper")
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("expected 4 seeded staff, got %d", len(users))
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	for _, p := range products {
		if p.Category == nil {
			t.Fatalf("seeded product %q missing category", p.Name)
		}
	}
}
