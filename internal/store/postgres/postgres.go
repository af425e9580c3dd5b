package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fairywren/backend/internal/domain"
	"fairywren/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, role, pin_hash, pin_fingerprint, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Name, user.Role, user.PINHash, user.PINFingerprint, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, pin_hash, pin_fingerprint, active, created_at
		FROM profiles
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.PINHash, &u.PINFingerprint, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, pin_hash, pin_fingerprint, active, created_at
		FROM profiles
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Role, &u.PINHash, &u.PINFingerprint, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByFingerprint(ctx context.Context, fingerprint string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, pin_hash, pin_fingerprint, active, created_at
		FROM profiles
		WHERE pin_fingerprint = $1 AND active = true
	`, fingerprint).Scan(&u.ID, &u.Name, &u.Role, &u.PINHash, &u.PINFingerprint, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = $2, role = $3, pin_hash = $4, pin_fingerprint = $5, active = $6
		WHERE id = $1
	`, user.ID, user.Name, user.Role, user.PINHash, user.PINFingerprint, user.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := user
	return &saved, nil
}

// Categories

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, category.ID, category.Name, category.Color, category.Active, category.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, active, created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, color, active, created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Color, &c.Active, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, color = $3, active = $4
		WHERE id = $1
	`, category.ID, category.Name, category.Color, category.Active)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := category
	return &saved, nil
}

// Products

const productColumns = `
	p.id, p.name, p.price, p.category_id, p.stock, p.image, p.image_url, p.image_path, p.active, p.created_at,
	c.id, c.name, c.color, c.active, c.created_at
`

func scanProduct(scanner interface{ Scan(dest ...any) error }) (domain.Product, error) {
	var p domain.Product
	var categoryID, imageURL, imagePath sql.NullString
	var cID, cName, cColor sql.NullString
	var cActive sql.NullBool
	var cCreated sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.Name, &p.Price, &categoryID, &p.Stock, &p.Image, &imageURL, &imagePath, &p.Active, &p.CreatedAt,
		&cID, &cName, &cColor, &cActive, &cCreated,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.CategoryID = categoryID.String
	p.ImageURL = imageURL.String
	p.ImagePath = imagePath.String
	p.CreatedAt = p.CreatedAt.UTC()
	if cID.Valid {
		p.Category = &domain.Category{
			ID:        cID.String,
			Name:      cName.String,
			Color:     cColor.String,
			Active:    cActive.Bool,
			CreatedAt: cCreated.Time.UTC(),
		}
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, category_id, stock, image, image_url, image_path, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, product.Price, nullIfEmpty(product.CategoryID), product.Stock,
		product.Image, nullIfEmpty(product.ImageURL), nullIfEmpty(product.ImagePath), product.Active, product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, category_id = $4, stock = $5, image = $6,
			image_url = $7, image_path = $8, active = $9
		WHERE id = $1
	`, product.ID, product.Name, product.Price, nullIfEmpty(product.CategoryID), product.Stock,
		product.Image, nullIfEmpty(product.ImageURL), nullIfEmpty(product.ImagePath), product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) SetStock(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock = $2 WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, productID)
}

// AdjustStock applies a relative stock change as a single UPDATE so two
// concurrent adjustments never lose an increment.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int, allowNegative bool) (*domain.Product, error) {
	query := `UPDATE products SET stock = stock + $2 WHERE id = $1`
	if !allowNegative {
		query += ` AND stock + $2 >= 0`
	}
	result, err := s.db.ExecContext(ctx, query, productID, delta)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, getErr := s.GetProductByID(ctx, productID); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInsufficientStock
	}
	return s.GetProductByID(ctx, productID)
}

func (s *Store) CreateStockTake(ctx context.Context, stockTake domain.StockTake) (*domain.StockTake, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_takes (id, performed_by, performed_by_name, notes, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, stockTake.ID, stockTake.PerformedBy, stockTake.PerformedByName, stockTake.Notes, stockTake.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range stockTake.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_take_items (id, stock_take_id, product_id, product_name, expected_quantity, actual_quantity, variance)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, stockTake.ID, item.ProductID, item.ProductName, item.Expected, item.Actual, item.Variance)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := stockTake
	return &created, nil
}

func (s *Store) ListStockTakes(ctx context.Context, limit int) ([]domain.StockTake, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, performed_by, performed_by_name, notes, created_at
		FROM stock_takes
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	takes := make([]domain.StockTake, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var st domain.StockTake
		if err := rows.Scan(&st.ID, &st.PerformedBy, &st.PerformedByName, &st.Notes, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.CreatedAt = st.CreatedAt.UTC()
		st.Items = []domain.StockTakeItem{}
		takes = append(takes, st)
		ids = append(ids, st.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return takes, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT id, stock_take_id, product_id, product_name, expected_quantity, actual_quantity, variance
		FROM stock_take_items
		WHERE stock_take_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemsByTake := make(map[string][]domain.StockTakeItem)
	for itemRows.Next() {
		var item domain.StockTakeItem
		if err := itemRows.Scan(&item.ID, &item.StockTakeID, &item.ProductID, &item.ProductName, &item.Expected, &item.Actual, &item.Variance); err != nil {
			return nil, err
		}
		itemsByTake[item.StockTakeID] = append(itemsByTake[item.StockTakeID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range takes {
		if items, ok := itemsByTake[takes[i].ID]; ok {
			takes[i].Items = items
		}
	}
	return takes, nil
}

// Bills

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (id, customer_name, created_by, created_by_name, status, total_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, bill.ID, bill.CustomerName, bill.CreatedBy, nullIfEmpty(bill.CreatedByName), bill.Status, bill.TotalAmount, bill.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := bill
	if created.Rounds == nil {
		created.Rounds = []domain.Round{}
	}
	return &created, nil
}

const billColumns = `
	id, customer_name, created_by, created_by_name, status, payment_method, payment_ref,
	marked_paid_by, marked_paid_at, confirmed_by, confirmed_at, total_amount, created_at
`

func scanBill(scanner interface{ Scan(dest ...any) error }) (domain.Bill, error) {
	var b domain.Bill
	var createdByName, paymentMethod, paymentRef, markedPaidBy, confirmedBy sql.NullString
	var markedPaidAt, confirmedAt sql.NullTime

	err := scanner.Scan(
		&b.ID, &b.CustomerName, &b.CreatedBy, &createdByName, &b.Status, &paymentMethod, &paymentRef,
		&markedPaidBy, &markedPaidAt, &confirmedBy, &confirmedAt, &b.TotalAmount, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bill{}, err
	}
	b.CreatedByName = createdByName.String
	b.PaymentMethod = paymentMethod.String
	b.PaymentRef = paymentRef.String
	b.MarkedPaidBy = markedPaidBy.String
	b.ConfirmedBy = confirmedBy.String
	b.CreatedAt = b.CreatedAt.UTC()
	if markedPaidAt.Valid {
		t := markedPaidAt.Time.UTC()
		b.MarkedPaidAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		b.ConfirmedAt = &t
	}
	b.Rounds = []domain.Round{}
	return b, nil
}

func (s *Store) GetBillByID(ctx context.Context, id string) (*domain.Bill, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	bills := []domain.Bill{bill}
	if err := s.attachRounds(ctx, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, onlyOpen bool) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills`
	args := []any{}
	if onlyOpen {
		query += ` WHERE status = $1`
		args = append(args, domain.BillStatusOpen)
	}
	query += ` ORDER BY created_at DESC`

	return s.queryBills(ctx, query, args...)
}

func (s *Store) ListCompletedBills(ctx context.Context, from, to *time.Time) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE status = $1`
	args := []any{domain.BillStatusCompleted}
	if from != nil && to != nil {
		query += ` AND created_at >= $2 AND created_at <= $3`
		args = append(args, *from, *to)
	}
	query += ` ORDER BY created_at DESC`

	return s.queryBills(ctx, query, args...)
}

func (s *Store) queryBills(ctx context.Context, query string, args ...any) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachRounds(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (s *Store) attachRounds(ctx context.Context, bills []domain.Bill) error {
	if len(bills) == 0 {
		return nil
	}

	billIDs := make([]string, 0, len(bills))
	for _, b := range bills {
		billIDs = append(billIDs, b.ID)
	}

	roundRows, err := s.db.QueryContext(ctx, `
		SELECT id, bill_id, round_number, created_by, created_at
		FROM rounds
		WHERE bill_id = ANY($1)
		ORDER BY round_number
	`, billIDs)
	if err != nil {
		return err
	}
	defer roundRows.Close()

	roundsByBill := make(map[string][]domain.Round)
	roundIDs := make([]string, 0, 32)
	roundIndex := make(map[string]*domain.Round)
	for roundRows.Next() {
		var r domain.Round
		if err := roundRows.Scan(&r.ID, &r.BillID, &r.RoundNumber, &r.CreatedBy, &r.CreatedAt); err != nil {
			return err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		r.Items = []domain.RoundItem{}
		roundsByBill[r.BillID] = append(roundsByBill[r.BillID], r)
		roundIDs = append(roundIDs, r.ID)
	}
	if err := roundRows.Err(); err != nil {
		return err
	}
	for billID := range roundsByBill {
		rounds := roundsByBill[billID]
		for i := range rounds {
			roundIndex[rounds[i].ID] = &rounds[i]
		}
	}

	if len(roundIDs) > 0 {
		itemRows, err := s.db.QueryContext(ctx, `
			SELECT id, round_id, product_id, product_name, price, quantity
			FROM round_items
			WHERE round_id = ANY($1)
		`, roundIDs)
		if err != nil {
			return err
		}
		defer itemRows.Close()

		for itemRows.Next() {
			var item domain.RoundItem
			if err := itemRows.Scan(&item.ID, &item.RoundID, &item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
				return err
			}
			if round, ok := roundIndex[item.RoundID]; ok {
				round.Items = append(round.Items, item)
			}
		}
		if err := itemRows.Err(); err != nil {
			return err
		}
	}

	for i := range bills {
		if rounds, ok := roundsByBill[bills[i].ID]; ok {
			bills[i].Rounds = rounds
		}
	}
	return nil
}

// AddRound inserts the round, its items and the per-item stock decrements in
// one transaction, so a failed decrement rolls the round back instead of
// leaving stock and bill history inconsistent.
func (s *Store) AddRound(ctx context.Context, round domain.Round, allowNegative bool) (*domain.Round, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var billStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bills WHERE id = $1 FOR UPDATE`, round.BillID).Scan(&billStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (id, bill_id, round_number, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, round.ID, round.BillID, round.RoundNumber, round.CreatedBy, round.CreatedAt)
	if err != nil {
		return nil, err
	}

	roundTotal := 0.0
	for _, item := range round.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO round_items (id, round_id, product_id, product_name, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, round.ID, item.ProductID, item.ProductName, item.Price, item.Quantity)
		if err != nil {
			return nil, err
		}
		roundTotal += item.Price * float64(item.Quantity)

		query := `UPDATE products SET stock = stock - $2 WHERE id = $1`
		if !allowNegative {
			query += ` AND stock - $2 >= 0`
		}
		result, err := tx.ExecContext(ctx, query, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		if !allowNegative {
			affected, err := result.RowsAffected()
			if err != nil {
				return nil, err
			}
			if affected == 0 {
				// Distinguish a missing product (tolerated, matches the
				// observed best-effort behavior) from a stock floor hit.
				var exists bool
				if err := tx.QueryRowContext(ctx, `SELECT true FROM products WHERE id = $1`, item.ProductID).Scan(&exists); err == nil {
					return nil, store.ErrInsufficientStock
				}
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bills SET total_amount = total_amount + $2 WHERE id = $1
	`, round.BillID, roundTotal)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := round
	return &created, nil
}

func (s *Store) MarkBillPaid(ctx context.Context, billID string, payment domain.Payment, markedBy string, at time.Time) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE bills
		SET status = $2, payment_method = $3, payment_ref = $4, marked_paid_by = $5, marked_paid_at = $6
		WHERE id = $1 AND status <> $7
	`, billID, domain.BillStatusAwaiting, payment.PaymentType, nullIfEmpty(payment.RefCode), markedBy, at, domain.BillStatusCompleted)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM bills WHERE id = $1`, billID).Scan(&exists); err != nil {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, bill_id, amount, payment_type, ref_code, confirmed, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,false,$6,$7)
	`, payment.ID, billID, payment.Amount, payment.PaymentType, nullIfEmpty(payment.RefCode), payment.CreatedBy, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetBillByID(ctx, billID)
}

func (s *Store) ConfirmBill(ctx context.Context, billID string, confirmedBy string, at time.Time) (*domain.Bill, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE bills
		SET status = $2, confirmed_by = $3, confirmed_at = $4
		WHERE id = $1 AND status = $5
	`, billID, domain.BillStatusCompleted, confirmedBy, at, domain.BillStatusAwaiting)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM bills WHERE id = $1`, billID).Scan(&exists); err != nil {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET confirmed = true WHERE bill_id = $1
	`, billID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetBillByID(ctx, billID)
}

// Suppliers

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), supplier.Active, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, active, created_at
		FROM suppliers
		ORDER BY name DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sp domain.Supplier
		var phone, email sql.NullString
		if err := rows.Scan(&sp.ID, &sp.Name, &phone, &email, &sp.Active, &sp.CreatedAt); err != nil {
			return nil, err
		}
		sp.Phone = phone.String
		sp.Email = email.String
		sp.CreatedAt = sp.CreatedAt.UTC()
		suppliers = append(suppliers, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var sp domain.Supplier
	var phone, email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, active, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name, &phone, &email, &sp.Active, &sp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sp.Phone = phone.String
	sp.Email = email.String
	sp.CreatedAt = sp.CreatedAt.UTC()
	return &sp, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, phone = $3, email = $4, active = $5
		WHERE id = $1
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), supplier.Active)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := supplier
	return &saved, nil
}

// Chart of accounts

func (s *Store) CreateAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chart_of_accounts (id, code, name, type, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, account.ID, account.Code, account.Name, account.Type, account.Active, account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := account
	return &created, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, type, active, created_at
		FROM chart_of_accounts
		ORDER BY type DESC, code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0, 16)
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, type, active, created_at
		FROM chart_of_accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chart_of_accounts
		SET code = $2, name = $3, type = $4, active = $5
		WHERE id = $1
	`, account.ID, account.Code, account.Name, account.Type, account.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := account
	return &saved, nil
}

// Expenses

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, date, supplier_id, account_id, description, invoice_number, amount, created_by, created_by_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, expense.ID, expense.Date, nullIfEmpty(expense.SupplierID), nullIfEmpty(expense.AccountID),
		expense.Description, nullIfEmpty(expense.InvoiceNumber), expense.Amount,
		expense.CreatedBy, nullIfEmpty(expense.CreatedByName), expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, from, to *time.Time) ([]domain.Expense, error) {
	query := `
		SELECT id, date, supplier_id, account_id, description, invoice_number, amount, created_by, created_by_name, created_at
		FROM expenses
	`
	args := []any{}
	if from != nil && to != nil {
		query += ` WHERE date >= $1 AND date <= $2`
		args = append(args, *from, *to)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 32)
	for rows.Next() {
		var e domain.Expense
		var supplierID, accountID, invoiceNumber, createdByName sql.NullString
		if err := rows.Scan(&e.ID, &e.Date, &supplierID, &accountID, &e.Description, &invoiceNumber, &e.Amount, &e.CreatedBy, &createdByName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SupplierID = supplierID.String
		e.AccountID = accountID.String
		e.InvoiceNumber = invoiceNumber.String
		e.CreatedByName = createdByName.String
		e.Date = e.Date.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
