package backend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

// SQLStore is the Backend over MySQL (TiDB in production) or SQLite.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects to the database, registers the "tidb" TLS profile when the
// DSN asks for it and creates missing tables.
func Open(ctx context.Context, driver, dsn, caPath string, logger *zap.Logger) (*SQLStore, error) {
	if driver == "mysql" && strings.Contains(dsn, "tls=tidb") {
		registerTiDBTLS(caPath, logger)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" {
		// one connection so that ":memory:" databases are shared
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s, err := NewSQLStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open handle and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sql.DB, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ensureTables(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}
	return &SQLStore{db: db, logger: logger, now: time.Now}, nil
}

func registerTiDBTLS(caPath string, logger *zap.Logger) {
	pool := x509.NewCertPool()
	b, err := os.ReadFile(caPath)
	switch {
	case err != nil:
		logger.Warn("could not read CA file, falling back to InsecureSkipVerify", zap.String("path", caPath), zap.Error(err))
		mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
	case !pool.AppendCertsFromPEM(b):
		logger.Warn("could not parse CA file, falling back to InsecureSkipVerify", zap.String("path", caPath))
		mysql.RegisterTLSConfig("tidb", &tls.Config{InsecureSkipVerify: true})
	default:
		mysql.RegisterTLSConfig("tidb", &tls.Config{RootCAs: pool})
	}
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListStores(ctx context.Context) ([]models.Store, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, COALESCE(address, ''), COALESCE(slug, '') FROM stores ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()
	out := []models.Store{}
	for rows.Next() {
		var st models.Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Address, &st.Slug); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// AddStore inserts a shop location. Stores are managed outside the admin
// API; this exists for provisioning and tests.
func (s *SQLStore) AddStore(ctx context.Context, st models.Store) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO stores (id, name, address, slug) VALUES (?, ?, ?, ?)",
		st.ID, st.Name, st.Address, st.Slug)
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

// AddCategory inserts a category.
func (s *SQLStore) AddCategory(ctx context.Context, c models.Category) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO categories (id, name) VALUES (?, ?)", c.ID, c.Name); err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// PutProfile inserts a profile row, balance included.
func (s *SQLStore) PutProfile(ctx context.Context, p models.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_profiles
        (id, name, email, address, whatsapp, points, loyalty_ratio, wallet_balance_cents)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.Address, p.WhatsApp, p.Points, p.LoyaltyRatio, int64(p.WalletBalanceCents))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(p.description_markdown, ''),
        p.price_whole_cents, p.price_slice_cents, p.sale_price_whole_cents, p.sale_price_slice_cents,
        p.stock_count, COALESCE(p.image_url, ''), COALESCE(p.category_id, ''), COALESCE(c.name, ''), p.created_at
        FROM products p LEFT JOIN categories c ON p.category_id = c.id
        ORDER BY p.created_at DESC, p.name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	index := make(map[string]int)
	for rows.Next() {
		var (
			p                   models.Product
			saleWhole, saleSlic sql.NullInt64
			created             interface{}
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DescriptionMarkdown,
			&p.PriceWhole, &p.PriceSlice, &saleWhole, &saleSlic,
			&p.StockCount, &p.Image, &p.CategoryID, &p.Category, &created); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.SalePriceWhole = nullCents(saleWhole)
		p.SalePriceSlice = nullCents(saleSlic)
		p.CreatedAt = scanTime(created)
		p.Images = []string{}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if products == nil {
		return []models.Product{}, nil
	}

	if err := s.attachImages(ctx, products, index); err != nil {
		return nil, err
	}
	if err := s.attachAvailability(ctx, products, index); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *SQLStore) attachImages(ctx context.Context, products []models.Product, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, "SELECT product_id, image_url FROM product_images ORDER BY product_id, sort_order")
	if err != nil {
		return fmt.Errorf("query product images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return fmt.Errorf("scan product image: %w", err)
		}
		if i, ok := index[id]; ok {
			products[i].Images = append(products[i].Images, url)
		}
	}
	return rows.Err()
}

// attachAvailability derives each product's out-of-stock list: a store with
// no inventory row for the product is out of stock.
func (s *SQLStore) attachAvailability(ctx context.Context, products []models.Product, index map[string]int) error {
	stores, err := s.ListStores(ctx)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT product_id, store_id FROM inventory")
	if err != nil {
		return fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()
	stocked := make(map[string]map[string]bool)
	for rows.Next() {
		var pid, sid string
		if err := rows.Scan(&pid, &sid); err != nil {
			return fmt.Errorf("scan inventory: %w", err)
		}
		if stocked[pid] == nil {
			stocked[pid] = make(map[string]bool)
		}
		stocked[pid][sid] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for id, i := range index {
		products[i].OutOfStockStores = []string{}
		for _, st := range stores {
			if !stocked[id][st.ID] {
				products[i].OutOfStockStores = append(products[i].OutOfStockStores, st.ID)
			}
		}
	}
	return nil
}

func (s *SQLStore) GetProfile(ctx context.Context, id string) (models.UserProfile, error) {
	var p models.UserProfile
	row := s.db.QueryRowContext(ctx, `SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(address, ''),
        COALESCE(whatsapp, ''), points, loyalty_ratio, wallet_balance_cents
        FROM user_profiles WHERE id = ?`, id)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Address, &p.WhatsApp, &p.Points, &p.LoyaltyRatio, &p.WalletBalanceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}

// UpdateProfile rewrites the contact fields and loyalty ratio. Points and
// balance only move through their own operations.
func (s *SQLStore) UpdateProfile(ctx context.Context, p models.UserProfile) error {
	if err := s.mustExist(ctx, s.db, "user_profiles", p.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE user_profiles SET name = ?, email = ?, address = ?, whatsapp = ?, loyalty_ratio = ?
        WHERE id = ?`, p.Name, p.Email, p.Address, p.WhatsApp, p.LoyaltyRatio, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *SQLStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT o.id, o.user_id, COALESCE(u.name, ''), COALESCE(o.store_id, ''),
        o.total_cents, o.status, o.payment_method, o.created_at
        FROM orders o LEFT JOIN user_profiles u ON o.user_id = u.id
        ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()
	orders := []models.Order{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			o       models.Order
			created interface{}
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.StoreID, &o.TotalCents, &o.Status, &o.PaymentMethod, &created); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CreatedAt = scanTime(created)
		o.Items = []models.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemRows, err := s.db.QueryContext(ctx, "SELECT order_id, product_id, sale_type, quantity, price_cents FROM order_items ORDER BY order_id, line_no")
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			orderID string
			it      models.OrderItem
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.Type, &it.Quantity, &it.PriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, itemRows.Err()
}

func (s *SQLStore) CreateProduct(ctx context.Context, p models.Product, storeIDs []string) (models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO products (id, name, description, description_markdown,
            price_whole_cents, price_slice_cents, sale_price_whole_cents, sale_price_slice_cents,
            stock_count, image_url, category_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, p.DescriptionMarkdown,
			int64(p.PriceWhole), int64(p.PriceSlice), centsArg(p.SalePriceWhole), centsArg(p.SalePriceSlice),
			p.StockCount, p.Image, sqlNullString(p.CategoryID))
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return writeProductChildren(ctx, tx, p, storeIDs)
	})
	if err != nil {
		return models.Product{}, err
	}
	p.Category = s.categoryName(ctx, p.CategoryID)
	p.OutOfStockStores = outOfStock(availableStores(p, storeIDs), storeIDs)
	p.CreatedAt = s.now()
	return p, nil
}

func (s *SQLStore) UpdateProduct(ctx context.Context, p models.Product, storeIDs []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// RowsAffected is unreliable on MySQL when nothing changed, so
		// existence is checked up front.
		if err := s.mustExist(ctx, tx, "products", p.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE products SET name = ?, description = ?, description_markdown = ?,
            price_whole_cents = ?, price_slice_cents = ?, sale_price_whole_cents = ?, sale_price_slice_cents = ?,
            stock_count = ?, image_url = ?, category_id = ? WHERE id = ?`,
			p.Name, p.Description, p.DescriptionMarkdown,
			int64(p.PriceWhole), int64(p.PriceSlice), centsArg(p.SalePriceWhole), centsArg(p.SalePriceSlice),
			p.StockCount, p.Image, sqlNullString(p.CategoryID), p.ID)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM product_images WHERE product_id = ?", p.ID); err != nil {
			return fmt.Errorf("clear product images: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM inventory WHERE product_id = ?", p.ID); err != nil {
			return fmt.Errorf("clear inventory: %w", err)
		}
		return writeProductChildren(ctx, tx, p, storeIDs)
	})
}

func writeProductChildren(ctx context.Context, tx *sql.Tx, p models.Product, storeIDs []string) error {
	for i, url := range p.Images {
		if _, err := tx.ExecContext(ctx, "INSERT INTO product_images (product_id, sort_order, image_url) VALUES (?, ?, ?)",
			p.ID, i, url); err != nil {
			return fmt.Errorf("insert product image: %w", err)
		}
	}
	for _, sid := range availableStores(p, storeIDs) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO inventory (product_id, store_id) VALUES (?, ?)", p.ID, sid); err != nil {
			return fmt.Errorf("insert inventory: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (id, user_id, store_id, total_cents, status, payment_method)
            VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, o.UserID, o.StoreID, int64(o.TotalCents), string(o.Status), string(o.PaymentMethod))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, it := range o.Items {
			if _, err := tx.ExecContext(ctx, `INSERT INTO order_items (order_id, line_no, product_id, sale_type, quantity, price_cents)
                VALUES (?, ?, ?, ?, ?, ?)`, o.ID, i, it.ProductID, string(it.Type), it.Quantity, int64(it.PriceCents)); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}
	o.CreatedAt = s.now()
	return o, nil
}

// DebitWallet takes the amount in one transaction. The balance check is
// part of the UPDATE so two concurrent debits cannot both pass it.
func (s *SQLStore) DebitWallet(ctx context.Context, d WalletDebit) error {
	if d.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if replayed, err := ledgerHas(ctx, tx, d.IdempotencyKey); err != nil || replayed {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE user_profiles SET wallet_balance_cents = wallet_balance_cents - ?
            WHERE id = ? AND wallet_balance_cents >= ?`, int64(d.AmountCents), d.UserID, int64(d.AmountCents))
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		} else if n == 0 {
			if err := s.mustExist(ctx, tx, "user_profiles", d.UserID); err != nil {
				return err
			}
			return ErrInsufficientFunds
		}
		return ledgerAppend(ctx, tx, d, -d.AmountCents)
	})
}

func (s *SQLStore) RefundWallet(ctx context.Context, d WalletDebit) error {
	if d.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if replayed, err := ledgerHas(ctx, tx, d.IdempotencyKey); err != nil || replayed {
			return err
		}
		if err := s.mustExist(ctx, tx, "user_profiles", d.UserID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE user_profiles SET wallet_balance_cents = wallet_balance_cents + ? WHERE id = ?",
			int64(d.AmountCents), d.UserID); err != nil {
			return fmt.Errorf("refund wallet: %w", err)
		}
		return ledgerAppend(ctx, tx, d, d.AmountCents)
	})
}

func ledgerHas(ctx context.Context, tx *sql.Tx, key string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM wallet_ledger WHERE idempotency_key = ?", key).Scan(&n); err != nil {
		return false, fmt.Errorf("query wallet ledger: %w", err)
	}
	return n > 0, nil
}

func ledgerAppend(ctx context.Context, tx *sql.Tx, d WalletDebit, amount money.Cents) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO wallet_ledger (idempotency_key, user_id, order_id, amount_cents) VALUES (?, ?, ?, ?)",
		d.IdempotencyKey, d.UserID, d.OrderID, int64(amount))
	if err != nil {
		return fmt.Errorf("insert wallet ledger: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mustExist returns ErrNotFound unless table has a row with the given id.
// table is always a constant from this file.
func (s *SQLStore) mustExist(ctx context.Context, q queryer, table, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) categoryName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	var name string
	if err := s.db.QueryRowContext(ctx, "SELECT name FROM categories WHERE id = ?", id).Scan(&name); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("category lookup failed", zap.String("category_id", id), zap.Error(err))
		}
		return ""
	}
	return name
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// scanTime handles created_at, which arrives as time.Time, string or
// []byte depending on driver and DSN options.
func scanTime(v interface{}) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func nullCents(n sql.NullInt64) *money.Cents {
	if !n.Valid {
		return nil
	}
	c := money.Cents(n.Int64)
	return &c
}

func centsArg(c *money.Cents) interface{} {
	if c == nil {
		return nil
	}
	return int64(*c)
}

func sqlNullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
