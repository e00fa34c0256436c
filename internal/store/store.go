// Package store persists businesses, transactions, invoices and the audit
// trail in PostgreSQL. Amounts travel as strings on the wire (cast to
// numeric in SQL, scanned back via amount::text) so the database and the
// decimal arithmetic never go through float64.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/smefin/finhealth/internal/canonical"
	"github.com/smefin/finhealth/internal/textparse"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrBusinessNotFound means the business id does not exist.
	ErrBusinessNotFound = errors.New("business not found")
	// ErrNotOwner means the acting user does not own the business.
	ErrNotOwner = errors.New("user does not own this business")
)

// Business is a tenant that owns transactions.
type Business struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID string    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditEntry records one data-changing action against a business.
type AuditEntry struct {
	ID         int64     `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool against databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// CreateBusiness registers a new business owned by userID.
func (s *Store) CreateBusiness(ctx context.Context, name, userID string) (Business, error) {
	b := Business{
		ID:          uuid.New(),
		Name:        name,
		OwnerUserID: userID,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO businesses (id, name, owner_user_id) VALUES ($1, $2, $3) RETURNING created_at`,
		b.ID, b.Name, b.OwnerUserID,
	).Scan(&b.CreatedAt)
	if err != nil {
		return Business{}, fmt.Errorf("inserting business: %w", err)
	}
	return b, nil
}

// GetBusiness loads a business by id.
func (s *Store) GetBusiness(ctx context.Context, id uuid.UUID) (Business, error) {
	var b Business
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_user_id, created_at FROM businesses WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.OwnerUserID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, ErrBusinessNotFound
	}
	if err != nil {
		return Business{}, fmt.Errorf("loading business: %w", err)
	}
	return b, nil
}

// RequireBusinessOwner loads the business and verifies userID owns it.
func (s *Store) RequireBusinessOwner(ctx context.Context, id uuid.UUID, userID string) (Business, error) {
	b, err := s.GetBusiness(ctx, id)
	if err != nil {
		return Business{}, err
	}
	if b.OwnerUserID != userID {
		return Business{}, ErrNotOwner
	}
	return b, nil
}

// DeleteBusiness removes a business; transactions, invoices and audit rows
// cascade.
func (s *Store) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBusinessNotFound
	}
	return nil
}

// InsertTransactions stores a batch of canonical transactions for a business.
func (s *Store) InsertTransactions(ctx context.Context, businessID uuid.UUID, txns []canonical.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(
			`INSERT INTO transactions (business_id, txn_date, description, category, direction, amount)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			businessID, t.Date, t.Description, t.Category, string(t.Direction), t.Amount.String(),
		)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range txns {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("inserting transaction %d: %w", i, err)
		}
	}
	return len(txns), nil
}

// ListTransactions returns all transactions for a business in date order.
func (s *Store) ListTransactions(ctx context.Context, businessID uuid.UUID) ([]canonical.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT txn_date, description, category, direction, amount::text
		 FROM transactions WHERE business_id = $1 ORDER BY txn_date, id`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txns []canonical.Transaction
	for rows.Next() {
		var (
			t         canonical.Transaction
			direction string
			amount    string
		)
		if err := rows.Scan(&t.Date, &t.Description, &t.Category, &direction, &amount); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Direction = canonical.Direction(direction)
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing stored amount %q: %w", amount, err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// InsertInvoice stores a parsed invoice record.
func (s *Store) InsertInvoice(ctx context.Context, businessID uuid.UUID, inv textparse.Invoice) (int64, error) {
	var (
		date  *time.Time
		total *string
	)
	if !inv.Date.IsZero() {
		date = &inv.Date
	}
	if inv.HasTotal {
		v := inv.Total.String()
		total = &v
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO invoices (business_id, vendor_name, gstin, invoice_number, invoice_date, total)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric) RETURNING id`,
		businessID, inv.VendorName, inv.GSTIN, inv.Number, date, total,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting invoice: %w", err)
	}
	return id, nil
}

// LogAudit appends an audit entry. Audit failures are reported but callers
// typically log and continue rather than failing the user's request.
func (s *Store) LogAudit(ctx context.Context, businessID uuid.UUID, userID, action, detail string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (business_id, user_id, action, detail) VALUES ($1, $2, $3, $4)`,
		businessID, userID, action, detail,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit entries for a business.
func (s *Store) ListAudit(ctx context.Context, businessID uuid.UUID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_id, user_id, action, detail, created_at
		 FROM audit_log WHERE business_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		businessID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.UserID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
