package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/tickethub/internal/model"
)

// insertPurchase binds every column through a named parameter; values are
// never spliced into the SQL text.
const insertPurchase = `INSERT INTO ticket_purchases
    (concert_id, name, email, phone, quantity, credit_card, expiration, security_code,
     address, city, province, postal_code, country, purchase_date)
VALUES
    (:concert_id, :name, :email, :phone, :quantity, :credit_card, :expiration, :security_code,
     :address, :city, :province, :postal_code, :country, :purchase_date)`

// PurchaseRepo writes purchase records.  It is safe for concurrent use; each
// Insert borrows a pooled connection for the duration of one statement.
type PurchaseRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPurchaseRepo constructs a PurchaseRepo.  A zero timeout falls back to
// ten seconds.
func NewPurchaseRepo(db *sqlx.DB, timeout time.Duration) *PurchaseRepo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PurchaseRepo{db: db, timeout: timeout}
}

// Insert stores one purchase as a single atomic statement and returns the
// assigned id.
func (r *PurchaseRepo) Insert(ctx context.Context, rec model.PurchaseRecord) (uint64, error) {
	if r == nil || r.db == nil {
		return 0, ErrStoreNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.NamedExecContext(ctx, insertPurchase, rec)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s: %v", ErrStoreTimeout, r.timeout, err)
		}
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert purchase: last insert id: %w", err)
	}
	return uint64(id), nil
}
