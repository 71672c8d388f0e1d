package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

const addressColumns = `id, user_id, street_address, city, state, postal_code, country, address_type,
	is_primary, created_at, updated_at`

// AddressRepository stores user addresses. Every write that can touch the
// primary flag runs in one transaction holding row locks on the user's
// addresses, so at most one address per user is primary.
type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, addr *models.Address) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if addr.IsPrimary {
			if err := clearPrimary(ctx, tx, addr.UserID, addr.ID, addr.UpdatedAt); err != nil {
				return err
			}
		}
		query := `
			INSERT INTO addresses (id, user_id, street_address, city, state, postal_code, country,
				address_type, is_primary, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			addr.ID, addr.UserID, addr.StreetAddress, addr.City, nullString(addr.State),
			addr.PostalCode, addr.Country, nullString(string(addr.AddressType)),
			addr.IsPrimary, addr.CreatedAt, addr.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errs.Duplicate("user already has a primary address")
			}
			return fmt.Errorf("failed to create address: %w", err)
		}
		return nil
	})
}

func (r *AddressRepository) GetByID(ctx context.Context, id string) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	return scanAddress(r.db.QueryRowContext(ctx, query, id))
}

func (r *AddressRepository) List(ctx context.Context) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses ORDER BY created_at`
	return r.list(ctx, query)
}

// ListByUserID returns a user's addresses, primary first.
func (r *AddressRepository) ListByUserID(ctx context.Context, userID string) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY is_primary DESC, created_at`
	return r.list(ctx, query, userID)
}

func (r *AddressRepository) list(ctx context.Context, query string, args ...any) ([]models.Address, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, *addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

func (r *AddressRepository) Update(ctx context.Context, addr *models.Address) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if addr.IsPrimary {
			if err := clearPrimary(ctx, tx, addr.UserID, addr.ID, addr.UpdatedAt); err != nil {
				return err
			}
		}
		query := `
			UPDATE addresses
			SET street_address = $2, city = $3, state = $4, postal_code = $5, country = $6,
				address_type = $7, is_primary = $8, updated_at = $9
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, query,
			addr.ID, addr.StreetAddress, addr.City, nullString(addr.State), addr.PostalCode,
			addr.Country, nullString(string(addr.AddressType)), addr.IsPrimary, addr.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errs.Duplicate("user already has a primary address")
			}
			return fmt.Errorf("failed to update address: %w", err)
		}
		return expectOneRow(result, "address not found")
	})
}

func (r *AddressRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return expectOneRow(result, "address not found")
}

// SetPrimary makes the address the only primary address of its owner.
func (r *AddressRepository) SetPrimary(ctx context.Context, id string, at time.Time) (*models.Address, error) {
	var updated *models.Address
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var userID string
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM addresses WHERE id = $1`, id).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("address not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get address: %w", err)
		}

		if err := clearPrimary(ctx, tx, userID, id, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE addresses SET is_primary = TRUE, updated_at = $2 WHERE id = $1 AND NOT is_primary`,
			id, at,
		); err != nil {
			return fmt.Errorf("failed to set primary address: %w", err)
		}

		query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
		updated, err = scanAddress(tx.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// clearPrimary locks the owner and its addresses, then unsets the primary flag
// on every address except keepID. The owner lock also serialises writers for a
// user who has no addresses yet.
func clearPrimary(ctx context.Context, tx *sql.Tx, userID, keepID string, at time.Time) error {
	var locked string
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM addresses WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return fmt.Errorf("failed to lock addresses: %w", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock addresses: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE addresses SET is_primary = FALSE, updated_at = $3 WHERE user_id = $1 AND is_primary AND id <> $2`,
		userID, keepID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to clear primary address: %w", err)
	}
	return nil
}

func scanAddress(row rowScanner) (*models.Address, error) {
	var addr models.Address
	var state, addressType sql.NullString

	err := row.Scan(
		&addr.ID, &addr.UserID, &addr.StreetAddress, &addr.City, &state, &addr.PostalCode,
		&addr.Country, &addressType, &addr.IsPrimary, &addr.CreatedAt, &addr.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("address not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	addr.State = state.String
	addr.AddressType = models.AddressType(addressType.String)
	return &addr, nil
}
