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

const passwordChangeColumns = `id, user_id, new_password_hash, status, admin_id, created_at, updated_at`

var errNoPendingRequest = errs.NotFound("no pending password change request")

// PasswordChangeRepository persists password change requests. Resolution is
// a compare-and-swap on status so a request leaves PENDING exactly once.
type PasswordChangeRepository struct {
	db *sql.DB
}

func NewPasswordChangeRepository(db *sql.DB) *PasswordChangeRepository {
	return &PasswordChangeRepository{db: db}
}

func (r *PasswordChangeRepository) Create(ctx context.Context, req *models.PasswordChangeRequest) error {
	query := `
		INSERT INTO password_change_requests (id, user_id, new_password_hash, status, admin_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.NewPasswordHash, req.Status, nullString(req.AdminID),
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Duplicate("a password change request is already pending")
		}
		return fmt.Errorf("failed to create password change request: %w", err)
	}
	return nil
}

func (r *PasswordChangeRepository) GetByID(ctx context.Context, id string) (*models.PasswordChangeRequest, error) {
	query := `SELECT ` + passwordChangeColumns + ` FROM password_change_requests WHERE id = $1`
	return scanPasswordChange(r.db.QueryRowContext(ctx, query, id), errs.NotFound("password change request not found"))
}

func (r *PasswordChangeRepository) FindPendingByUserID(ctx context.Context, userID string) (*models.PasswordChangeRequest, error) {
	query := `SELECT ` + passwordChangeColumns + ` FROM password_change_requests WHERE user_id = $1 AND status = 'PENDING'`
	return scanPasswordChange(r.db.QueryRowContext(ctx, query, userID), errNoPendingRequest)
}

// ListPending joins each pending request with its requester. A deleted or
// missing user yields empty name and email fields.
func (r *PasswordChangeRepository) ListPending(ctx context.Context) ([]models.PendingPasswordChangeView, error) {
	query := `
		SELECT p.id, p.user_id, p.status, p.created_at, p.updated_at,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.email, '')
		FROM password_change_requests p
		LEFT JOIN users u ON u.id = p.user_id AND u.deleted_at IS NULL
		WHERE p.status = 'PENDING'
		ORDER BY p.created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending password change requests: %w", err)
	}
	defer rows.Close()

	pending := []models.PendingPasswordChangeView{}
	for rows.Next() {
		var v models.PendingPasswordChangeView
		if err := rows.Scan(&v.ID, &v.UserID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&v.UserFirstName, &v.UserLastName, &v.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan pending password change request: %w", err)
		}
		pending = append(pending, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pending password change requests: %w", err)
	}
	return pending, nil
}

// Resolve moves a PENDING request to status and, when approved, installs the
// requested hash as the user's password in the same transaction. A request
// that is missing or already resolved yields a not-found error.
func (r *PasswordChangeRepository) Resolve(ctx context.Context, id, adminID string, status models.PasswordChangeStatus, at time.Time) (*models.PasswordChangeRequest, error) {
	var resolved *models.PasswordChangeRequest
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE password_change_requests
			SET status = $2, admin_id = $3, updated_at = $4
			WHERE id = $1 AND status = 'PENDING'
			RETURNING ` + passwordChangeColumns
		req, err := scanPasswordChange(tx.QueryRowContext(ctx, query, id, status, adminID, at), errNoPendingRequest)
		if err != nil {
			return err
		}

		if status == models.PasswordChangeApproved {
			result, err := tx.ExecContext(ctx,
				`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
				req.UserID, req.NewPasswordHash, at,
			)
			if err != nil {
				return fmt.Errorf("failed to apply new password: %w", err)
			}
			if err := expectOneRow(result, "user not found"); err != nil {
				return err
			}
		}
		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func scanPasswordChange(row rowScanner, notFound error) (*models.PasswordChangeRequest, error) {
	var req models.PasswordChangeRequest
	var adminID sql.NullString

	err := row.Scan(&req.ID, &req.UserID, &req.NewPasswordHash, &req.Status, &adminID,
		&req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get password change request: %w", err)
	}
	req.AdminID = adminID.String
	return &req, nil
}
