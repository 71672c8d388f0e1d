package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/umsys/user-management/shared/models"
)

// DeviceRepository stores push registration tokens.
type DeviceRepository struct {
	db *sql.DB
}

func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Register records the token for the user. A token moves to the latest user
// that registers it.
func (r *DeviceRepository) Register(ctx context.Context, device *models.UserDevice) error {
	query := `
		INSERT INTO user_devices (token, user_id, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
	`
	_, err := r.db.ExecContext(ctx, query, device.Token, device.UserID, nullString(device.Platform), device.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) ListByUserID(ctx context.Context, userID string) ([]models.UserDevice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token, user_id, platform, created_at FROM user_devices WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []models.UserDevice
	for rows.Next() {
		var d models.UserDevice
		var platform sql.NullString
		if err := rows.Scan(&d.Token, &d.UserID, &platform, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d.Platform = platform.String
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// DeleteToken drops a token the push provider reported as unregistered.
func (r *DeviceRepository) DeleteToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_devices WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
