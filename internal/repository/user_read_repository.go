package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/umsys/user-management/shared/models"
	sharedredis "github.com/umsys/user-management/shared/redis"
)

const userViewKeyPrefix = "user:view:"

// UserReadRepository handles all read operations for users.
// It uses Redis as the primary read store, falling back to PostgreSQL on a miss.
type UserReadRepository struct {
	db    *sql.DB
	cache *sharedredis.ViewCache[models.UserView]
}

func NewUserReadRepository(db *sql.DB, redisClient goredis.Cmdable, ttl time.Duration, logger *slog.Logger) *UserReadRepository {
	return &UserReadRepository{
		db:    db,
		cache: sharedredis.NewViewCache[models.UserView](redisClient, ttl, logger),
	}
}

// GetByID returns a UserView from Redis first, then PostgreSQL.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	cacheKey := userViewKeyPrefix + id

	if view, ok := r.cache.Get(ctx, cacheKey); ok {
		return view, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	view := models.NewUserView(user)
	r.CacheUserView(ctx, view)
	return view, nil
}

// GetByEmail always reads PostgreSQL; the read model is keyed by id only.
func (r *UserReadRepository) GetByEmail(ctx context.Context, email string) (*models.UserView, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, err
	}
	return models.NewUserView(user), nil
}

func (r *UserReadRepository) List(ctx context.Context) ([]models.UserView, error) {
	users, err := NewUserWriteRepository(r.db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.UserView, 0, len(users))
	for i := range users {
		views = append(views, *models.NewUserView(&users[i]))
	}
	return views, nil
}

// CacheUserView stores or refreshes the Redis read model for a user.
// Called by the command service after every mutation.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, userViewKeyPrefix+view.ID, view)
}

// InvalidateUserView removes the Redis read model entry for a deleted user.
func (r *UserReadRepository) InvalidateUserView(ctx context.Context, userID string) {
	r.cache.Delete(ctx, userViewKeyPrefix+userID)
}
