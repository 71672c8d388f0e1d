package query

import (
	"context"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/utils"
)

// UserViewReader serves user views from the Redis cache with a PostgreSQL
// fallback.
type UserViewReader interface {
	GetByID(ctx context.Context, id string) (*models.UserView, error)
	GetByEmail(ctx context.Context, email string) (*models.UserView, error)
	List(ctx context.Context) ([]models.UserView, error)
}

// UserQueryService reads user views from the Redis cache (with a Postgres fallback).
type UserQueryService struct {
	readRepo UserViewReader
}

func NewUserQueryService(readRepo UserViewReader) *UserQueryService {
	return &UserQueryService{readRepo: readRepo}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	if !q.Actor.CanAccess(q.UserID) {
		return nil, errs.Forbidden("you can only view your own account")
	}
	return s.readRepo.GetByID(ctx, q.UserID)
}

func (s *UserQueryService) GetUserByEmail(ctx context.Context, q cqrs.GetUserByEmailQuery) (*models.UserView, error) {
	return s.readRepo.GetByEmail(ctx, utils.NormalizeEmail(q.Email))
}

func (s *UserQueryService) ListUsers(ctx context.Context, _ cqrs.ListUsersQuery) ([]models.UserView, error) {
	return s.readRepo.List(ctx)
}
