package query

import (
	"context"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

type AddressReader interface {
	GetByID(ctx context.Context, id string) (*models.Address, error)
	List(ctx context.Context) ([]models.Address, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Address, error)
}

type AddressQueryService struct {
	addresses AddressReader
}

func NewAddressQueryService(addresses AddressReader) *AddressQueryService {
	return &AddressQueryService{addresses: addresses}
}

func (s *AddressQueryService) GetAddress(ctx context.Context, q cqrs.GetAddressQuery) (*models.Address, error) {
	addr, err := s.addresses.GetByID(ctx, q.AddressID)
	if err != nil {
		return nil, err
	}
	if !q.Actor.CanAccess(addr.UserID) {
		return nil, errs.Forbidden("you can only view your own addresses")
	}
	return addr, nil
}

func (s *AddressQueryService) ListAddresses(ctx context.Context, _ cqrs.ListAddressesQuery) ([]models.Address, error) {
	return s.addresses.List(ctx)
}

// ListUserAddresses returns the user's addresses with the primary one first.
func (s *AddressQueryService) ListUserAddresses(ctx context.Context, q cqrs.ListUserAddressesQuery) ([]models.Address, error) {
	if !q.Actor.CanAccess(q.UserID) {
		return nil, errs.Forbidden("you can only view your own addresses")
	}
	return s.addresses.ListByUserID(ctx, q.UserID)
}
