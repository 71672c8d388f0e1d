package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/utils"
)

type AddressStore interface {
	Create(ctx context.Context, addr *models.Address) error
	GetByID(ctx context.Context, id string) (*models.Address, error)
	Update(ctx context.Context, addr *models.Address) error
	Delete(ctx context.Context, id string) error
	SetPrimary(ctx context.Context, id string, at time.Time) (*models.Address, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

var errAddressForbidden = errs.Forbidden("you can only manage your own addresses")

// AddressCommandService manages addresses. The store keeps at most one
// primary address per user.
type AddressCommandService struct {
	addresses AddressStore
	users     UserLookup
	publisher EventPublisher
	logger    *slog.Logger
}

func NewAddressCommandService(addresses AddressStore, users UserLookup, publisher EventPublisher, logger *slog.Logger) *AddressCommandService {
	return &AddressCommandService{
		addresses: addresses,
		users:     users,
		publisher: publisher,
		logger:    logger.With("component", "address-commands"),
	}
}

func (s *AddressCommandService) CreateAddress(ctx context.Context, cmd cqrs.CreateAddressCommand) (*models.Address, error) {
	if !cmd.Actor.CanAccess(cmd.UserID) {
		return nil, errAddressForbidden
	}
	country := strings.ToUpper(cmd.Country)
	if !utils.ValidateCountryCode(country) {
		return nil, errs.Validation("country must be an ISO-3166 alpha-2 code")
	}
	if _, err := s.users.GetByID(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	addr := &models.Address{
		ID:            utils.GenerateID(utils.AddressIDPrefix),
		UserID:        cmd.UserID,
		StreetAddress: cmd.StreetAddress,
		City:          cmd.City,
		State:         cmd.State,
		PostalCode:    cmd.PostalCode,
		Country:       country,
		AddressType:   cmd.AddressType,
		IsPrimary:     cmd.IsPrimary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.addresses.Create(ctx, addr); err != nil {
		return nil, err
	}
	s.publishAddress(ctx, events.AddressCreated, addr)
	return addr, nil
}

func (s *AddressCommandService) UpdateAddress(ctx context.Context, cmd cqrs.UpdateAddressCommand) (*models.Address, error) {
	addr, err := s.owned(ctx, cmd.Actor, cmd.AddressID)
	if err != nil {
		return nil, err
	}
	country := strings.ToUpper(cmd.Country)
	if !utils.ValidateCountryCode(country) {
		return nil, errs.Validation("country must be an ISO-3166 alpha-2 code")
	}

	addr.StreetAddress = cmd.StreetAddress
	addr.City = cmd.City
	addr.State = cmd.State
	addr.PostalCode = cmd.PostalCode
	addr.Country = country
	addr.AddressType = cmd.AddressType
	addr.IsPrimary = cmd.IsPrimary
	addr.UpdatedAt = time.Now().UTC()
	if err := s.addresses.Update(ctx, addr); err != nil {
		return nil, err
	}
	s.publishAddress(ctx, events.AddressUpdated, addr)
	return addr, nil
}

func (s *AddressCommandService) DeleteAddress(ctx context.Context, cmd cqrs.DeleteAddressCommand) error {
	addr, err := s.owned(ctx, cmd.Actor, cmd.AddressID)
	if err != nil {
		return err
	}
	if err := s.addresses.Delete(ctx, addr.ID); err != nil {
		return err
	}
	s.publishAddress(ctx, events.AddressDeleted, addr)
	return nil
}

// SetPrimaryAddress makes the address its owner's only primary address.
func (s *AddressCommandService) SetPrimaryAddress(ctx context.Context, cmd cqrs.SetPrimaryAddressCommand) (*models.Address, error) {
	if _, err := s.owned(ctx, cmd.Actor, cmd.AddressID); err != nil {
		return nil, err
	}
	addr, err := s.addresses.SetPrimary(ctx, cmd.AddressID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.publishAddress(ctx, events.AddressPrimaryChanged, addr)
	return addr, nil
}

func (s *AddressCommandService) owned(ctx context.Context, actor cqrs.Actor, addressID string) (*models.Address, error) {
	addr, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(addr.UserID) {
		return nil, errAddressForbidden
	}
	return addr, nil
}

func (s *AddressCommandService) publishAddress(ctx context.Context, eventType string, addr *models.Address) {
	err := s.publisher.Publish(ctx, events.AddressEventsStream, eventType, events.AddressEvent{
		AddressID: addr.ID,
		UserID:    addr.UserID,
		IsPrimary: addr.IsPrimary,
	})
	if err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
