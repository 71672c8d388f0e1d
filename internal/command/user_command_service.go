package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/umsys/user-management/internal/notify"
	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/utils"
)

// UserWriter is the PostgreSQL write store for users.
type UserWriter interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// UserViewCache keeps the Redis read model in step with the write store.
type UserViewCache interface {
	CacheUserView(ctx context.Context, view *models.UserView)
	InvalidateUserView(ctx context.Context, userID string)
}

type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// UserCommandService writes user state to PostgreSQL and keeps the Redis
// read model up to date.
type UserCommandService struct {
	writeRepo UserWriter
	readRepo  UserViewCache
	publisher EventPublisher
	notifier  notify.Notifier
	logger    *slog.Logger
}

func NewUserCommandService(
	writeRepo UserWriter,
	readRepo UserViewCache,
	publisher EventPublisher,
	notifier notify.Notifier,
	logger *slog.Logger,
) *UserCommandService {
	return &UserCommandService{
		writeRepo: writeRepo,
		readRepo:  readRepo,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger.With("component", "user-commands"),
	}
}

func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	role := cmd.Role
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           utils.GenerateID(utils.UserIDPrefix),
		Email:        utils.NormalizeEmail(cmd.Email),
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		PhoneNumber:  cmd.PhoneNumber,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.writeRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.readRepo.CacheUserView(ctx, models.NewUserView(user))
	s.publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName(),
		Role:   string(user.Role),
	})
	if err := s.notifier.SendUserCreationNotice(ctx, *user); err != nil {
		s.logger.Warn("user creation notice failed", "userId", user.ID, "error", err)
	}
	return user, nil
}

func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	user.FirstName = cmd.FirstName
	user.LastName = cmd.LastName
	user.Email = utils.NormalizeEmail(cmd.Email)
	user.PhoneNumber = cmd.PhoneNumber
	if cmd.Role != "" {
		user.Role = cmd.Role
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	view := models.NewUserView(user)
	s.readRepo.CacheUserView(ctx, view)
	s.publish(ctx, events.UserEventsStream, events.UserUpdated, events.UserUpdatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName(),
	})
	return view, nil
}

// DeleteUser sends the account-deleted notice while the user still exists,
// then soft-deletes the row.
func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if err := s.writeRepo.Delete(ctx, cmd.UserID); err != nil {
		return err
	}
	s.readRepo.InvalidateUserView(ctx, cmd.UserID)
	s.publish(ctx, events.UserEventsStream, events.UserDeleted, events.UserDeletedEvent{
		UserID: cmd.UserID,
	})
	// The row is gone; the notice goes to the address fetched above.
	if err := s.notifier.SendAccountDeleted(ctx, *user); err != nil {
		s.logger.Warn("account deletion notice failed", "userId", user.ID, "error", err)
	}
	return nil
}

// ResetPassword lets an administrator set a password without the request
// workflow.
func (s *UserCommandService) ResetPassword(ctx context.Context, cmd cqrs.ResetPasswordCommand) error {
	user, err := s.writeRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(cmd.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.writeRepo.UpdatePasswordHash(ctx, user.ID, hash, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("password reset by admin", "userId", user.ID, "adminId", cmd.AdminID)
	if err := s.notifier.SendPasswordChanged(ctx, *user); err != nil {
		s.logger.Warn("password changed notice failed", "userId", user.ID, "error", err)
	}
	return nil
}

func (s *UserCommandService) publish(ctx context.Context, stream, eventType string, data any) {
	if err := s.publisher.Publish(ctx, stream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}
