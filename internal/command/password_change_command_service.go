package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/umsys/user-management/internal/notify"
	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/utils"
)

type PasswordChangeStore interface {
	Create(ctx context.Context, req *models.PasswordChangeRequest) error
	FindPendingByUserID(ctx context.Context, userID string) (*models.PasswordChangeRequest, error)
	Resolve(ctx context.Context, id, adminID string, status models.PasswordChangeStatus, at time.Time) (*models.PasswordChangeRequest, error)
}

// PasswordChangeCommandService runs the admin-approved password change
// workflow: PENDING moves to APPROVED or REJECTED exactly once.
type PasswordChangeCommandService struct {
	requests  PasswordChangeStore
	users     UserLookup
	publisher EventPublisher
	notifier  notify.Notifier
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewPasswordChangeCommandService(
	requests PasswordChangeStore,
	users UserLookup,
	publisher EventPublisher,
	notifier notify.Notifier,
	logger *slog.Logger,
) *PasswordChangeCommandService {
	return &PasswordChangeCommandService{
		requests:  requests,
		users:     users,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger.With("component", "password-change-commands"),
		tracer:    otel.Tracer("github.com/umsys/user-management/internal/command"),
	}
}

// RequestChange records a pending change after verifying the current
// password. Only the bcrypt hash of the new password is stored.
func (s *PasswordChangeCommandService) RequestChange(ctx context.Context, cmd cqrs.RequestPasswordChangeCommand) (*models.PasswordChangeRequest, error) {
	ctx, span := s.tracer.Start(ctx, "password_change.request", trace.WithAttributes(attribute.String("user.id", cmd.UserID)))
	defer span.End()

	user, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, traceErr(span, err)
	}
	if !utils.CheckPassword(cmd.OldPassword, user.PasswordHash) {
		return nil, traceErr(span, errs.ErrInvalidCredentials)
	}
	newHash, err := utils.HashPassword(cmd.NewPassword)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("failed to hash password: %w", err))
	}

	now := time.Now().UTC()
	req := &models.PasswordChangeRequest{
		ID:              utils.GenerateID(utils.PasswordChangeIDPrefix),
		UserID:          user.ID,
		NewPasswordHash: newHash,
		Status:          models.PasswordChangePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, traceErr(span, err)
	}

	s.publish(ctx, events.PasswordChangeRequested, events.PasswordChangeRequestedEvent{
		RequestID: req.ID,
		UserID:    req.UserID,
	})
	if err := s.notifier.SendPasswordResetRequested(ctx, *user); err != nil {
		s.logger.Warn("admin notice for password change request failed", "requestId", req.ID, "error", err)
	}
	return req, nil
}

// ResolveChange approves or rejects a pending request. Approval installs the
// requested password in the same transaction as the status change.
func (s *PasswordChangeCommandService) ResolveChange(ctx context.Context, cmd cqrs.ResolvePasswordChangeCommand) (*models.PasswordChangeRequest, error) {
	ctx, span := s.tracer.Start(ctx, "password_change.resolve", trace.WithAttributes(
		attribute.String("request.id", cmd.RequestID),
		attribute.Bool("approve", cmd.Approve),
	))
	defer span.End()

	status := models.PasswordChangeRejected
	if cmd.Approve {
		status = models.PasswordChangeApproved
	}
	req, err := s.requests.Resolve(ctx, cmd.RequestID, cmd.AdminID, status, time.Now().UTC())
	if err != nil {
		return nil, traceErr(span, err)
	}

	s.publish(ctx, events.PasswordChangeResolved, events.PasswordChangeResolvedEvent{
		RequestID: req.ID,
		UserID:    req.UserID,
		AdminID:   req.AdminID,
		Status:    string(req.Status),
	})

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("cannot notify user of password change resolution", "requestId", req.ID, "error", err)
		return req, nil
	}
	if cmd.Approve {
		err = s.notifier.SendPasswordResetApproved(ctx, *user)
	} else {
		err = s.notifier.SendPasswordResetRejected(ctx, *user)
	}
	if err != nil {
		s.logger.Warn("password change resolution notice failed", "requestId", req.ID, "error", err)
	}
	return req, nil
}

// ResolveChangeForUser resolves the user's pending request, if any.
func (s *PasswordChangeCommandService) ResolveChangeForUser(ctx context.Context, cmd cqrs.ResolveUserPasswordChangeCommand) (*models.PasswordChangeRequest, error) {
	pending, err := s.requests.FindPendingByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	return s.ResolveChange(ctx, cqrs.ResolvePasswordChangeCommand{
		RequestID: pending.ID,
		AdminID:   cmd.AdminID,
		Approve:   cmd.Approve,
	})
}

func (s *PasswordChangeCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(ctx, events.PasswordChangeEventsStream, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

func traceErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
