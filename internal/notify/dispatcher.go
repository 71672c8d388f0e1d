package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

// Notifier is the set of notices the rest of the service can send.
type Notifier interface {
	Notify(ctx context.Context, user models.User, title, text string, priority models.Priority) (*models.Notification, error)
	SendUserCreationNotice(ctx context.Context, user models.User) error
	SendPasswordResetRequested(ctx context.Context, user models.User) error
	SendPasswordResetApproved(ctx context.Context, user models.User) error
	SendPasswordResetRejected(ctx context.Context, user models.User) error
	SendPasswordChanged(ctx context.Context, user models.User) error
	SendAccountDeleted(ctx context.Context, user models.User) error
	Broadcast(ctx context.Context, title, text string, priority models.Priority) (*models.BroadcastResult, error)
}

type NotificationStore interface {
	Save(ctx context.Context, n *models.Notification) error
}

// UserDirectory lists broadcast recipients.
type UserDirectory interface {
	ListAll(ctx context.Context) ([]models.User, error)
}

type ErrorReporter interface {
	CaptureException(err error)
}

// Enqueuer hands an envelope to a background delivery worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, env Envelope) error
}

type Options struct {
	// MaxAttempts bounds the sends per transport, first try included.
	MaxAttempts int
	// RetryBase is the first backoff delay; it doubles after every failure.
	RetryBase time.Duration
	// BroadcastRate caps broadcast sends per second. Zero disables pacing.
	BroadcastRate  float64
	BroadcastBurst int
	// Outbox, when set, receives envelopes instead of sending them inline.
	Outbox Enqueuer
}

// Dispatcher persists a notification record and then delivers it over every
// configured transport. The record survives any delivery failure.
type Dispatcher struct {
	store      NotificationStore
	users      UserDirectory
	transports []Transport
	outbox     Enqueuer
	limiter    *rate.Limiter
	opts       Options
	logger     *slog.Logger
	reporter   ErrorReporter
	tracer     trace.Tracer
	now        func() time.Time
}

func NewDispatcher(
	store NotificationStore,
	users UserDirectory,
	transports []Transport,
	opts Options,
	logger *slog.Logger,
	reporter ErrorReporter,
) *Dispatcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	var limiter *rate.Limiter
	if opts.BroadcastRate > 0 {
		burst := opts.BroadcastBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.BroadcastRate), burst)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Dispatcher{
		store:      store,
		users:      users,
		transports: transports,
		outbox:     opts.Outbox,
		limiter:    limiter,
		opts:       opts,
		logger:     logger.With("component", "notify"),
		reporter:   reporter,
		tracer:     otel.Tracer("github.com/umsys/user-management/internal/notify"),
		now:        time.Now,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, user models.User, title, text string, priority models.Priority) (*models.Notification, error) {
	ctx, span := d.startSpan(ctx, "notify.Notify", user)
	defer span.End()

	n, err := d.dispatch(ctx, user, AudienceUser, priority, adHocMessage(title, text))
	endSpan(span, err)
	return n, err
}

func (d *Dispatcher) SendUserCreationNotice(ctx context.Context, user models.User) error {
	return d.notice(ctx, "user_created", user, AudienceUser, models.PriorityMedium, userCreatedMessage(user))
}

// SendPasswordResetRequested alerts the administrators. The record is filed
// under the requesting user.
func (d *Dispatcher) SendPasswordResetRequested(ctx context.Context, user models.User) error {
	return d.notice(ctx, "password_reset_requested", user, AudienceAdmin, models.PriorityHigh, passwordResetRequestedMessage(user))
}

func (d *Dispatcher) SendPasswordResetApproved(ctx context.Context, user models.User) error {
	return d.notice(ctx, "password_reset_approved", user, AudienceUser, models.PriorityHigh, passwordResetApprovedMessage(user))
}

func (d *Dispatcher) SendPasswordResetRejected(ctx context.Context, user models.User) error {
	return d.notice(ctx, "password_reset_rejected", user, AudienceUser, models.PriorityHigh, passwordResetRejectedMessage(user))
}

func (d *Dispatcher) SendPasswordChanged(ctx context.Context, user models.User) error {
	return d.notice(ctx, "password_changed", user, AudienceUser, models.PriorityHigh, passwordChangedMessage(user))
}

func (d *Dispatcher) SendAccountDeleted(ctx context.Context, user models.User) error {
	return d.notice(ctx, "account_deleted", user, AudienceUser, models.PriorityMedium, accountDeletedMessage(user))
}

// Broadcast sends one notification to every user known at call time. A
// failure for one recipient is counted and the fan-out continues.
func (d *Dispatcher) Broadcast(ctx context.Context, title, text string, priority models.Priority) (*models.BroadcastResult, error) {
	ctx, span := d.tracer.Start(ctx, "notify.Broadcast")
	defer span.End()

	users, err := d.users.ListAll(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, fmt.Errorf("failed to load broadcast recipients: %w", err)
	}

	result := &models.BroadcastResult{Recipients: len(users)}
	msg := adHocMessage(title, text)
	for _, user := range users {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				endSpan(span, err)
				return result, fmt.Errorf("broadcast interrupted after %d of %d recipients: %w",
					result.Delivered+result.Failed, result.Recipients, err)
			}
		}
		if _, err := d.dispatch(ctx, user, AudienceUser, priority, msg); err != nil {
			result.Failed++
			continue
		}
		result.Delivered++
	}

	span.SetAttributes(
		attribute.Int("broadcast.recipients", result.Recipients),
		attribute.Int("broadcast.failed", result.Failed),
	)
	d.logger.Info("broadcast finished",
		"recipients", result.Recipients, "delivered", result.Delivered, "failed", result.Failed)
	return result, nil
}

// Deliver sends env over every configured transport, retrying each one with
// exponential backoff.
func (d *Dispatcher) Deliver(ctx context.Context, env Envelope) error {
	return d.DeliverPending(ctx, env, nil)
}

// DeliverPending is Deliver for redelivered jobs: channels sent records as
// delivered are skipped and every successful channel is recorded there. A nil
// ledger sends on every channel.
func (d *Dispatcher) DeliverPending(ctx context.Context, env Envelope, sent ChannelLedger) error {
	var failures []error
	for _, t := range d.transports {
		if sent != nil && sent.IsChannelDelivered(ctx, env.NotificationID, t.Channel()) {
			continue
		}
		if err := d.sendWithRetry(ctx, t, env); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", t.Channel(), "notificationId", env.NotificationID, "userId", env.UserID, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", t.Channel(), err))
			continue
		}
		if sent != nil {
			sent.MarkChannelDelivered(ctx, env.NotificationID, t.Channel())
		}
	}
	if len(failures) == 0 {
		return nil
	}
	err := errs.Transport(errors.Join(failures...))
	d.reporter.CaptureException(err)
	return err
}

func (d *Dispatcher) notice(ctx context.Context, kind string, user models.User, audience Audience, priority models.Priority, msg message) error {
	ctx, span := d.startSpan(ctx, "notify."+kind, user)
	defer span.End()

	_, err := d.dispatch(ctx, user, audience, priority, msg)
	endSpan(span, err)
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, user models.User, audience Audience, priority models.Priority, msg message) (*models.Notification, error) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Title:     msg.title,
		Message:   msg.text,
		Priority:  priority,
		CreatedAt: d.now().UTC(),
	}
	if err := d.store.Save(ctx, n); err != nil {
		d.reporter.CaptureException(err)
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	env := Envelope{
		NotificationID: n.ID,
		UserID:         user.ID,
		Email:          user.Email,
		Audience:       audience,
		Subject:        msg.title,
		Text:           msg.text,
		HTML:           msg.html,
		Priority:       priority,
	}
	if d.outbox != nil {
		if err := d.outbox.Enqueue(ctx, env); err != nil {
			d.logger.Error("failed to enqueue notification delivery", "notificationId", n.ID, "error", err)
			d.reporter.CaptureException(err)
			return n, errs.Transport(err)
		}
		return n, nil
	}
	return n, d.Deliver(ctx, env)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, t Transport, env Envelope) error {
	delay := d.opts.RetryBase
	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err = t.Send(ctx, env); err == nil {
			return nil
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		d.logger.Warn("notification send failed, retrying",
			"channel", t.Channel(), "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (d *Dispatcher) startSpan(ctx context.Context, name string, user models.User) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", user.ID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

type nopReporter struct{}

func (nopReporter) CaptureException(error) {}
