package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

const (
	notificationKeyPrefix      = "notification:"
	userNotificationsKeyPrefix = "notifications:user:"
	allNotificationsKey        = "notifications:all"
	processedDeliveryKeyPrefix = "notification:delivered:"
	deliveredChannelKeyPrefix  = "notification:sent:"

	processedDeliveryTTL = 72 * time.Hour
	markReadRetries      = 3
)

// NotificationRepository is the notification store. Each record is a JSON
// value keyed by id, indexed by two sorted sets scored by creation time.
type NotificationRepository struct {
	redis  *goredis.Client
	logger *slog.Logger
}

func NewNotificationRepository(client *goredis.Client, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{redis: client, logger: logger}
}

// Save writes the record and both indexes atomically.
func (r *NotificationRepository) Save(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	score := creationScore(n.CreatedAt)
	_, err = r.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, notificationKeyPrefix+n.ID, data, 0)
		pipe.ZAdd(ctx, userNotificationsKeyPrefix+n.UserID, goredis.Z{Score: score, Member: n.ID})
		pipe.ZAdd(ctx, allNotificationsKey, goredis.Z{Score: score, Member: n.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// creationScore orders the indexes. Microseconds stay below 2^53, so the
// float64 score is exact.
func creationScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	data, err := r.redis.Get(ctx, notificationKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errs.NotFound("notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}

// ListByUserID returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string) ([]models.Notification, error) {
	return r.listIndex(ctx, userNotificationsKeyPrefix+userID)
}

// ListByUserIDAndPriority filters ListByUserID to one priority.
func (r *NotificationRepository) ListByUserIDAndPriority(ctx context.Context, userID string, priority models.Priority) ([]models.Notification, error) {
	all, err := r.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered := make([]models.Notification, 0, len(all))
	for _, n := range all {
		if n.Priority == priority {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

func (r *NotificationRepository) ListAll(ctx context.Context) ([]models.Notification, error) {
	return r.listIndex(ctx, allNotificationsKey)
}

func (r *NotificationRepository) listIndex(ctx context.Context, indexKey string) ([]models.Notification, error) {
	ids, err := r.redis.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	notifications := make([]models.Notification, 0, len(ids))
	if len(ids) == 0 {
		return notifications, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = notificationKeyPrefix + id
	}
	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry outlived its record.
			r.logger.Warn("dangling notification index entry", "index", indexKey, "id", ids[i])
			continue
		}
		var n models.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			r.logger.Warn("corrupt notification record", "id", ids[i], "error", err)
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkRead sets the read flag with an optimistic WATCH transaction so a
// concurrent delete is not resurrected.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	key := notificationKeyPrefix + id
	var updated models.Notification

	txf := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return errs.NotFound("notification not found")
		}
		if err != nil {
			return fmt.Errorf("failed to get notification: %w", err)
		}
		if err := json.Unmarshal(data, &updated); err != nil {
			return fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		if updated.Read {
			return nil
		}
		updated.Read = true
		next, err := json.Marshal(&updated)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, goredis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < markReadRetries; i++ {
		err := r.redis.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("failed to mark notification %s as read: too much contention", id)
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	n, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, notificationKeyPrefix+id)
		pipe.ZRem(ctx, userNotificationsKeyPrefix+n.UserID, id)
		pipe.ZRem(ctx, allNotificationsKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// IsDeliveryProcessed reports whether the outbox worker already delivered the
// notification. Guards against duplicate delivery under at-least-once Redis
// Streams semantics.
func (r *NotificationRepository) IsDeliveryProcessed(ctx context.Context, notificationID string) bool {
	val, err := r.redis.Exists(ctx, processedDeliveryKeyPrefix+notificationID).Result()
	return err == nil && val > 0
}

// MarkDeliveryProcessed records a completed delivery. The key outlives any
// realistic redelivery window of the consumer group.
func (r *NotificationRepository) MarkDeliveryProcessed(ctx context.Context, notificationID string) {
	key := processedDeliveryKeyPrefix + notificationID
	if err := r.redis.Set(ctx, key, "1", processedDeliveryTTL).Err(); err != nil {
		r.logger.Warn("failed to mark delivery processed", "notificationId", notificationID, "error", err)
	}
}

func deliveredChannelKey(notificationID string, ch models.Channel) string {
	return deliveredChannelKeyPrefix + notificationID + ":" + string(ch)
}

// IsChannelDelivered reports whether a previous attempt of the delivery job
// already sent the notification on ch.
func (r *NotificationRepository) IsChannelDelivered(ctx context.Context, notificationID string, ch models.Channel) bool {
	val, err := r.redis.Exists(ctx, deliveredChannelKey(notificationID, ch)).Result()
	return err == nil && val > 0
}

func (r *NotificationRepository) MarkChannelDelivered(ctx context.Context, notificationID string, ch models.Channel) {
	if err := r.redis.Set(ctx, deliveredChannelKey(notificationID, ch), "1", processedDeliveryTTL).Err(); err != nil {
		r.logger.Warn("failed to mark channel delivered", "notificationId", notificationID, "channel", ch, "error", err)
	}
}
