package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/middleware"
	"github.com/umsys/user-management/shared/models"
)

type NotificationCommander interface {
	CreateNotification(ctx context.Context, cmd cqrs.CreateNotificationCommand) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, cmd cqrs.MarkNotificationReadCommand) (*models.Notification, error)
	DeleteNotification(ctx context.Context, cmd cqrs.DeleteNotificationCommand) error
	Broadcast(ctx context.Context, cmd cqrs.BroadcastCommand) (*models.BroadcastResult, error)
	RegisterDevice(ctx context.Context, cmd cqrs.RegisterDeviceCommand) (*models.UserDevice, error)
}

type NotificationQuerier interface {
	GetNotification(ctx context.Context, q cqrs.GetNotificationQuery) (*models.Notification, error)
	ListNotifications(ctx context.Context, q cqrs.ListNotificationsQuery) ([]models.Notification, error)
	ListUserNotifications(ctx context.Context, q cqrs.ListUserNotificationsQuery) ([]models.Notification, error)
}

type NotificationHandler struct {
	commands NotificationCommander
	queries  NotificationQuerier
	respond  *Responder
}

type CreateNotificationRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	Title    string          `json:"title" validate:"required,max=100"`
	Message  string          `json:"message" validate:"required,max=1000"`
	Priority models.Priority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
}

type BroadcastRequest struct {
	Title    string          `json:"title" validate:"required,max=100"`
	Message  string          `json:"message" validate:"required,max=1000"`
	Priority models.Priority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

func NewNotificationHandler(commands NotificationCommander, queries NotificationQuerier, respond *Responder) *NotificationHandler {
	return &NotificationHandler{commands: commands, queries: queries, respond: respond}
}

func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req CreateNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.commands.CreateNotification(c.Request.Context(), cqrs.CreateNotificationCommand{
		UserID:   req.UserID,
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to create notification")
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	list, err := h.queries.ListNotifications(c.Request.Context(), cqrs.ListNotificationsQuery{})
	if err != nil {
		h.respond.Error(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) GetNotification(c *gin.Context) {
	n, err := h.queries.GetNotification(c.Request.Context(), cqrs.GetNotificationQuery{
		NotificationID: c.Param("id"),
		Actor:          middleware.GetActor(c),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to fetch notification")
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) ListUserNotifications(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	list, err := h.queries.ListUserNotifications(c.Request.Context(), cqrs.ListUserNotificationsQuery{
		UserID:   userID,
		Priority: models.Priority(strings.ToUpper(c.Query("priority"))),
		Actor:    middleware.GetActor(c),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	n, err := h.commands.MarkNotificationRead(c.Request.Context(), cqrs.MarkNotificationReadCommand{
		Actor:          middleware.GetActor(c),
		NotificationID: c.Param("id"),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to update notification")
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	err := h.commands.DeleteNotification(c.Request.Context(), cqrs.DeleteNotificationCommand{
		Actor:          middleware.GetActor(c),
		NotificationID: c.Param("id"),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to delete notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// Broadcast answers 202 with the per-recipient tally; individual failures do
// not fail the request.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.commands.Broadcast(c.Request.Context(), cqrs.BroadcastCommand{
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to broadcast notification")
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	requestingUserID, _ := middleware.GetUserID(c)
	if userID != requestingUserID {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only register devices for your own account")
		return
	}

	var req RegisterDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	device, err := h.commands.RegisterDevice(c.Request.Context(), cqrs.RegisterDeviceCommand{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to register device")
		return
	}
	c.JSON(http.StatusCreated, device)
}
