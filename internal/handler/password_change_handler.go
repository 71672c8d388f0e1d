package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/middleware"
	"github.com/umsys/user-management/shared/models"
)

type PasswordChangeCommander interface {
	RequestChange(ctx context.Context, cmd cqrs.RequestPasswordChangeCommand) (*models.PasswordChangeRequest, error)
	ResolveChange(ctx context.Context, cmd cqrs.ResolvePasswordChangeCommand) (*models.PasswordChangeRequest, error)
	ResolveChangeForUser(ctx context.Context, cmd cqrs.ResolveUserPasswordChangeCommand) (*models.PasswordChangeRequest, error)
}

type PasswordChangeQuerier interface {
	ListPending(ctx context.Context, q cqrs.ListPendingPasswordChangesQuery) ([]models.PendingPasswordChangeView, error)
}

type PasswordChangeHandler struct {
	commands PasswordChangeCommander
	queries  PasswordChangeQuerier
	respond  *Responder
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
}

// ResolvePasswordChangeRequest uses a pointer so a missing field is rejected
// rather than read as a rejection.
type ResolvePasswordChangeRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

func NewPasswordChangeHandler(commands PasswordChangeCommander, queries PasswordChangeQuerier, respond *Responder) *PasswordChangeHandler {
	return &PasswordChangeHandler{commands: commands, queries: queries, respond: respond}
}

// RequestChange files a change for the caller's own account.
func (h *PasswordChangeHandler) RequestChange(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	requestingUserID, _ := middleware.GetUserID(c)
	if userID != requestingUserID {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only change your own password")
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	pcr, err := h.commands.RequestChange(c.Request.Context(), cqrs.RequestPasswordChangeCommand{
		UserID:      userID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to request password change")
		return
	}
	c.JSON(http.StatusAccepted, pcr)
}

func (h *PasswordChangeHandler) ListPending(c *gin.Context) {
	pending, err := h.queries.ListPending(c.Request.Context(), cqrs.ListPendingPasswordChangesQuery{})
	if err != nil {
		h.respond.Error(c, err, "Failed to list password change requests")
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (h *PasswordChangeHandler) ResolveChange(c *gin.Context) {
	requestID, ok := requestIDParam(c)
	if !ok {
		return
	}
	var req ResolvePasswordChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	pcr, err := h.commands.ResolveChange(c.Request.Context(), cqrs.ResolvePasswordChangeCommand{
		RequestID: requestID,
		AdminID:   adminID,
		Approve:   *req.Approved,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to resolve password change")
		return
	}
	c.JSON(http.StatusOK, pcr)
}

func (h *PasswordChangeHandler) ResolveChangeForUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req ResolvePasswordChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	pcr, err := h.commands.ResolveChangeForUser(c.Request.Context(), cqrs.ResolveUserPasswordChangeCommand{
		UserID:  userID,
		AdminID: adminID,
		Approve: *req.Approved,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to resolve password change")
		return
	}
	c.JSON(http.StatusOK, pcr)
}
