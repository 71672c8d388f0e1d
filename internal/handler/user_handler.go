package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/middleware"
	"github.com/umsys/user-management/shared/models"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error)
	UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error)
	DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error
	ResetPassword(ctx context.Context, cmd cqrs.ResetPasswordCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error)
	GetUserByEmail(ctx context.Context, q cqrs.GetUserByEmailQuery) (*models.UserView, error)
	ListUsers(ctx context.Context, q cqrs.ListUsersQuery) ([]models.UserView, error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
	respond  *Responder
}

type CreateUserRequest struct {
	FirstName   string      `json:"firstName" validate:"required,max=100"`
	LastName    string      `json:"lastName" validate:"required,max=100"`
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=8"`
	PhoneNumber string      `json:"phoneNumber" validate:"omitempty,e164"`
	Role        models.Role `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

type UpdateUserRequest struct {
	FirstName   string      `json:"firstName" validate:"required,max=100"`
	LastName    string      `json:"lastName" validate:"required,max=100"`
	Email       string      `json:"email" validate:"required,email"`
	PhoneNumber string      `json:"phoneNumber" validate:"omitempty,e164"`
	Role        models.Role `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier, respond *Responder) *UserHandler {
	return &UserHandler{commands: commands, queries: queries, respond: respond}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, models.NewUserView(user))
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	views, err := h.queries.ListUsers(c.Request.Context(), cqrs.ListUsersQuery{})
	if err != nil {
		h.respond.Error(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	view, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{
		UserID: userID,
		Actor:  middleware.GetActor(c),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) GetUserByEmail(c *gin.Context) {
	view, err := h.queries.GetUserByEmail(c.Request.Context(), cqrs.GetUserByEmailQuery{Email: c.Param("email")})
	if err != nil {
		h.respond.Error(c, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	if !actor.CanAccess(userID) {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only update your own user details")
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Role != "" && !actor.Admin {
		middleware.RespondWithError(c, http.StatusForbidden, "Only administrators can change roles")
		return
	}

	view, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		UserID:      userID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	if !middleware.GetActor(c).CanAccess(userID) {
		middleware.RespondWithError(c, http.StatusForbidden, "You can only delete your own account")
		return
	}

	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{UserID: userID}); err != nil {
		h.respond.Error(c, err, "Failed to delete user")
		return
	}

	c.Status(http.StatusNoContent)
}

// ResetPassword is the administrator's direct password reset.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	err := h.commands.ResetPassword(c.Request.Context(), cqrs.ResetPasswordCommand{
		UserID:      userID,
		AdminID:     adminID,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to reset password")
		return
	}
	c.Status(http.StatusNoContent)
}
