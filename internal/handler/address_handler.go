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

type AddressCommander interface {
	CreateAddress(ctx context.Context, cmd cqrs.CreateAddressCommand) (*models.Address, error)
	UpdateAddress(ctx context.Context, cmd cqrs.UpdateAddressCommand) (*models.Address, error)
	DeleteAddress(ctx context.Context, cmd cqrs.DeleteAddressCommand) error
	SetPrimaryAddress(ctx context.Context, cmd cqrs.SetPrimaryAddressCommand) (*models.Address, error)
}

type AddressQuerier interface {
	GetAddress(ctx context.Context, q cqrs.GetAddressQuery) (*models.Address, error)
	ListAddresses(ctx context.Context, q cqrs.ListAddressesQuery) ([]models.Address, error)
	ListUserAddresses(ctx context.Context, q cqrs.ListUserAddressesQuery) ([]models.Address, error)
}

type AddressHandler struct {
	commands AddressCommander
	queries  AddressQuerier
	respond  *Responder
}

type AddressRequest struct {
	StreetAddress string             `json:"streetAddress" validate:"required,max=255"`
	City          string             `json:"city" validate:"required,max=100"`
	State         string             `json:"state" validate:"max=100"`
	PostalCode    string             `json:"postalCode" validate:"required,max=20"`
	Country       string             `json:"country" validate:"required,iso3166_1_alpha2"`
	AddressType   models.AddressType `json:"addressType" validate:"omitempty,oneof=HOME WORK BILLING SHIPPING OTHER"`
	IsPrimary     bool               `json:"isPrimary"`
}

func (r *AddressRequest) normalize() {
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	r.AddressType = models.AddressType(strings.ToUpper(string(r.AddressType)))
}

// CreateAddressRequest defaults UserID to the caller.
type CreateAddressRequest struct {
	UserID string `json:"userId"`
	AddressRequest
}

func NewAddressHandler(commands AddressCommander, queries AddressQuerier, respond *Responder) *AddressHandler {
	return &AddressHandler{commands: commands, queries: queries, respond: respond}
}

func (h *AddressHandler) CreateAddress(c *gin.Context) {
	var req CreateAddressRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := middleware.GetActor(c)
	if req.UserID == "" {
		req.UserID = actor.UserID
	}

	addr, err := h.commands.CreateAddress(c.Request.Context(), cqrs.CreateAddressCommand{
		Actor:         actor,
		UserID:        req.UserID,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		State:         req.State,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		AddressType:   req.AddressType,
		IsPrimary:     req.IsPrimary,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to create address")
		return
	}
	c.JSON(http.StatusCreated, addr)
}

func (h *AddressHandler) ListAddresses(c *gin.Context) {
	addrs, err := h.queries.ListAddresses(c.Request.Context(), cqrs.ListAddressesQuery{})
	if err != nil {
		h.respond.Error(c, err, "Failed to list addresses")
		return
	}
	c.JSON(http.StatusOK, addrs)
}

func (h *AddressHandler) GetAddress(c *gin.Context) {
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}
	addr, err := h.queries.GetAddress(c.Request.Context(), cqrs.GetAddressQuery{
		AddressID: addressID,
		Actor:     middleware.GetActor(c),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to fetch address")
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *AddressHandler) ListUserAddresses(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	addrs, err := h.queries.ListUserAddresses(c.Request.Context(), cqrs.ListUserAddressesQuery{
		UserID: userID,
		Actor:  middleware.GetActor(c),
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to list addresses")
		return
	}
	c.JSON(http.StatusOK, addrs)
}

func (h *AddressHandler) UpdateAddress(c *gin.Context) {
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}
	var req AddressRequest
	if !bindJSON(c, &req) {
		return
	}

	addr, err := h.commands.UpdateAddress(c.Request.Context(), cqrs.UpdateAddressCommand{
		Actor:         middleware.GetActor(c),
		AddressID:     addressID,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		State:         req.State,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		AddressType:   req.AddressType,
		IsPrimary:     req.IsPrimary,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to update address")
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *AddressHandler) DeleteAddress(c *gin.Context) {
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}
	err := h.commands.DeleteAddress(c.Request.Context(), cqrs.DeleteAddressCommand{
		Actor:     middleware.GetActor(c),
		AddressID: addressID,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to delete address")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AddressHandler) SetPrimaryAddress(c *gin.Context) {
	addressID, ok := addressIDParam(c)
	if !ok {
		return
	}
	addr, err := h.commands.SetPrimaryAddress(c.Request.Context(), cqrs.SetPrimaryAddressCommand{
		Actor:     middleware.GetActor(c),
		AddressID: addressID,
	})
	if err != nil {
		h.respond.Error(c, err, "Failed to set primary address")
		return
	}
	c.JSON(http.StatusOK, addr)
}
