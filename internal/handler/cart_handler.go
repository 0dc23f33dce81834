package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CartHandler struct {
	carts     service.CartService
	addresses service.AddressService
	logg      *logger.Logger
}

func NewCartHandler(carts service.CartService, addresses service.AddressService, logg *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, addresses: addresses, logg: logg}
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	view, err := h.carts.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(view)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if req.ProductID == uuid.Nil {
		return badRequest(c, "product_id is required")
	}

	userID, _ := currentUser(c)
	view, err := h.carts.AddItem(c.UserContext(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// PUT /api/v1/cart/items/:id
// A quantity of zero removes the line.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid cart item ID")
	}
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	userID, _ := currentUser(c)
	view, err := h.carts.UpdateQuantity(c.UserContext(), userID, itemID, req.Quantity)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(view)
}

// DELETE /api/v1/cart/items/:id
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	itemID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid cart item ID")
	}
	userID, _ := currentUser(c)
	if err := h.carts.RemoveItem(c.UserContext(), userID, itemID); err != nil {
		return respondError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DELETE /api/v1/cart
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	if err := h.carts.Clear(c.UserContext(), userID); err != nil {
		return respondError(c, h.logg, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/addresses
func (h *CartHandler) GetAddresses(c *fiber.Ctx) error {
	userID, _ := currentUser(c)
	addresses, err := h.addresses.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(addresses)
}

// POST /api/v1/addresses
func (h *CartHandler) CreateAddress(c *fiber.Ctx) error {
	var req service.AddressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	userID, _ := currentUser(c)
	address, err := h.addresses.Create(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}
