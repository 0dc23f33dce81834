package handler

import (
	"go-material-store/internal/model"
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// InventoryHandler serves the catalog and the stock ledger.
type InventoryHandler struct {
	service service.ProductService
	logg    *logger.Logger
}

func NewInventoryHandler(s service.ProductService, logg *logger.Logger) *InventoryHandler {
	return &InventoryHandler{service: s, logg: logg}
}

// GET /api/v1/products
// Staff with product:update see inactive products too.
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	activeOnly := true
	if _, session := currentUser(c); session != nil && session.Has(model.PrivProductUpdate) {
		activeOnly = c.QueryBool("active_only", false)
	}
	products, err := h.service.List(c.UserContext(), activeOnly)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(products)
}

// GET /api/v1/products/:id
func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	product, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(product)
}

// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	userID, _ := currentUser(c)
	product, err := h.service.Create(c.UserContext(), req, userID.String())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PUT /api/v1/products/:id
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	userID, _ := currentUser(c)
	updated, err := h.service.Update(c.UserContext(), id, req, userID.String())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// POST /api/v1/products/:id/restock
func (h *InventoryHandler) Restock(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	var req service.RestockRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	userID, _ := currentUser(c)
	product, err := h.service.Restock(c.UserContext(), id, req, userID.String())
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Stock added", "data": product})
}

// GET /api/v1/products/:id/movements
func (h *InventoryHandler) GetMovements(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	movements, err := h.service.Movements(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(movements)
}
