package handler

import (
	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler is the customer-facing order surface. Admins with order:view_all see every order.
type OrderHandler struct {
	checkout     service.CheckoutService
	orders       service.OrderQueryService
	reconciler   service.ReconcilerService
	cancellation service.CancellationService
	carts        service.CartService
	logg         *logger.Logger
}

func NewOrderHandler(checkout service.CheckoutService, orders service.OrderQueryService, reconciler service.ReconcilerService,
	cancellation service.CancellationService, carts service.CartService, logg *logger.Logger) *OrderHandler {
	return &OrderHandler{
		checkout:     checkout,
		orders:       orders,
		reconciler:   reconciler,
		cancellation: cancellation,
		carts:        carts,
		logg:         logg,
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// POST /api/v1/orders/checkout
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req service.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	userID, _ := currentUser(c)
	result, err := h.checkout.Checkout(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// POST /api/v1/orders/:id/payment
func (h *OrderHandler) ResumePayment(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	userID, _ := currentUser(c)
	result, err := h.checkout.ResumePayment(c.UserContext(), userID, orderID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(result)
}

// POST /api/v1/orders/:id/payment/sync
func (h *OrderHandler) SyncPayment(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	userID, session := currentUser(c)
	result, err := h.reconciler.SyncOrderPayment(c.UserContext(), userID, orderID, session.Has(model.PrivOrderViewAll))
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(result)
}

// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var req cancelRequest
	_ = c.BodyParser(&req)

	userID, _ := currentUser(c)
	order, err := h.cancellation.Cancel(c.UserContext(), orderID,
		service.Actor{UserID: userID, Kind: service.ActorCustomer}, req.Reason)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Order cancelled", "data": order})
}

// GET /api/v1/orders?status=&limit=&offset=
func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	userID, session := currentUser(c)
	filter := repository.OrderFilter{
		Status: model.OrderStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	page, err := h.orders.List(c.UserContext(), userID, session.Has(model.PrivOrderViewAll), filter)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(page)
}

// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	userID, session := currentUser(c)
	order, err := h.orders.Get(c.UserContext(), userID, orderID, session.Has(model.PrivOrderViewAll))
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(order)
}

// POST /api/v1/cart/checkout-cleanup/:orderId
func (h *OrderHandler) CleanupCart(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "orderId")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	userID, _ := currentUser(c)
	removed, err := h.carts.CleanupForOrder(c.UserContext(), userID, orderID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}
