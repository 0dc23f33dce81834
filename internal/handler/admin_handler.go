package handler

import (
	"go-material-store/internal/service"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler drives orders through fulfilment and handles payments that need a human.
type AdminHandler struct {
	fulfillment  service.FulfillmentService
	cancellation service.CancellationService
	reconciler   service.ReconcilerService
	sweeper      *service.ReconcileService
	logg         *logger.Logger
}

func NewAdminHandler(fulfillment service.FulfillmentService, cancellation service.CancellationService,
	reconciler service.ReconcilerService, sweeper *service.ReconcileService, logg *logger.Logger) *AdminHandler {
	return &AdminHandler{
		fulfillment:  fulfillment,
		cancellation: cancellation,
		reconciler:   reconciler,
		sweeper:      sweeper,
		logg:         logg,
	}
}

// POST /api/v1/admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var req cancelRequest
	_ = c.BodyParser(&req)

	order, err := h.cancellation.Cancel(c.UserContext(), orderID, adminActor(c), req.Reason)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(fiber.Map{"message": "Order cancelled", "data": order})
}

// POST /api/v1/admin/orders/:id/confirm
func (h *AdminHandler) ConfirmOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	order, err := h.fulfillment.Confirm(c.UserContext(), orderID, adminActor(c))
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(order)
}

// POST /api/v1/admin/orders/:id/process
func (h *AdminHandler) ProcessOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	order, err := h.fulfillment.Process(c.UserContext(), orderID, adminActor(c))
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(order)
}

// POST /api/v1/admin/orders/:id/ship
func (h *AdminHandler) ShipOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var req service.ShipRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	order, err := h.fulfillment.Ship(c.UserContext(), orderID, adminActor(c), req)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(order)
}

// POST /api/v1/admin/orders/:id/deliver
func (h *AdminHandler) DeliverOrder(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	order, err := h.fulfillment.Deliver(c.UserContext(), orderID, adminActor(c))
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(order)
}

// POST /api/v1/admin/payments/:id/approve
func (h *AdminHandler) ApprovePayment(c *fiber.Ctx) error {
	paymentID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	result, err := h.reconciler.ApprovePayment(c.UserContext(), paymentID)
	if err != nil {
		return respondError(c, h.logg, err)
	}
	return c.JSON(result)
}

// POST /api/v1/admin/reconcile
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	report, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		h.logg.Error(c.UserContext(), "reconciliation sweep finished with errors", err)
	}
	return c.JSON(report)
}
