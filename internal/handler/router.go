package handler

import (
	"go-material-store/internal/middleware"
	"go-material-store/internal/model"
	"go-material-store/internal/service"
	"go-material-store/pkg/jwt"
	"go-material-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Router holds every HTTP handler of the API and mounts them under /api/v1.
type Router struct {
	Issuer *jwt.Issuer
	Auth   service.AuthService
	Logger *logger.Logger

	AuthHandler      *AuthHandler
	InventoryHandler *InventoryHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
	WebhookHandler   *WebhookHandler
	RoleHandler      *RoleHandler
	UserHandler      *UserHandler
	DashboardHandler *DashboardHandler
}

func (r *Router) Mount(app fiber.Router) {
	requireAuth := middleware.RequireAuth(r.Issuer, r.Auth, r.Logger)
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", r.AuthHandler.Login)
	auth.Post("/register", r.AuthHandler.Register)
	auth.Post("/logout", requireAuth, r.AuthHandler.Logout)
	auth.Post("/change-password", requireAuth, r.AuthHandler.ChangePassword)
	auth.Get("/me", requireAuth, r.AuthHandler.Me)

	api.Get("/products", r.InventoryHandler.GetProducts)
	api.Get("/products/:id", r.InventoryHandler.GetProduct)

	// Gateway callback; authenticated by signature
	api.Post("/webhooks/payment", r.WebhookHandler.PaymentNotification)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Catalog administration
	protected.Post("/products", middleware.RequirePrivilege(model.PrivProductCreate), r.InventoryHandler.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege(model.PrivProductUpdate), r.InventoryHandler.UpdateProduct)
	protected.Post("/products/:id/restock", middleware.RequirePrivilege(model.PrivProductRestock), r.InventoryHandler.Restock)
	protected.Get("/products/:id/movements",
		middleware.RequireAnyPrivilege(model.PrivProductRestock, model.PrivProductUpdate), r.InventoryHandler.GetMovements)

	// Addresses and cart
	protected.Get("/addresses", r.CartHandler.GetAddresses)
	protected.Post("/addresses", r.CartHandler.CreateAddress)
	protected.Get("/cart", r.CartHandler.GetCart)
	protected.Delete("/cart", r.CartHandler.Clear)
	protected.Post("/cart/items", r.CartHandler.AddItem)
	protected.Put("/cart/items/:id", r.CartHandler.UpdateItem)
	protected.Delete("/cart/items/:id", r.CartHandler.RemoveItem)
	protected.Post("/cart/checkout-cleanup/:orderId", r.OrderHandler.CleanupCart)

	// Orders
	protected.Post("/orders/checkout", r.OrderHandler.Checkout)
	protected.Get("/orders", r.OrderHandler.GetOrders)
	protected.Get("/orders/:id", r.OrderHandler.GetOrder)
	protected.Post("/orders/:id/payment", r.OrderHandler.ResumePayment)
	protected.Post("/orders/:id/payment/sync", r.OrderHandler.SyncPayment)
	protected.Post("/orders/:id/cancel", r.OrderHandler.Cancel)

	// Back office
	admin := protected.Group("/admin")
	admin.Post("/orders/:id/cancel", middleware.RequirePrivilege(model.PrivOrderCancel), r.AdminHandler.CancelOrder)
	fulfil := middleware.RequirePrivilege(model.PrivOrderFulfil)
	admin.Post("/orders/:id/confirm", fulfil, r.AdminHandler.ConfirmOrder)
	admin.Post("/orders/:id/process", fulfil, r.AdminHandler.ProcessOrder)
	admin.Post("/orders/:id/ship", fulfil, r.AdminHandler.ShipOrder)
	admin.Post("/orders/:id/deliver", fulfil, r.AdminHandler.DeliverOrder)
	admin.Post("/payments/:id/approve", middleware.RequirePrivilege(model.PrivPaymentApprove), r.AdminHandler.ApprovePayment)
	admin.Post("/reconcile", middleware.RequirePrivilege(model.PrivReconcileTrigger), r.AdminHandler.Reconcile)

	admin.Get("/roles", middleware.RequirePrivilege(model.PrivUserPrivileges), r.RoleHandler.GetRoles)
	admin.Get("/privileges", middleware.RequirePrivilege(model.PrivUserPrivileges), r.RoleHandler.GetPrivileges)
	admin.Put("/users/:id/privileges", middleware.RequirePrivilege(model.PrivUserPrivileges), r.UserHandler.UpdateUserPrivileges)

	dashboard := admin.Group("/dashboard", middleware.RequirePrivilege(model.PrivDashboardView))
	dashboard.Get("/stats", r.DashboardHandler.GetDashboardStats)
	dashboard.Get("/stock-movement", r.DashboardHandler.GetStockMovement)
}
