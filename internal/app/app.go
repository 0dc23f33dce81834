// Package app wires repositories, services and handlers. The API server and the
// reconciliation job share it so both run the exact same service graph.
package app

import (
	"go-material-store/internal/handler"
	"go-material-store/internal/metrics"
	"go-material-store/internal/repository"
	"go-material-store/internal/service"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/config"
	"go-material-store/pkg/jwt"
	"go-material-store/pkg/logger"
	"go-material-store/pkg/money"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Logger   *logger.Logger
	Gateway  service.PaymentGateway
	Store    cache.Store
	Notifier service.Notifier
	Metrics  *metrics.Store
}

type Services struct {
	Issuer       *jwt.Issuer
	Access       *service.AccessService
	Auth         service.AuthService
	Products     service.ProductService
	Addresses    service.AddressService
	Cart         service.CartService
	Checkout     service.CheckoutService
	Orders       service.OrderQueryService
	Reconciler   service.ReconcilerService
	Cancellation service.CancellationService
	Fulfillment  service.FulfillmentService
	Sweeper      *service.ReconcileService
	Dashboard    service.DashboardService
}

func NewServices(d Deps) (*Services, error) {
	cfg := d.Config
	tax, err := money.NewTaxCalculator(cfg.Tax.Rate, cfg.Tax.Rounding)
	if err != nil {
		return nil, err
	}

	productRepo := repository.NewProductRepo(d.DB)
	cartRepo := repository.NewCartRepo(d.DB)
	orderRepo := repository.NewOrderRepo(d.DB)
	paymentRepo := repository.NewPaymentRepo(d.DB)
	addressRepo := repository.NewAddressRepo(d.DB)
	userRepo := repository.NewUserRepo(d.DB)
	roleRepo := repository.NewRoleRepo(d.DB)
	privilegeRepo := repository.NewPrivilegeRepo(d.DB)

	ledger := service.NewStockLedger(d.DB, productRepo)
	issuer := jwt.NewIssuer(cfg.JWT)

	s := &Services{
		Issuer:    issuer,
		Access:    service.NewAccessService(privilegeRepo, roleRepo, userRepo, d.Logger),
		Auth:      service.NewAuthService(userRepo, roleRepo, issuer, d.Store, cfg.Redis.SessionTTL, d.Logger),
		Products:  service.NewProductService(productRepo, ledger),
		Addresses: service.NewAddressService(addressRepo),
		Cart:      service.NewCartService(d.DB, cartRepo, productRepo, orderRepo),
		Orders:    service.NewOrderQueryService(orderRepo),
		Dashboard: service.NewDashboardService(repository.NewReportRepo(d.DB)),
	}
	s.Checkout = service.NewCheckoutService(service.CheckoutDeps{
		DB:        d.DB,
		Carts:     cartRepo,
		Products:  productRepo,
		Orders:    orderRepo,
		Payments:  paymentRepo,
		Addresses: addressRepo,
		Users:     userRepo,
		Ledger:    ledger,
		Gateway:   d.Gateway,
		Tax:       tax,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
	})
	s.Reconciler = service.NewReconcilerService(service.ReconcilerDeps{
		DB:        d.DB,
		Orders:    orderRepo,
		Payments:  paymentRepo,
		Carts:     cartRepo,
		Gateway:   d.Gateway,
		ServerKey: cfg.Gateway.ServerKey,
		Dedup:     d.Store,
		DedupTTL:  cfg.Redis.DedupTTL,
		Notifier:  d.Notifier,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
	})
	s.Cancellation = service.NewCancellationService(service.CancellationDeps{
		DB:       d.DB,
		Orders:   orderRepo,
		Payments: paymentRepo,
		Ledger:   ledger,
		Gateway:  d.Gateway,
		Notifier: d.Notifier,
		Metrics:  d.Metrics,
		Logger:   d.Logger,
	})
	s.Fulfillment = service.NewFulfillmentService(d.DB, orderRepo, cartRepo, d.Notifier, d.Logger)
	s.Sweeper = service.NewReconcileService(orderRepo, paymentRepo, s.Checkout, s.Reconciler, s.Cancellation,
		cfg.Reconcile.StaleAfter, cfg.Reconcile.BatchSize, d.Logger)
	return s, nil
}

// Router builds the HTTP surface over the services.
func (s *Services) Router(logg *logger.Logger) *handler.Router {
	return &handler.Router{
		Issuer:           s.Issuer,
		Auth:             s.Auth,
		Logger:           logg,
		AuthHandler:      handler.NewAuthHandler(s.Auth, logg),
		InventoryHandler: handler.NewInventoryHandler(s.Products, logg),
		CartHandler:      handler.NewCartHandler(s.Cart, s.Addresses, logg),
		OrderHandler:     handler.NewOrderHandler(s.Checkout, s.Orders, s.Reconciler, s.Cancellation, s.Cart, logg),
		AdminHandler:     handler.NewAdminHandler(s.Fulfillment, s.Cancellation, s.Reconciler, s.Sweeper, logg),
		WebhookHandler:   handler.NewWebhookHandler(s.Reconciler, logg),
		RoleHandler:      handler.NewRoleHandler(s.Access, logg),
		UserHandler:      handler.NewUserHandler(s.Access, logg),
		DashboardHandler: handler.NewDashboardHandler(s.Dashboard, logg),
	}
}
