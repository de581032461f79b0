package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmstandhq/farmstand-backend/api/controllers"
	"github.com/farmstandhq/farmstand-backend/api/middleware"
	checkoutsvc "github.com/farmstandhq/farmstand-backend/internal/checkout"
	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/internal/sweeper"
	"github.com/farmstandhq/farmstand-backend/internal/terminal"
	"github.com/farmstandhq/farmstand-backend/internal/webhooks"
	"github.com/farmstandhq/farmstand-backend/pkg/config"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Health   map[string]controllers.Pinger
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Terminal terminal.Service
	Webhooks webhooks.Service
	Sweeper  sweeper.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.Health))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/orders", controllers.CheckoutCreateOrder(p.Checkout, p.Logger))
			r.Post("/session", controllers.CheckoutSession(p.Checkout, p.Logger))
			r.Post("/cash", controllers.CheckoutCash(p.Checkout, p.Logger))
			r.Post("/native", controllers.CheckoutNative(p.Checkout, p.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/status", controllers.OrderStatus(p.Orders, p.Logger))
			r.Post("/complete", controllers.OrderComplete(p.Orders, p.Logger))
		})

		r.Route("/terminal", func(r chi.Router) {
			r.Post("/checkout", controllers.TerminalCheckout(p.Terminal, p.Logger))
			r.Get("/status", controllers.TerminalStatus(p.Terminal, p.Logger))
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", controllers.StripeWebhook(p.Webhooks, p.Logger))
			r.Post("/square", controllers.SquareWebhook(p.Webhooks, p.Logger))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/release-expired", controllers.AdminReleaseExpired(p.Sweeper, p.Config.Sweeper.BearerSecret, p.Logger))
		})
	})

	return r
}
