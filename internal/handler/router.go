package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

var (
	cashierAdmin   = custommiddleware.RequireRole(model.RoleCashier, model.RoleAdmin)
	allRoles       = custommiddleware.RequireRole(model.RoleCashier, model.RoleAdmin, model.RoleMarketing)
	adminOnly      = custommiddleware.RequireRole(model.RoleAdmin)
	adminMarketing = custommiddleware.RequireRole(model.RoleAdmin, model.RoleMarketing)
)

// SetupRouter настраивает HTTP-маршруты и middleware программы лояльности.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Get("/sales/qr", h.GetSaleReceipt)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.With(cashierAdmin).Post("/sales", h.RegisterSale)

			r.Route("/winners", func(r chi.Router) {
				r.With(allRoles).Get("/", h.ListWinners)
				r.With(cashierAdmin).Post("/claim", h.ClaimReward)
			})

			r.Route("/clients", func(r chi.Router) {
				r.With(cashierAdmin).Post("/", h.CreateClient)
				r.With(allRoles).Get("/", h.ListClients)
				r.With(cashierAdmin).Get("/dni/{dni}", h.GetClientByDNI)
				r.With(allRoles).Get("/{id}", h.GetClient)
				r.With(allRoles).Get("/{id}/points", h.GetClientPoints)
				r.With(adminOnly).Patch("/{id}", h.UpdateClient)
			})

			r.Route("/products", func(r chi.Router) {
				r.With(adminOnly).Post("/", h.CreateProduct)
				r.With(allRoles).Get("/", h.ListProducts)
				r.With(cashierAdmin).Get("/code/{code}", h.GetProductByCode)
				r.With(cashierAdmin).Get("/{id}", h.GetProduct)
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.With(adminMarketing).Post("/", h.CreateCampaign)
				r.With(allRoles).Get("/", h.ListCampaigns)
				r.With(cashierAdmin).Get("/active", h.GetActiveCampaign)
				r.With(allRoles).Get("/{id}", h.GetCampaign)
				r.With(adminMarketing).Patch("/{id}", h.UpdateCampaign)
				r.With(adminOnly).Delete("/{id}", h.DeleteCampaign)
				r.With(adminMarketing).Post("/{id}/products", h.AddCampaignProduct)
				r.With(adminMarketing).Post("/{id}/rewards", h.AddCampaignReward)
				r.With(adminMarketing).Delete("/{id}/rewards/{rewardID}", h.RemoveCampaignReward)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
