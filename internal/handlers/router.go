package handlers

import (
	"net/http"
	"strings"

	"boostledger/internal/config"
	"boostledger/internal/metrics"
	"boostledger/internal/middleware"
	"boostledger/internal/services"
	"boostledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Services struct {
	Accounts          AccountService
	Ledger            LedgerService
	Referrals         ReferralService
	Boosts            BoostService
	Catalog           CatalogService
	WithdrawalConfigs WithdrawalConfigService
	Admins            AdminStore
	Audit             AuditStore
	Proofs            ProofStore
	Reconciler        Reconciler
}

type Handler struct {
	cfg     config.Config
	svc     Services
	hub     *websocket.Hub
	logger  *zap.Logger
	metrics *metrics.Metrics
	uploads http.Handler
}

// New builds the HTTP surface. metrics and uploads may be nil; the matching
// routes are then left out.
func New(cfg config.Config, svc Services, hub *websocket.Hub, logger *zap.Logger, m *metrics.Metrics, uploads http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		svc:     svc,
		hub:     hub,
		logger:  logger,
		metrics: m,
		uploads: uploads,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	var observer middleware.RequestObserver
	if h.metrics != nil {
		observer = h.metrics
	}
	router.Use(middleware.RequestLogger(h.logger, observer))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	admin := func(role string) func(http.Handler) http.Handler {
		return middleware.RequireAdmin(h.svc.Admins, role)
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/balance/{accountId}", h.GetBalance)
		r.Post("/balance/add/{accountId}", h.AddBalance)
		r.Post("/balance/withdraw", h.Withdraw)
		r.Get("/balance/history", h.History)
		r.Get("/balance/withdrawals", h.WithdrawalHistory)
		r.Get("/balance/earnings", h.Earnings)
		r.Get("/referrals", h.ListReferrals)

		r.Get("/withdrawal-config", h.GetWithdrawalConfig)
		r.Put("/withdrawal-config", h.PutWithdrawalConfig)
		r.Delete("/withdrawal-config", h.DeleteWithdrawalConfig)

		r.Get("/orders", h.ListOpenOrders)
		r.Get("/orders/{orderId}", h.GetOrder)

		r.Get("/boost", h.ListMyBoosts)
		r.Get("/boost/{boostId}", h.GetBoost)
		r.Post("/boost/add/{orderId}", h.CreateBoost)
		r.Post("/boost/add-preuve", h.AddProof)
		r.With(admin(services.RoleManageBoosts)).Post("/boost/update-stats/{boostId}", h.UpdateStats)
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)

		r.With(admin(services.RoleSettleTransactions)).Get("/entries", h.AdminListEntries)
		r.With(admin(services.RoleSettleTransactions)).Put("/entries/{entryId}/settle", h.AdminSettle)
		r.With(admin(services.RoleSettleTransactions)).Put("/entries/{entryId}", h.AdminCorrect)
		r.With(admin(services.RoleSettleTransactions)).Post("/credit", h.AdminCredit)
		r.With(admin(services.RoleSettleTransactions)).Put("/referrals/{referralId}/settle", h.AdminSettleReferral)

		r.Group(func(r chi.Router) {
			r.Use(admin(services.RoleManageBoosts))
			r.Get("/boosts", h.AdminListBoosts)
			r.Get("/boosts/{boostId}", h.AdminGetBoost)
			r.Post("/boosts/{boostId}/approve", h.AdminApprove)
			r.Post("/boosts/{boostId}/review", h.AdminReview)
			r.Post("/boosts/{boostId}/reject", h.AdminRejectBoost)
			r.Post("/boosts/{boostId}/resume", h.AdminResumeBoost)
			r.Delete("/boosts/{boostId}", h.AdminDeleteBoost)
			r.Post("/stats/{statId}/reject", h.AdminRejectStat)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin(services.RoleManageOrders))
			r.Get("/orders", h.AdminListOrders)
			r.Post("/orders", h.AdminCreateOrder)
			r.Post("/orders/{orderId}/complete", h.AdminCompleteOrder)
			r.Put("/orders/{orderId}/products", h.AdminReplaceProducts)
		})

		r.With(admin("")).Get("/users", h.AdminListUsers)
		r.With(admin("")).Post("/promote", h.PromoteAdmin)
		r.With(admin("")).Post("/roles/grant", h.GrantRole)
		r.With(admin("")).Post("/roles/revoke", h.RevokeRole)
		r.With(admin("")).Get("/audit", h.ListAuditLogs)
		r.With(admin("")).Get("/reconcile", h.Reconcile)
	})

	if h.metrics != nil {
		router.Handle("/metrics", h.metrics.Handler())
	}
	if h.uploads != nil {
		router.Handle("/uploads/*", http.StripPrefix("/uploads/", h.uploads))
	}
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func splitOrigins(raw string) []string {
	origins := make([]string, 0, 1)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = append(origins, "*")
	}
	return origins
}
