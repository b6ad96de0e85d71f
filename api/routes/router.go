package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wambuinjohi/trainerconnect/api/controllers"
	webhookcontrollers "github.com/wambuinjohi/trainerconnect/api/controllers/webhooks"
	"github.com/wambuinjohi/trainerconnect/api/middleware"
	"github.com/wambuinjohi/trainerconnect/internal/collections"
	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/internal/disputes"
	"github.com/wambuinjohi/trainerconnect/internal/ledger"
	"github.com/wambuinjohi/trainerconnect/internal/payouts"
	"github.com/wambuinjohi/trainerconnect/internal/reconcile"
	"github.com/wambuinjohi/trainerconnect/pkg/config"
	"github.com/wambuinjohi/trainerconnect/pkg/db"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	pkgredis "github.com/wambuinjohi/trainerconnect/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *pkgredis.Client
	Ledger        ledger.Service
	Collections   collections.Service
	Disbursements disbursements.Service
	Payouts       payouts.Service
	Disputes      disputes.Service
	Reconcile     *reconcile.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks carry no bearer token; idempotency is enforced
	// downstream by the reconcile dedupe and the ledger reference keys.
	r.Route("/api/v1/webhooks/mpesa", func(r chi.Router) {
		r.Post("/collection", webhookcontrollers.MpesaCollectionCallback(p.Reconcile, logg))
		r.Post("/disbursement", webhookcontrollers.MpesaDisbursementCallback(p.Reconcile, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletFetch(p.Ledger, logg))
			r.Get("/transactions", controllers.WalletTransactions(p.Ledger, logg))
		})

		r.Route("/payments/collections", func(r chi.Router) {
			r.Post("/", controllers.CollectionInitiate(p.Collections, logg))
			r.Get("/", controllers.CollectionList(p.Collections, logg))
			r.Get("/{sessionId}", controllers.CollectionDetail(p.Collections, logg))
			r.Post("/{sessionId}/query", controllers.CollectionQuery(p.Collections, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleTrainer), logg))
			r.Post("/", controllers.PayoutRequest(p.Payouts, logg))
			r.Get("/", controllers.PayoutList(p.Payouts, logg))
		})

		r.Route("/payments/disbursements", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
			r.Post("/", controllers.DisbursementCreate(p.Disbursements, logg))
			r.Get("/{sessionId}", controllers.DisbursementDetail(p.Disbursements, logg))
			r.Post("/{sessionId}/fail", controllers.DisbursementFail(p.Disbursements, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))
			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.AdminPayoutQueue(p.Payouts, logg))
				r.Post("/{payoutId}/approve", controllers.AdminPayoutApprove(p.Payouts, logg))
				r.Post("/{payoutId}/reject", controllers.AdminPayoutReject(p.Payouts, logg))
			})
			r.Route("/disputes", func(r chi.Router) {
				r.Post("/", controllers.AdminDisputeOpen(p.Disputes, logg))
				r.Get("/", controllers.AdminDisputeList(p.Disputes, logg))
				r.Post("/{disputeId}/refund", controllers.AdminDisputeRefund(p.Disputes, logg))
			})
		})
	})

	return r
}
