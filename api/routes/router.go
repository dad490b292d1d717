package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serataapp/serata-backend/api/controllers"
	"github.com/serataapp/serata-backend/api/middleware"
	"github.com/serataapp/serata-backend/internal/accounts"
	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/internal/campaigns"
	"github.com/serataapp/serata-backend/internal/cancellations"
	"github.com/serataapp/serata-backend/internal/checkin"
	"github.com/serataapp/serata-backend/internal/guestlists"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/internal/notifications"
	"github.com/serataapp/serata-backend/internal/promoters"
	"github.com/serataapp/serata-backend/internal/tables"
	"github.com/serataapp/serata-backend/pkg/auth/session"
	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/redis"
)

// Deps carries everything the router wires together. cmd/api fills it
// after building the service graph.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	Accounts      *accounts.Service
	Identity      *identity.Resolver
	Promoters     *promoters.Service
	Assignments   *assignments.Registry
	GuestLists    *guestlists.Service
	Tables        *tables.Service
	Cancellations *cancellations.Service
	CheckIn       *checkin.Service
	Notifications *notifications.Service
	Campaigns     *campaigns.Service

	PromRegistry *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, d.DB, d.Redis, logg))
	})

	if d.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Accounts, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Accounts, logg))
		r.Post("/logout", controllers.AuthLogout(d.Accounts, logg))
	})

	// Promoter app login: promoter code plus phone, no password.
	r.Post("/api/v1/promoter-auth/token", controllers.PromoterToken(d.Promoters, logg))

	// Promoter app surface. Authenticated by the opaque profile token.
	r.Route("/api/v1/promoter", func(r chi.Router) {
		r.Use(middleware.PromoterAuth(d.Promoters, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Get("/guest-lists", controllers.GuestListByEvent(d.GuestLists, logg))
		r.Get("/guest-lists/{listId}", controllers.GuestListGet(d.GuestLists, logg))
		r.Post("/guest-lists/{listId}/entries", controllers.GuestAdd(d.GuestLists, logg))
		r.Get("/guest-lists/{listId}/entries", controllers.GuestEntryList(d.GuestLists, logg))
		r.Post("/entries/{entryId}/cancel", controllers.GuestEntryCancel(d.GuestLists, logg))
		r.Post("/bookings", controllers.BookingPropose(d.Tables, logg))
		r.Get("/bookings/{bookingId}", controllers.BookingGet(d.Tables, logg))
		r.Post("/bookings/{bookingId}/cancel", controllers.BookingCancel(d.Tables, logg))
		r.Post("/cancellations", controllers.CancellationCreate(d.Cancellations, logg))
	})

	// Back-office surface. JWT accounts with tenant roles.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		if d.Identity != nil {
			r.Use(middleware.ResolveIdentity(d.Identity))
		}
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Post("/accounts/password", controllers.AuthChangePassword(d.Accounts, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, "owner", "manager"))

			r.Post("/accounts", controllers.AuthRegister(d.Accounts, logg))

			r.Route("/promoters", func(r chi.Router) {
				r.Post("/", controllers.PromoterCreate(d.Promoters, logg))
				r.Get("/", controllers.PromoterList(d.Promoters, logg))
				r.Get("/{promoterId}", controllers.PromoterGet(d.Promoters, logg))
				r.Patch("/{promoterId}", controllers.PromoterUpdate(d.Promoters, logg))
				r.Post("/{promoterId}/active", controllers.PromoterSetActive(d.Promoters, logg))
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Post("/", controllers.AssignmentCreate(d.Assignments, logg))
				r.Get("/", controllers.AssignmentListByEvent(d.Assignments, logg))
				r.Post("/{assignmentId}/deactivate", controllers.AssignmentDeactivate(d.Assignments, logg))
				r.Post("/{assignmentId}/lists/{listId}", controllers.AssignmentNarrowList(d.Assignments, logg))
				r.Post("/{assignmentId}/table-types/{tableTypeId}", controllers.AssignmentNarrowTableType(d.Assignments, logg))
			})

			r.Route("/table-types", func(r chi.Router) {
				r.Post("/", controllers.TableTypeCreate(d.Tables, logg))
				r.Get("/", controllers.TableTypeList(d.Tables, logg))
				r.Get("/{tableTypeId}", controllers.TableTypeGet(d.Tables, logg))
				r.Patch("/{tableTypeId}", controllers.TableTypeUpdate(d.Tables, logg))
			})

			r.Post("/bookings/{bookingId}/approve", controllers.BookingApprove(d.Tables, logg))
			r.Post("/bookings/{bookingId}/reject", controllers.BookingReject(d.Tables, logg))

			r.Post("/cancellations/{cancellationId}/approve", controllers.CancellationApprove(d.Cancellations, logg))
			r.Post("/cancellations/{cancellationId}/reject", controllers.CancellationReject(d.Cancellations, logg))

			r.Post("/campaigns/{campaignId}/queue", controllers.CampaignQueue(d.Campaigns, logg))
			r.Get("/campaigns/{campaignId}/sent-count", controllers.CampaignSentCount(d.Campaigns, logg))
		})

		// Staff and above: day-of-event operations.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, "owner", "manager", "staff"))

			r.Route("/guest-lists", func(r chi.Router) {
				r.Post("/", controllers.GuestListCreate(d.GuestLists, logg))
				r.Get("/", controllers.GuestListByEvent(d.GuestLists, logg))
				r.Get("/{listId}", controllers.GuestListGet(d.GuestLists, logg))
				r.Patch("/{listId}", controllers.GuestListUpdate(d.GuestLists, logg))
				r.Post("/{listId}/entries", controllers.GuestAdd(d.GuestLists, logg))
				r.Get("/{listId}/entries", controllers.GuestEntryList(d.GuestLists, logg))
			})

			r.Post("/entries/{entryId}/confirm", controllers.GuestEntryConfirm(d.GuestLists, logg))
			r.Post("/entries/{entryId}/cancel", controllers.GuestEntryCancel(d.GuestLists, logg))

			r.Get("/bookings", controllers.BookingList(d.Tables, logg))
			r.Get("/bookings/{bookingId}", controllers.BookingGet(d.Tables, logg))
			r.Post("/bookings", controllers.BookingPropose(d.Tables, logg))
			r.Post("/bookings/{bookingId}/cancel", controllers.BookingCancel(d.Tables, logg))

			r.Post("/cancellations", controllers.CancellationCreate(d.Cancellations, logg))
			r.Get("/cancellations", controllers.CancellationList(d.Cancellations, logg))
			r.Get("/cancellations/{cancellationId}", controllers.CancellationGet(d.Cancellations, logg))

			r.Get("/notifications", controllers.NotificationList(d.Notifications, logg))
			r.Post("/notifications/{notificationId}/read", controllers.NotificationMarkRead(d.Notifications, logg))

			r.With(middleware.ScanRateLimit(
				cfg.AuthRateLimit.ScanWindow,
				cfg.AuthRateLimit.ScanDeviceLimit,
				d.Redis,
				logg,
			)).Post("/checkin/scan", controllers.CheckInScan(d.CheckIn, logg))
		})
	})

	return r
}
