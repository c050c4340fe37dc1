package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"fsanano/pharmacy-storefront/internal/metrics"
	"fsanano/pharmacy-storefront/internal/model"
	"fsanano/pharmacy-storefront/internal/service"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

// PharmacyAPI is the subset of the pharmacy client the facade calls directly.
type PharmacyAPI interface {
	IsLoading() bool
	LastError() *pharmacy.APIError

	SearchMedicines(ctx context.Context, filters model.SearchFilters) (*model.Page[model.Medicine], error)
	GetMedicineByID(ctx context.Context, id string) (*model.Medicine, error)
	GetMedicineRecommendations(ctx context.Context) ([]model.Medicine, error)
	GetUserOrders(ctx context.Context) ([]model.Order, error)
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	UploadPrescription(ctx context.Context, up pharmacy.PrescriptionUpload) (*model.Prescription, error)
	GetUserPrescriptions(ctx context.Context) ([]model.Prescription, error)
}

type Handler struct {
	router *chi.Mux

	api      PharmacyAPI
	cart     *service.CartStore
	session  *service.SessionStore
	checkout *service.CheckoutService
	log      logrus.FieldLogger
}

func NewHandler(api PharmacyAPI, cart *service.CartStore, session *service.SessionStore, checkout *service.CheckoutService, log logrus.FieldLogger) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	h := &Handler{
		router:   router,
		api:      api,
		cart:     cart,
		session:  session,
		checkout: checkout,
		log:      log.WithField("component", "handler"),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Handle("/metrics", metrics.Handler())

	h.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Get("/status", h.Status)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{medicineID}", h.UpdateCartItem)
			r.Delete("/items/{medicineID}", h.RemoveCartItem)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.With(h.guestOnly).Post("/login", h.Login)
			r.With(h.guestOnly).Post("/register", h.Register)
			r.Post("/logout", h.Logout)
			r.With(h.requireAuth).Get("/me", h.FetchUser)
		})

		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.SearchMedicines)
			r.Get("/recommendations", h.GetRecommendations)
			r.Get("/{medicineID}", h.GetMedicine)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/orders/checkout", h.Checkout)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderID}", h.GetOrder)

			r.Post("/prescriptions", h.UploadPrescription)
			r.Get("/prescriptions", h.ListPrescriptions)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Status exposes the client's ambient state: the loading flag and last error.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"loading":   h.api.IsLoading(),
		"lastError": h.api.LastError(),
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := service.Gate(service.RouteMeta{Path: r.URL.RequestURI(), RequiresAuth: true}, h.session.IsAuthenticated())
		if !d.Allow {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    "authentication required",
				"redirect": d.Redirect,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) guestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := service.Gate(service.RouteMeta{Path: r.URL.RequestURI(), GuestOnly: true}, h.session.IsAuthenticated())
		if !d.Allow {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":    "already authenticated",
				"redirect": d.Redirect,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
