package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/cors"

	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const healthTimeout = 2 * time.Second

type HTTPHandler struct {
	books     *service.BookService
	borrowers *service.BorrowerService
	lending   *service.LendingService
	store     port.Pinger
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewHTTPHandler(
	books *service.BookService,
	borrowers *service.BorrowerService,
	lending *service.LendingService,
	store port.Pinger,
	logger *slog.Logger,
) *HTTPHandler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	return &HTTPHandler{
		books:     books,
		borrowers: borrowers,
		lending:   lending,
		store:     store,
		logger:    logger,
		validate:  validate,
		now:       time.Now,
	}
}

// jsonFieldName reports validation failures under the name clients send.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// RouterOptions configures the middleware around the routes. A nil Limiter disables
// rate limiting.
type RouterOptions struct {
	Limiter     port.RateLimiter
	CORSOrigins []string
}

func (h *HTTPHandler) Router(opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	limited := h.rateLimit(opts.Limiter)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	router.Handle("/books/search", limited(http.HandlerFunc(h.SearchBooks))).Methods(http.MethodGet)
	router.Handle("/books", limited(http.HandlerFunc(h.ListBooks))).Methods(http.MethodGet)
	router.HandleFunc("/books", h.CreateBook).Methods(http.MethodPost)
	router.HandleFunc("/books/{id}", h.GetBook).Methods(http.MethodGet)
	router.HandleFunc("/books/{id}", h.UpdateBook).Methods(http.MethodPatch)
	router.HandleFunc("/books/{id}", h.DeleteBook).Methods(http.MethodDelete)

	router.HandleFunc("/borrowers", h.ListBorrowers).Methods(http.MethodGet)
	router.HandleFunc("/borrowers", h.CreateBorrower).Methods(http.MethodPost)
	router.HandleFunc("/borrowers/{id}", h.GetBorrower).Methods(http.MethodGet)
	router.HandleFunc("/borrowers/{id}", h.UpdateBorrower).Methods(http.MethodPatch)
	router.HandleFunc("/borrowers/{id}", h.DeleteBorrower).Methods(http.MethodDelete)

	router.HandleFunc("/checkout/{bookId}/{borrowerId}", h.Checkout).Methods(http.MethodPost)
	router.HandleFunc("/return/{bookId}/{borrowerId}", h.Return).Methods(http.MethodPost)
	router.HandleFunc("/checked-out", h.CheckedOut).Methods(http.MethodGet)
	router.HandleFunc("/checked-out/{borrowerId}", h.CheckedOutBy).Methods(http.MethodGet)
	router.HandleFunc("/overdue", h.Overdue).Methods(http.MethodGet)
	router.HandleFunc("/export", h.Export).Methods(http.MethodGet)
	router.HandleFunc("/export-last-month", h.ExportLastMonth).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return h.recoverer(h.logRequests(c.Handler(router)))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *HTTPHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest("invalid request body")
	}
	return h.validate.Struct(dst)
}
