// Package api serves the capsule HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnhsh/time-capsule/internal/auth"
	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/metrics"
	"github.com/mnhsh/time-capsule/internal/response"
	"github.com/mnhsh/time-capsule/internal/user"
)

const maxBodyBytes = 1 << 20

type API struct {
	capsules *capsule.Service
	users    *user.Service
	auth     *auth.Authenticator
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewAPI(capsules *capsule.Service, users *user.Service, authenticator *auth.Authenticator, m *metrics.Metrics) *API {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = validate.RegisterValidation("maxbytes", validateMaxBytes)
	return &API{
		capsules: capsules,
		users:    users,
		auth:     authenticator,
		metrics:  m,
		validate: validate,
	}
}

// Handler returns the routed API. gatherer backs GET /metrics.
func (a *API) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /v1/users", a.handlerUsers)
	mux.HandleFunc("POST /v1/login", a.handlerLogin)
	mux.HandleFunc("GET /health", a.handlerHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Protected routes
	mux.Handle("POST /v1/capsules", a.protected(a.handlerCreateCapsule))
	mux.Handle("GET /v1/capsules", a.protected(a.handlerListCapsules))
	mux.Handle("GET /v1/capsules/{id}", a.protected(a.handlerGetCapsule))
	mux.Handle("PUT /v1/capsules/{id}", a.protected(a.handlerUpdateCapsule))
	mux.Handle("DELETE /v1/capsules/{id}", a.protected(a.handlerDeleteCapsule))

	return auth.CORSMiddleware(mux)
}

func (a *API) protected(h http.HandlerFunc) http.Handler {
	return auth.WithAuthMiddleware(a.auth, h)
}

func (a *API) handlerHealth(w http.ResponseWriter, r *http.Request) {
	response.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var validationMessages = map[string]string{
	"username.min":       "Username must be between 3 and 30 characters",
	"username.max":       "Username must be between 3 and 30 characters",
	"username.required":  "Username must be between 3 and 30 characters",
	"email.required":     "Please provide a valid email address",
	"email.email":        "Please provide a valid email address",
	"password.required":  "Password is required",
	"password.min":       "Password must be at least 6 characters long",
	"password.maxbytes":  "Password must be at most 72 bytes long",
	"message.required":   "Message is required",
	"unlock_at.required": "Unlock date is required",
}

// decodeBody reads a JSON body into dst and validates it. On failure it
// writes a 400 and returns false.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var timeErr *time.ParseError
		msg := "Invalid request body"
		if errors.As(err, &timeErr) {
			msg = "Invalid date format. Use ISO 8601 format (e.g., 2025-12-31T23:59:59Z)"
		}
		response.RespondWithError(w, http.StatusBadRequest, msg, err)
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		response.RespondWithError(w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

// validateMaxBytes limits a string by byte length. bcrypt refuses input
// longer than 72 bytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}
	fe := verrs[0]
	if msg, ok := validationMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("Invalid value for %s", fe.Field())
}
