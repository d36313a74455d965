package apiv1

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/domain/ports/adapter"
	"rankblaze-entitlements/internal/infra/api"
	"rankblaze-entitlements/internal/infra/i18n"
	"rankblaze-entitlements/internal/infra/logging"
	"rankblaze-entitlements/internal/infra/worker"
	"rankblaze-entitlements/internal/usecase"
)

// Submitter runs webhook reconciliations off the request path.
type Submitter interface {
	Submit(task worker.Task) error
}

type Deps struct {
	Reconcile usecase.ReconcileUseCase
	Checkout  usecase.CheckoutUseCase
	Access    usecase.AccessUseCase
	Catalog   usecase.CatalogUseCase
	Stats     usecase.StatsUseCase
	Gateway   adapter.PaymentGateway
	Limiter   adapter.RateLimiter
	Pool      Submitter // nil runs callbacks inline
	Auth      *api.AuthManager
	I18n      *i18n.Bundle
}

type Options struct {
	PollLimit      int // status polls per order per minute
	WebhookTimeout time.Duration
}

type Server struct {
	reconcile usecase.ReconcileUseCase
	checkout  usecase.CheckoutUseCase
	access    usecase.AccessUseCase
	catalog   usecase.CatalogUseCase
	stats     usecase.StatsUseCase
	gateway   adapter.PaymentGateway
	limiter   adapter.RateLimiter
	pool      Submitter
	auth      *api.AuthManager
	i18n      *i18n.Bundle

	pollLimit      int
	webhookTimeout time.Duration
	now            func() time.Time
	log            *zerolog.Logger
}

func NewServer(d Deps, opt Options, logger *zerolog.Logger) *Server {
	if opt.PollLimit <= 0 {
		opt.PollLimit = 30
	}
	if opt.WebhookTimeout <= 0 {
		opt.WebhookTimeout = 20 * time.Second
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		reconcile:      d.Reconcile,
		checkout:       d.Checkout,
		access:         d.Access,
		catalog:        d.Catalog,
		stats:          d.Stats,
		gateway:        d.Gateway,
		limiter:        d.Limiter,
		pool:           d.Pool,
		auth:           d.Auth,
		i18n:           d.I18n,
		pollLimit:      opt.PollLimit,
		webhookTimeout: opt.WebhookTimeout,
		now:            time.Now,
		log:            &l,
	}
}

// RegisterAPIV1 mounts every /api/v1 route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/callback", s.PaymentCallback)
		r.Get("/payments/{orderId}/status", s.wrapGetPaymentStatus)
		r.Get("/tools", s.ListTools)
		r.Get("/tools/{toolId}", s.wrapGetTool)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser(s.log))
			r.Get("/access", s.wrapGetAccess)
			r.Post("/checkout", s.Checkout)
		})

		r.Post("/admin/session", s.CreateSession)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin(s.log))
			r.Delete("/admin/session", s.DeleteSession)
			r.Post("/admin/payments/fix", s.ManualFix)
			r.Put("/admin/tools/{toolId}", s.wrapUpsertTool)
			r.Delete("/admin/entitlements/{userId}/{toolId}", s.wrapRevokeEntitlement)
			r.Get("/admin/users/{userId}/entitlements", s.wrapListUserEntitlements)
			r.Get("/admin/stats", s.GetStats)
		})
	})
}

// ---- parameter binding ----

func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	return v, err
}

func (s *Server) wrapGetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathParam(r, "orderId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.GetPaymentStatus(w, r, orderID)
}

func (s *Server) wrapGetAccess(w http.ResponseWriter, r *http.Request) {
	var params GetAccessParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "userId", q, &params.UserId); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := runtime.BindQueryParameter("form", true, true, "toolId", q, &params.ToolId); err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.GetAccess(w, r, params)
}

func (s *Server) wrapGetTool(w http.ResponseWriter, r *http.Request) {
	toolID, err := pathParam(r, "toolId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.GetTool(w, r, toolID)
}

func (s *Server) wrapUpsertTool(w http.ResponseWriter, r *http.Request) {
	toolID, err := pathParam(r, "toolId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.UpsertTool(w, r, toolID)
}

func (s *Server) wrapRevokeEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	toolID, err := pathParam(r, "toolId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.RevokeEntitlement(w, r, userID, toolID)
}

func (s *Server) wrapListUserEntitlements(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "userId")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.ListUserEntitlements(w, r, userID)
}

// ---- responses ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// tr picks the request language from ?lang= or Accept-Language.
func (s *Server) tr(r *http.Request, key string, args ...any) string {
	if s.i18n == nil {
		return key
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}
	if i := strings.IndexAny(lang, ",;-_"); i > 0 {
		lang = lang[:i]
	}
	return s.i18n.For(strings.ToLower(strings.TrimSpace(lang))).T(key, args...)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, errCode, msgKey string) {
	writeJSON(w, code, ErrorResponse{Error: errCode, Message: s.tr(r, msgKey)})
}

// callerID resolves the user a request acts for. A user id named in the
// request must match the token subject.
func (s *Server) callerID(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	userID, ok := api.UserIDFrom(r.Context())
	if !ok {
		s.fail(w, r, http.StatusUnauthorized, "unauthorized", "error.unauthorized")
		return "", false
	}
	if claimed != "" && claimed != userID {
		logging.With(r.Context(), s.log).Warn().
			Str("event", "security").
			Str("claimed_user_id", claimed).
			Str("path", r.URL.Path).
			Msg("user id does not match token subject")
		s.fail(w, r, http.StatusForbidden, "forbidden", "error.forbidden")
		return "", false
	}
	return userID, true
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bad request")
	s.fail(w, r, http.StatusBadRequest, "bad_request", "error.bad_request")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
