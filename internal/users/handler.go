package users

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// WelcomeNotifier schedules the welcome mail for a new account.
type WelcomeNotifier interface {
	EnqueueWelcome(ctx context.Context, user UserResponse) error
}

// Handler exposes the user API.
type Handler struct {
	logger      *slog.Logger
	provider    *Provider
	validate    *validator.Validate
	requireAuth func(http.Handler) http.Handler
	welcome     WelcomeNotifier
}

// NewHandler builds Handler instance. welcome may be nil.
func NewHandler(logger *slog.Logger, provider *Provider, requireAuth func(http.Handler) http.Handler, welcome WelcomeNotifier) *Handler {
	return &Handler{
		logger:      logger,
		provider:    provider,
		validate:    httpx.NewValidator(),
		requireAuth: requireAuth,
		welcome:     welcome,
	}
}

// MountRoutes registers the API routes on r, which is expected to sit under
// the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/hello", h.hello)
	r.Post("/login", h.login)
	r.Post("/login/", h.login)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.With(h.requireAuth).Get("/me", h.me)
		r.Get("/{userID}", h.getUser)
	})
}

func (h *Handler) hello(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, HelloResponse{Message: "Hello, World!"})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	var created UserResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		created, err = svc.RegisterUser(ctx, req)
		return err
	})
	if err != nil {
		h.fail(w, r, "register user", err)
		return
	}
	if h.welcome != nil {
		if err := h.welcome.EnqueueWelcome(r.Context(), created); err != nil {
			h.logger.Warn("enqueue welcome mail", slog.Int64("user_id", created.ID), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "user_id must be a positive integer")
		return
	}
	var user UserResponse
	err = h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		user, err = svc.GetUserProfile(ctx, id)
		return err
	})
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var user UserResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		user, err = svc.CurrentUser(ctx, principal.UserID)
		return err
	})
	if err != nil {
		h.fail(w, r, "current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
		return
	}
	var list []UserResponse
	err = h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		list, err = svc.ListUsers(ctx, skip, limit)
		return err
	})
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	var token TokenResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		token, err = svc.Login(ctx, req.Username, req.Password)
		return err
	})
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, token)
}

// decode reads and validates the body, writing the 422 response itself on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if fields := httpx.FieldErrors(h.validate, target); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
