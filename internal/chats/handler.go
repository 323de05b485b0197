package chats

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/httpx"
)

// Handler exposes the chat and message API.
type Handler struct {
	logger   *slog.Logger
	provider *Provider
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, provider *Provider) *Handler {
	return &Handler{logger: logger, provider: provider, validate: httpx.NewValidator()}
}

// MountRoutes registers the chat routes on r, which is expected to sit under
// the API prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/chats", func(r chi.Router) {
		r.Get("/", h.listChats)
		r.Post("/", h.createChat)
		r.Route("/{chatID}", func(r chi.Router) {
			r.Get("/", h.getChat)
			r.Put("/", h.updateChat)
			r.Delete("/", h.deleteChat)
			r.Get("/messages", h.listMessages)
			r.Get("/messages/", h.listMessages)
		})
	})
	r.Post("/messages", h.createMessage)
	r.Post("/messages/", h.createMessage)
}

func (h *Handler) listChats(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paging(w, r)
	if !ok {
		return
	}
	var list []ChatResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		list, err = svc.ListChats(ctx, skip, limit)
		return err
	})
	if err != nil {
		h.fail(w, r, "list chats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	var created ChatDetailResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		created, err = svc.CreateChat(ctx, req)
		return err
	})
	if err != nil {
		h.fail(w, r, "create chat", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var chat ChatDetailResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		chat, err = svc.GetChat(ctx, id)
		return err
	})
	if err != nil {
		h.fail(w, r, "get chat", err)
		return
	}
	httpx.JSON(w, http.StatusOK, chat)
}

func (h *Handler) updateChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	var chat ChatResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		chat, err = svc.UpdateChat(ctx, id, req)
		return err
	})
	if err != nil {
		h.fail(w, r, "update chat", err)
		return
	}
	httpx.JSON(w, http.StatusOK, chat)
}

func (h *Handler) deleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var resp DeleteResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		resp, err = svc.DeleteChat(ctx, id)
		return err
	})
	if err != nil {
		h.fail(w, r, "delete chat", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	skip, limit, ok := paging(w, r)
	if !ok {
		return
	}
	var list []MessageResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		list, err = svc.ChatMessages(ctx, id, skip, limit)
		return err
	})
	if err != nil {
		h.fail(w, r, "list messages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	var msg MessageResponse
	err := h.provider.Scope(r.Context(), func(ctx context.Context, svc *Service) error {
		var err error
		msg, err = svc.CreateMessage(ctx, req)
		return err
	})
	if err != nil {
		h.fail(w, r, "create message", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}

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

func chatID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "chat_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func paging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	values := [2]int{}
	for i, key := range []string{"skip", "limit"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", key+" must be a non-negative integer")
			return 0, 0, false
		}
		values[i] = v
	}
	return values[0], values[1], true
}
