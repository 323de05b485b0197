// Package files exposes the upload storage over HTTP. Every caller sees only
// the files under their own user directory.
package files

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/storage"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

// MaxUploadBytes bounds a single multipart upload.
const MaxUploadBytes = 32 << 20

// Handler serves the file routes.
type Handler struct {
	logger      *slog.Logger
	store       storage.Storage
	requireAuth func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store storage.Storage, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, store: store, requireAuth: requireAuth}
}

type uploadResponse struct {
	Path string `json:"path"`
}

type listResponse struct {
	Files []string `json:"files"`
}

// MountRoutes registers file routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/", h.upload)
		r.Get("/", h.list)
		r.Get("/*", h.download)
		r.Delete("/*", h.remove)
	})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerDir(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"file": "multipart field required"})
		return
	}
	defer file.Close()

	subdir, ok := scoped(owner, r.FormValue("subdir"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid path")
		return
	}
	saved, err := h.store.Save(r.Context(), file, header.Filename, subdir)
	if err != nil {
		h.fail(w, "upload file", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, uploadResponse{Path: trimOwner(owner, saved)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerDir(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	dir, ok := scoped(owner, r.URL.Query().Get("subdir"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid path")
		return
	}
	names, err := h.store.List(r.Context(), dir)
	if err != nil {
		h.fail(w, "list files", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Files: names})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerDir(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	name := chi.URLParam(r, "*")
	full, ok := scopedFile(owner, name)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid path")
		return
	}
	rc, err := h.store.Open(r.Context(), full)
	if err != nil {
		h.fail(w, "open file", err)
		return
	}
	defer rc.Close()
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream file", slog.String("path", name), slog.Any("error", err))
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerDir(r)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	full, ok := scopedFile(owner, chi.URLParam(r, "*"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid path")
		return
	}
	deleted, err := h.store.Delete(r.Context(), full)
	if err != nil {
		h.fail(w, "delete file", err)
		return
	}
	if !deleted {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	if errors.Is(err, shared.ErrValidation) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid path")
		return
	}
	httpx.RespondError(w, err)
}

func ownerDir(r *http.Request) (string, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	return "users/" + strconv.FormatInt(p.UserID, 10), true
}

// scoped joins p under owner, refusing paths that climb out of it.
func scoped(owner, p string) (string, bool) {
	full := path.Join(owner, p)
	return full, full == owner || strings.HasPrefix(full, owner+"/")
}

// scopedFile is scoped for paths that must name a file below owner, never
// owner itself.
func scopedFile(owner, p string) (string, bool) {
	full, ok := scoped(owner, p)
	return full, ok && full != owner
}

func trimOwner(owner, p string) string {
	return strings.TrimPrefix(p, owner+"/")
}
