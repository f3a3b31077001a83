// Package api serves the JSON endpoints used by the ink front page.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/identity"
	"github.com/firefly-engineering/ink/internal/instance"
	"github.com/firefly-engineering/ink/internal/logging"
)

// Service is the registry surface the API exposes.
type Service interface {
	List(ctx context.Context) ([]instance.Instance, error)
	ListByOwner(ctx context.Context, owner string) ([]instance.Instance, error)
	Create(ctx context.Context, owner string) (*instance.Instance, error)
	Remove(ctx context.Context, name string) error
}

// Handler holds the API dependencies.
type Handler struct {
	service  Service
	identity identity.Provider
	logger   *slog.Logger
}

// New creates a Handler. A nil logger uses the "api" component logger.
func New(service Service, provider identity.Provider, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Component("api")
	}
	return &Handler{service: service, identity: provider, logger: logger}
}

// Routes returns the API router, to be mounted at /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.identify)

	r.Get("/whoami", h.handleWhoami)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)
		r.Get("/list", h.handleList)
		r.Get("/mine", h.handleMine)
		r.Delete("/mine", h.handleRemoveMine)
		r.Get("/create", h.handleCreate)
		r.Post("/create", h.handleCreate)
	})

	return r
}

// identify resolves the caller and stores it in the request context.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identity.Identify(r)
		if err != nil {
			h.logger.Error("identity lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "identity lookup failed")
			return
		}
		if id != nil {
			r = r.WithContext(identity.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.FromContext(r.Context()) == nil {
			writeErr(w, errors.Unauthenticated())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	instances, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list failed", "error", err)
		writeErr(w, err)
		return
	}

	redacted := make([]instance.Instance, 0, len(instances))
	for _, inst := range instances {
		redacted = append(redacted, inst.Redacted())
	}
	writeJSON(w, http.StatusOK, redacted)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	mine, err := h.service.ListByOwner(r.Context(), id.ID)
	if err != nil {
		h.logger.Error("list by owner failed", "owner", id.ID, "error", err)
		writeErr(w, err)
		return
	}
	if len(mine) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, mine[0])
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	inst, err := h.service.Create(r.Context(), id.ID)
	if err != nil {
		if !errors.IsKind(err, errors.KindCapacity) {
			h.logger.Error("create failed", "owner", id.ID, "error", err)
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (h *Handler) handleRemoveMine(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	mine, err := h.service.ListByOwner(r.Context(), id.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(mine) == 0 {
		writeErr(w, errors.New(errors.KindNotFound, errors.ExitInstanceNotFound, "no instance to remove"))
		return
	}
	for _, inst := range mine {
		if err := h.service.Remove(r.Context(), inst.Name); err != nil {
			h.logger.Error("remove failed", "name", inst.Name, "error", err)
			writeErr(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Debug("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to its HTTP status. Capacity and identity errors carry
// their message; anything else is reported generically.
func writeErr(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	message := http.StatusText(status)
	var inkErr *errors.InkError
	if status != http.StatusInternalServerError && errors.As(err, &inkErr) {
		message = inkErr.Message
	}
	writeError(w, status, message)
}
