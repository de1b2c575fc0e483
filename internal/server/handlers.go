package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/service"
	"github.com/deepuonthemove/lessonforge/internal/storage"
)

const defaultListLimit = 50

// RegisterRoutes mounts the lesson, trace, and asset endpoints.
func (s *Server) RegisterRoutes(svc *service.Service, assetDir string) {
	h := &handlers{svc: svc, logger: s.logger}

	s.Router.Route("/v1/lessons", func(r chi.Router) {
		r.Post("/", h.createLesson)
		r.Get("/", h.listLessons)
		r.Get("/{id}", h.getLesson)
		r.Delete("/{id}", h.deleteLesson)
	})

	s.Router.Route("/v1/traces", func(r chi.Router) {
		r.Get("/", h.listTraces)
		r.Delete("/", h.deleteAllTraces)
		r.Get("/{id}", h.getTrace)
		r.Delete("/{id}", h.deleteTrace)
	})

	s.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if assetDir != "" {
		fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(assetDir)))
		s.Router.Get("/assets/*", fs.ServeHTTP)
	}
}

type handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

func (h *handlers) createLesson(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lesson, err := h.svc.SubmitLesson(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, lesson)
}

func (h *handlers) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.svc.GetLesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *handlers) listLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.svc.ListLessons(r.Context(), listOptions(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if lessons == nil {
		lessons = []*domain.Lesson{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lessons": lessons})
}

func (h *handlers) deleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLesson(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getTrace(w http.ResponseWriter, r *http.Request) {
	trace, err := h.svc.GetTrace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (h *handlers) listTraces(w http.ResponseWriter, r *http.Request) {
	traces, err := h.svc.ListTraces(r.Context(), listOptions(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if traces == nil {
		traces = []*domain.Trace{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": traces})
}

func (h *handlers) deleteTrace(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTrace(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteAllTraces(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.DeleteAllTraces(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handlers) respondError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var notFound *storage.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func listOptions(r *http.Request) storage.ListOptions {
	opts := storage.ListOptions{Limit: defaultListLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	return opts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}
