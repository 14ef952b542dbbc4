package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/convert"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/rpc"
	"github.com/and161185/timekeeper/internal/service"
)

type handler struct {
	projects service.ProjectService
	sessions service.SessionService
	settings service.SettingService
	log      *zap.Logger
}

// apiError is the body of every non-2xx response.
type apiError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) apiError {
	return apiError{Error: code, Message: message, RequestID: chimiddleware.GetReqID(r.Context())}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, errs.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "not found", r))
	case errors.Is(err, errs.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "unauthorized", r))
	default:
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "internal error", r))
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.E(errs.KindValidation, "decode body", errs.ErrValidation)
	}
	return nil
}

func urlID(r *http.Request, name string) (uuid.UUID, error) {
	return convert.ParseID(name, chi.URLParam(r, name))
}

// --- Projects ---

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := h.projects.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireProjects(ps))
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.projects.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireProject(p))
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var body rpc.Project
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := convert.FromWireProject(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.projects.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToWireProject(p))
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var body rpc.Project
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	body.ID = chi.URLParam(r, "id")
	in, err := convert.FromWireProject(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.projects.Update(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireProject(p))
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.projects.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sessions ---

func (h *handler) writeSessions(w http.ResponseWriter, r *http.Request, ss []model.Session, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireSessions(ss))
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	ss, err := h.sessions.List(r.Context(), uuid.Nil)
	h.writeSessions(w, r, ss, err)
}

func (h *handler) listByProject(w http.ResponseWriter, r *http.Request) {
	pid, err := urlID(r, "projectId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ss, err := h.sessions.List(r.Context(), pid)
	h.writeSessions(w, r, ss, err)
}

func (h *handler) listActive(w http.ResponseWriter, r *http.Request) {
	ss, err := h.sessions.ListActive(r.Context())
	h.writeSessions(w, r, ss, err)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireSession(s))
}

func (h *handler) sessionWrite(w http.ResponseWriter, r *http.Request, status int, idFromURL bool,
	call func(context.Context, model.Session) (model.Session, error)) {
	var body rpc.Session
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if idFromURL {
		body.ID = chi.URLParam(r, "id")
	}
	in, err := convert.FromWireSession(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := call(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, convert.ToWireSession(out))
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	h.sessionWrite(w, r, http.StatusCreated, false, h.sessions.Create)
}

func (h *handler) updateSession(w http.ResponseWriter, r *http.Request) {
	h.sessionWrite(w, r, http.StatusOK, true, h.sessions.Update)
}

func (h *handler) upsertActive(w http.ResponseWriter, r *http.Request) {
	h.sessionWrite(w, r, http.StatusOK, false, h.sessions.UpsertActive)
}

func (h *handler) completeActive(w http.ResponseWriter, r *http.Request) {
	var body rpc.CompleteActiveRequest
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	body.ID = chi.URLParam(r, "id")
	id, end, dur, err := convert.FromWireComplete(&body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.sessions.CompleteActive(r.Context(), id, end, dur)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireSession(s))
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Settings ---

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireSettings(all))
}

func (h *handler) getSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	v, err := h.settings.Get(r.Context(), model.SettingKey(key))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.Setting{Key: key, Value: v})
}

func (h *handler) putSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.settings.Put(r.Context(), model.SettingKey(key), body.Value); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rpc.Setting{Key: key, Value: body.Value})
}

// --- Auth ---

// Authenticator resolves a bearer token to a device id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

func bearerAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") || strings.TrimSpace(v[7:]) == "" {
				writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "missing bearer token", r))
				return
			}
			if _, err := auth.Authenticate(r.Context(), strings.TrimSpace(v[7:])); err != nil {
				if errors.Is(err, errs.ErrUnauthorized) {
					writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "invalid token", r))
					return
				}
				writeJSON(w, http.StatusServiceUnavailable, errorResp("UNAVAILABLE", "auth backend unavailable", r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
