package hr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/peoplehub/dispatch/pkg/notify"
	"github.com/peoplehub/dispatch/pkg/queue"
)

// userIDHeader carries the authenticated caller's user id, set by upstream
// auth middleware. Authentication itself is a collaborator concern.
const userIDHeader = "X-User-ID"

// Router exposes the notification read surface, the preference surface, and
// the queue management endpoints.
type Router struct {
	manager      *queue.Manager
	orchestrator *notify.Orchestrator
	preferences  *notify.Preferences
	logger       *slog.Logger
}

// NewRouter builds the HTTP handler for the engine's management surface.
func NewRouter(manager *queue.Manager, orchestrator *notify.Orchestrator, preferences *notify.Preferences, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{
		manager:      manager,
		orchestrator: orchestrator,
		preferences:  preferences,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", rt.listNotifications)
		r.Get("/unread-count", rt.unreadCount)
		r.Patch("/read-all", rt.markAllRead)
		r.Patch("/{id}/read", rt.markRead)

		r.Get("/preferences", rt.listPreferences)
		r.Put("/preferences", rt.updatePreference)
		r.Post("/preferences/initialize", rt.initializePreferences)
	})

	r.Route("/queues/{queue}", func(r chi.Router) {
		r.Get("/stats", rt.queueStats)
		r.Get("/jobs/{id}/status", rt.jobStatus)
		r.Put("/jobs/{id}/progress", rt.jobProgress)
		r.Post("/pause", rt.pauseQueue)
		r.Post("/resume", rt.resumeQueue)
		r.Delete("/clean", rt.cleanQueue)
		r.Post("/retry-failed", rt.retryFailed)
	})

	return r
}

func (rt *Router) userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (rt *Router) writeError(w http.ResponseWriter, status int, msg string) {
	rt.writeJSON(w, status, map[string]string{"error": msg})
}

func (rt *Router) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	list, err := rt.orchestrator.UserNotifications(r.Context(), userID)
	if err != nil {
		rt.logger.Error("failed to list notifications", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if list == nil {
		list = []notify.Notification{}
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (rt *Router) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	count, err := rt.orchestrator.UnreadCount(r.Context(), userID)
	if err != nil {
		rt.logger.Error("failed to count unread notifications", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to count unread notifications")
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (rt *Router) markRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := rt.userID(r); !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := rt.orchestrator.MarkAsRead(r.Context(), id); err != nil {
		if errors.Is(err, notify.ErrNotificationNotFound) {
			rt.writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		rt.logger.Error("failed to mark notification read", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	if err := rt.orchestrator.MarkAllAsRead(r.Context(), userID); err != nil {
		rt.logger.Error("failed to mark notifications read", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	prefs, err := rt.preferences.GetUserPreferences(r.Context(), userID)
	if err != nil {
		rt.logger.Error("failed to list preferences", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to list preferences")
		return
	}
	if prefs == nil {
		prefs = []notify.Preference{}
	}
	rt.writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (rt *Router) updatePreference(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var body struct {
		Type    notify.Type    `json:"type"`
		Channel notify.Channel `json:"channel"`
		Enabled bool           `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := rt.preferences.UpdatePreference(r.Context(), notify.UpdatePreferenceParams{
		UserID:  userID,
		Type:    body.Type,
		Channel: body.Channel,
		Enabled: body.Enabled,
	})
	if err != nil {
		if errors.Is(err, notify.ErrInvalidType) || errors.Is(err, notify.ErrInvalidChannel) {
			rt.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rt.logger.Error("failed to update preference", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to update preference")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) initializePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := rt.userID(r)
	if !ok {
		rt.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	inserted, err := rt.preferences.InitializeUserPreferences(r.Context(), userID)
	if err != nil {
		rt.logger.Error("failed to initialize preferences", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to initialize preferences")
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted})
}

func (rt *Router) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.manager.QueueStats(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		if errors.Is(err, queue.ErrUnknownQueue) {
			rt.writeError(w, http.StatusNotFound, "unknown queue")
			return
		}
		rt.logger.Error("failed to read queue stats", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	rt.writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) jobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	status, err := rt.manager.JobStatus(r.Context(), chi.URLParam(r, "queue"), id)
	if err != nil {
		rt.logger.Error("failed to read job status", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to read job status")
		return
	}
	if status == nil {
		rt.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	rt.writeJSON(w, http.StatusOK, status)
}

func (rt *Router) jobProgress(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	var body struct {
		Progress int `json:"progress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = rt.manager.SetJobProgress(r.Context(), chi.URLParam(r, "queue"), id, body.Progress)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrUnknownQueue):
			rt.writeError(w, http.StatusNotFound, "unknown queue")
		case errors.Is(err, queue.ErrJobNotFound):
			rt.writeError(w, http.StatusNotFound, "job not found")
		default:
			rt.logger.Error("failed to update job progress", slog.String("error", err.Error()))
			rt.writeError(w, http.StatusInternalServerError, "failed to update job progress")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) pauseQueue(w http.ResponseWriter, r *http.Request) {
	if err := rt.manager.PauseQueue(r.Context(), chi.URLParam(r, "queue")); err != nil {
		if errors.Is(err, queue.ErrUnknownQueue) {
			rt.writeError(w, http.StatusNotFound, "unknown queue")
			return
		}
		rt.logger.Error("failed to pause queue", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to pause queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) resumeQueue(w http.ResponseWriter, r *http.Request) {
	if err := rt.manager.ResumeQueue(r.Context(), chi.URLParam(r, "queue")); err != nil {
		if errors.Is(err, queue.ErrUnknownQueue) {
			rt.writeError(w, http.StatusNotFound, "unknown queue")
			return
		}
		rt.logger.Error("failed to resume queue", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to resume queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) cleanQueue(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			rt.writeError(w, http.StatusBadRequest, "invalid days value")
			return
		}
		days = parsed
	}

	if err := rt.manager.CleanOldJobs(r.Context(), chi.URLParam(r, "queue"), days); err != nil {
		if errors.Is(err, queue.ErrUnknownQueue) {
			rt.writeError(w, http.StatusNotFound, "unknown queue")
			return
		}
		rt.logger.Error("failed to clean queue", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to clean queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) retryFailed(w http.ResponseWriter, r *http.Request) {
	if err := rt.manager.RetryFailedJobs(r.Context(), chi.URLParam(r, "queue")); err != nil {
		if errors.Is(err, queue.ErrUnknownQueue) {
			rt.writeError(w, http.StatusNotFound, "unknown queue")
			return
		}
		rt.logger.Error("failed to retry failed jobs", slog.String("error", err.Error()))
		rt.writeError(w, http.StatusInternalServerError, "failed to retry failed jobs")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
