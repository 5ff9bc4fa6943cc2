package view

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/watchpoint/watchpoint/internal/auth"
	"github.com/watchpoint/watchpoint/internal/httputil"
)

type checkResponse struct {
	HasResumableSession bool    `json:"hasResumableSession"`
	ViewID              string  `json:"viewId,omitempty"`
	PlayheadPosition    int     `json:"playheadPosition,omitempty"`
	WatchTimeSeconds    int     `json:"watchTimeSeconds,omitempty"`
	UpdatedAt           *string `json:"updatedAt,omitempty"`
}

type startRequest struct {
	ForceNew bool `json:"forceNew"`
}

type startResponse struct {
	ViewID           string `json:"viewId"`
	PlayheadPosition int    `json:"playheadPosition"`
	WatchTimeSeconds int    `json:"watchTimeSeconds"`
	Resuming         bool   `json:"resuming"`
}

type resumeRequest struct {
	ViewID string `json:"viewId"`
}

type resumeResponse struct {
	ViewID           string `json:"viewId"`
	PlayheadPosition int    `json:"playheadPosition"`
	WatchTimeSeconds int    `json:"watchTimeSeconds"`
}

type updateRequest struct {
	ViewID           string  `json:"viewId"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	PlayheadPosition float64 `json:"playheadPosition"`
	IsComplete       bool    `json:"isComplete"`
	UpdateVersion    int64   `json:"updateVersion"`
}

type updateResponse struct {
	WatchTimeSeconds int  `json:"watchTimeSeconds"`
	PlayheadPosition int  `json:"playheadPosition"`
	IsComplete       bool `json:"isComplete"`
	Stale            bool `json:"stale,omitempty"`
}

// recentSession is the newest session row inside the resumable window,
// open sessions preferred.
type recentSession struct {
	id            string
	playhead      int
	watched       int
	stillWatching bool
	completed     bool
	updatedAt     time.Time
	duration      int
}

func (h *Handler) recentSession(ctx context.Context, videoID, userID string) (recentSession, error) {
	var s recentSession
	err := h.db.QueryRow(ctx,
		`SELECT vv.id, vv.playhead_position, vv.watch_time_seconds, vv.still_watching,
		        vv.completed, vv.updated_at, v.duration_seconds
		 FROM video_views vv
		 JOIN videos v ON v.id = vv.video_id
		 WHERE vv.video_id = $1 AND vv.user_id = $2 AND vv.created_at > now() - INTERVAL '7 days'
		 ORDER BY vv.still_watching DESC, vv.updated_at DESC
		 LIMIT 1`,
		videoID, userID,
	).Scan(&s.id, &s.playhead, &s.watched, &s.stillWatching, &s.completed, &s.updatedAt, &s.duration)
	return s, err
}

// resumable decides whether a recent session is worth offering back to
// the viewer. Open sessions always are; a closed one only when it was
// abandoned partway, under the rewatch cutoff.
func (s recentSession) resumable() bool {
	if s.completed || s.playhead <= 0 {
		return false
	}
	if s.stillWatching {
		return true
	}
	if s.duration > 0 && float64(s.watched) >= reopenWatchedRatio*float64(s.duration) {
		return false
	}
	return true
}

// Check probes for a resumable session without creating anything.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	s, err := h.recentSession(r.Context(), videoID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteJSON(w, http.StatusOK, checkResponse{HasResumableSession: false})
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to check sessions")
		return
	}

	if !s.resumable() {
		httputil.WriteJSON(w, http.StatusOK, checkResponse{HasResumableSession: false})
		return
	}

	updatedAt := s.updatedAt.UTC().Format(time.RFC3339)
	httputil.WriteJSON(w, http.StatusOK, checkResponse{
		HasResumableSession: true,
		ViewID:              s.id,
		PlayheadPosition:    s.playhead,
		WatchTimeSeconds:    s.watched,
		UpdatedAt:           &updatedAt,
	})
}

// Start opens a session: reuse an open one, reopen a partially watched
// closed one, or insert a fresh row. forceNew always inserts.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req startRequest
	if r.Body != nil {
		// An empty body means a plain start.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	// Sessions older than the window can never be resumed again; close
	// them so they stop matching as open.
	if _, err := h.db.Exec(r.Context(),
		`UPDATE video_views SET still_watching = FALSE, updated_at = now()
		 WHERE video_id = $1 AND user_id = $2 AND still_watching
		   AND created_at <= now() - INTERVAL '7 days'`,
		videoID, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	if !req.ForceNew {
		s, err := h.recentSession(r.Context(), videoID, userID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to start session")
			return
		}
		if err == nil && s.resumable() {
			if !s.stillWatching {
				if _, err := h.db.Exec(r.Context(),
					`UPDATE video_views SET still_watching = TRUE, updated_at = now() WHERE id = $1`,
					s.id,
				); err != nil {
					httputil.WriteError(w, http.StatusInternalServerError, "failed to start session")
					return
				}
			}
			httputil.WriteJSON(w, http.StatusOK, startResponse{
				ViewID:           s.id,
				PlayheadPosition: s.playhead,
				WatchTimeSeconds: s.watched,
				Resuming:         true,
			})
			return
		}
	}

	viewID := uuid.NewString()
	ua := r.UserAgent()
	ip := clientIP(r)
	var country, city string
	if h.geoResolver != nil {
		country, city = h.geoResolver.Lookup(ip)
	}
	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO video_views (id, video_id, user_id, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		viewID, videoID, userID, parseBrowser(ua), parseDevice(ua), country, city,
	); err != nil {
		slog.Error("view: failed to create session", "video_id", videoID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, startResponse{ViewID: viewID})
}

// Resume reopens a specific session named by the resume prompt.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ViewID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "viewId is required")
		return
	}

	var playhead, watched int
	err := h.db.QueryRow(r.Context(),
		`UPDATE video_views SET still_watching = TRUE, updated_at = now()
		 WHERE id = $1 AND video_id = $2 AND user_id = $3 AND NOT completed
		 RETURNING playhead_position, watch_time_seconds`,
		req.ViewID, videoID, userID,
	).Scan(&playhead, &watched)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to resume session")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resumeResponse{
		ViewID:           req.ViewID,
		PlayheadPosition: playhead,
		WatchTimeSeconds: watched,
	})
}

// Update persists a progress snapshot. Values are capped to the video
// duration, stale versions are rejected without a write, and completion
// is computed here rather than trusted from the client. Completion is
// permanent and closes the session.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ViewID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "viewId is required")
		return
	}

	var (
		storedWatched, storedPlayhead, duration int
		storedCompleted                         bool
		storedVersion                           int64
	)
	err := h.db.QueryRow(r.Context(),
		`SELECT vv.watch_time_seconds, vv.playhead_position, vv.completed, vv.update_version, v.duration_seconds
		 FROM video_views vv
		 JOIN videos v ON v.id = vv.video_id
		 WHERE vv.id = $1 AND vv.video_id = $2 AND vv.user_id = $3`,
		req.ViewID, videoID, userID,
	).Scan(&storedWatched, &storedPlayhead, &storedCompleted, &storedVersion, &duration)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	if storedCompleted || req.UpdateVersion <= storedVersion {
		httputil.WriteJSON(w, http.StatusOK, updateResponse{
			WatchTimeSeconds: storedWatched,
			PlayheadPosition: storedPlayhead,
			IsComplete:       storedCompleted,
			Stale:            !storedCompleted,
		})
		return
	}

	watched := int(math.Round(math.Max(req.WatchTimeSeconds, 0)))
	playhead := int(math.Round(math.Max(req.PlayheadPosition, 0)))
	if duration > 0 {
		watched = min(watched, duration)
		playhead = min(playhead, duration)
	}

	completed := isComplete(playhead, duration)

	if _, err := h.db.Exec(r.Context(),
		`UPDATE video_views
		 SET watch_time_seconds = $1, playhead_position = $2, completed = $3,
		     still_watching = still_watching AND NOT $3, update_version = $4, updated_at = now()
		 WHERE id = $5`,
		watched, playhead, completed, req.UpdateVersion, req.ViewID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updateResponse{
		WatchTimeSeconds: watched,
		PlayheadPosition: playhead,
		IsComplete:       completed,
	})
}

func isComplete(playhead, duration int) bool {
	if duration <= 0 {
		return false
	}
	ratio := float64(playhead) / float64(duration)
	if duration > longVideoSeconds {
		return ratio >= completionRatioLong
	}
	return ratio >= completionRatioDefault
}
