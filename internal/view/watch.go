package view

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/watchpoint/watchpoint/internal/httputil"
)

type watchResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	VideoURL  string `json:"videoUrl"`
	Duration  int    `json:"duration"`
	Creator   string `json:"creator"`
	CreatedAt string `json:"createdAt"`
}

// Watch returns the watch-page bootstrap: video metadata plus a
// presigned playback URL.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")

	var (
		title, objectKey, creator string
		duration                  int
		createdAt                 time.Time
	)
	err := h.db.QueryRow(r.Context(),
		`SELECT v.title, v.object_key, v.duration_seconds, u.name, v.created_at
		 FROM videos v
		 JOIN users u ON u.id = v.owner_id
		 WHERE v.id = $1`,
		videoID,
	).Scan(&title, &objectKey, &duration, &creator, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	videoURL, err := h.storage.GenerateDownloadURL(r.Context(), objectKey, 1*time.Hour)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate video URL")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, watchResponse{
		ID:        videoID,
		Title:     title,
		VideoURL:  videoURL,
		Duration:  duration,
		Creator:   creator,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	})
}
