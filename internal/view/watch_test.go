package view

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func watchRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(newAuthMiddleware()).Get("/api/videos/{id}", h.Watch)
	return r
}

func TestWatch_ReturnsPresignedURL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	handler := NewHandler(mock, &mockStorage{downloadURL: "https://cdn.example.com/signed"}, testBaseURL)
	mock.ExpectQuery(`SELECT v\.title, v\.object_key, v\.duration_seconds`).
		WithArgs(testVideoID).
		WillReturnRows(mock.NewRows([]string{"title", "object_key", "duration_seconds", "name", "created_at"}).
			AddRow("Launch demo", "videos/abc.mp4", 480, "Ada", created))

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, authenticatedRequest(t, http.MethodGet, "/api/videos/"+testVideoID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp watchResponse
	decodeResponse(t, rec.Body.Bytes(), &resp)
	if resp.VideoURL != "https://cdn.example.com/signed" || resp.Duration != 480 || resp.Title != "Launch demo" {
		t.Fatalf("bad watch response: %+v", resp)
	}
	if resp.CreatedAt != "2026-08-01T12:00:00Z" {
		t.Fatalf("bad createdAt: %q", resp.CreatedAt)
	}
}

func TestWatch_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL)
	mock.ExpectQuery(`SELECT v\.title, v\.object_key, v\.duration_seconds`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, authenticatedRequest(t, http.MethodGet, "/api/videos/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWatch_RequiresAuth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL)
	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/videos/"+testVideoID, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
