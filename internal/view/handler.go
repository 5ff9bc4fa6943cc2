// Package view exposes the watch-session endpoints: the watch-page
// bootstrap plus the check/start/resume/update session lifecycle used
// by the tracking engine.
package view

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/watchpoint/watchpoint/internal/database"
)

const (
	// resumableWindow bounds how old a session may be and still be
	// offered for resume.
	resumableWindow = 7 * 24 * time.Hour

	// reopenWatchedRatio is the cutoff above which a closed session is
	// considered effectively finished and not worth resuming.
	reopenWatchedRatio = 0.8

	// Completion thresholds by playhead ratio. Long videos get the
	// stricter cutoff; credits and outros make the last seconds of a
	// short video proportionally larger.
	longVideoSeconds       = 300
	completionRatioLong    = 0.90
	completionRatioDefault = 0.80
)

type ObjectStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// GeoResolver maps a client IP to coarse location labels. Lookups that
// fail return empty strings.
type GeoResolver interface {
	Lookup(ip string) (country, city string)
}

type Handler struct {
	db          database.DBTX
	storage     ObjectStorage
	geoResolver GeoResolver
	baseURL     string
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string) *Handler {
	return &Handler{db: db, storage: s, baseURL: baseURL}
}

func (h *Handler) SetGeoResolver(g GeoResolver) {
	h.geoResolver = g
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

func parseBrowser(uaString string) string {
	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		return "Unknown"
	}
	return name
}

func parseDevice(uaString string) string {
	ua := useragent.New(uaString)
	if ua.Bot() {
		return "Bot"
	}
	if ua.Mobile() {
		return "Mobile"
	}
	return "Desktop"
}
