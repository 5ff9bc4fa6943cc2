package session

import (
	"context"
	"log/slog"
	"math"
	"time"
)

const (
	defaultFlushThreshold = 10.0
	defaultCallTimeout    = 5 * time.Second
)

// Gateway throttles and prepares progress snapshots for the backend.
// It knows the currently bound view session, the last watched value the
// backend confirmed, and the next update version to attach. Values are
// capped to the video duration before leaving the process so a
// drifting client can never inflate a row past its video.
//
// State mutation (Prepare, Confirm, Bind) is owned by the Manager's
// loop; Push is stateless and safe to run from a goroutine.
type Gateway struct {
	api       API
	videoID   string
	threshold float64
	timeout   time.Duration

	viewID   string
	version  int64
	lastSent float64
}

func NewGateway(api API, videoID string) *Gateway {
	return &Gateway{
		api:       api,
		videoID:   videoID,
		threshold: defaultFlushThreshold,
		timeout:   defaultCallTimeout,
	}
}

// Snapshot is the engine-side progress view handed to Prepare.
type Snapshot struct {
	WatchedSeconds  float64
	PlayheadSeconds float64
	DurationSeconds float64
	Complete        bool
}

// Bind attaches the gateway to a view session. confirmedWatched is the
// counter value the backend already holds, so the first threshold
// comparison measures genuinely new progress. The version counter
// restarts; versions are scoped per session.
func (g *Gateway) Bind(viewID string, confirmedWatched float64) {
	g.viewID = viewID
	g.version = 0
	g.lastSent = confirmedWatched
}

// Unbind detaches the gateway. Used when the backend reports the
// session complete; nothing further may be written to it.
func (g *Gateway) Unbind() {
	g.viewID = ""
}

func (g *Gateway) Bound() bool { return g.viewID != "" }

func (g *Gateway) ViewID() string { return g.viewID }

// LastConfirmed is the watched value most recently acknowledged by the
// backend (or seeded at Bind).
func (g *Gateway) LastConfirmed() float64 { return g.lastSent }

// ShouldFlush reports whether watched has advanced past the confirmed
// value by at least the threshold. Lifecycle flushes (hide, completion,
// teardown) bypass this and call Prepare directly.
func (g *Gateway) ShouldFlush(watched float64) bool {
	return g.Bound() && watched-g.lastSent >= g.threshold
}

// Prepare caps the snapshot to the video duration, stamps the next
// version, and returns the wire-ready update. Reports false when no
// session is bound.
func (g *Gateway) Prepare(snap Snapshot) (ProgressUpdate, bool) {
	if !g.Bound() {
		return ProgressUpdate{}, false
	}

	watched := snap.WatchedSeconds
	playhead := snap.PlayheadSeconds
	if snap.DurationSeconds > 0 {
		watched = math.Min(watched, snap.DurationSeconds)
		playhead = math.Min(playhead, snap.DurationSeconds)
	}

	g.version++
	return ProgressUpdate{
		ViewID:           g.viewID,
		WatchTimeSeconds: math.Round(watched),
		PlayheadPosition: math.Round(playhead),
		IsComplete:       snap.Complete,
		UpdateVersion:    g.version,
	}, true
}

// Push ships one prepared update, retrying once on failure with the
// same version so the backend sees it as the same logical update.
func (g *Gateway) Push(ctx context.Context, upd ProgressUpdate) (UpdateResult, error) {
	res, err := g.send(ctx, upd)
	if err != nil {
		slog.Debug("session: progress push failed, retrying once",
			"video_id", g.videoID, "view_id", upd.ViewID, "error", err)
		res, err = g.send(ctx, upd)
	}
	return res, err
}

// Confirm advances the confirmed watermark after a successful push of
// an update that carried the given watched value.
func (g *Gateway) Confirm(watched float64) {
	if watched > g.lastSent {
		g.lastSent = watched
	}
}

func (g *Gateway) send(ctx context.Context, upd ProgressUpdate) (UpdateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.api.UpdateView(callCtx, g.videoID, upd)
}
