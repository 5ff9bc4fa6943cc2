package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/watchpoint/watchpoint/internal/player"
)

// State is the watch-session lifecycle phase.
type State int

const (
	StateNone State = iota
	StateChecking
	StateResumable
	StateReady
	StateActive
	StatePausedHidden
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateChecking:
		return "checking"
	case StateResumable:
		return "resumable"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StatePausedHidden:
		return "paused_hidden"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// WatchSession is the externally visible snapshot of one tracked watch.
type WatchSession struct {
	ViewID               string
	VideoID              string
	State                State
	WatchedSeconds       float64
	PlayheadSeconds      float64
	DurationSeconds      float64
	Complete             bool
	LastPersistedSeconds float64
	Degraded             bool
}

// PlayerControl is what the Manager needs to drive the player: force a
// pause on hide, seek and restart on resume.
type PlayerControl interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
}

// Hooks are optional observer callbacks, invoked from the Manager's
// loop goroutine.
type Hooks struct {
	OnStateChange func(old, new State)
	OnDegraded    func()
	OnFlushError  func(error)
}

type Config struct {
	VideoID  string
	API      API
	Player   PlayerControl
	Prompter Prompter
	Clock    clockwork.Clock
	Hooks    Hooks

	// TickInterval drives watch-time accumulation and threshold checks.
	TickInterval time.Duration
	// ResumePlayDelay gives the player a beat to settle after a seek
	// before playback is restarted.
	ResumePlayDelay time.Duration
	// CallTimeout bounds the check/start/resume backend calls.
	CallTimeout time.Duration
}

const (
	defaultTickInterval    = 100 * time.Millisecond
	defaultResumePlayDelay = 500 * time.Millisecond
)

type openMode int

const (
	openLazy openMode = iota
	openResume
	openStartOver
)

type resultKind int

const (
	resultCheck resultKind = iota
	resultOpen
	resultFlush
)

type apiResult struct {
	kind resultKind
	gen  int
	mode openMode

	check CheckResult
	open  StartResult
	upd   ProgressUpdate
	flush UpdateResult
	err   error
}

// Manager owns one watch session end to end. All state lives in its
// Run loop; producers feed it through HandleEvent, SetHidden and
// Decide, and backend responses return through an internal results
// channel. Nothing outside the loop ever mutates session state, which
// is what makes the lifecycle transitions race-free.
//
// A Manager tracks exactly one video. When the video changes, stop
// this Manager and build a new one.
type Manager struct {
	cfg Config

	norm *player.Normalizer
	acc  *Accumulator
	gw   *Gateway

	sess WatchSession

	events     chan player.Event
	visibility chan bool
	decisions  chan Decision
	results    chan apiResult

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	startGen     int
	startPending bool
	promptViewID string

	autoPlayCh <-chan time.Time

	mu  sync.Mutex
	pub WatchSession
}

func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.ResumePlayDelay == 0 {
		cfg.ResumePlayDelay = defaultResumePlayDelay
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	m := &Manager{
		cfg:        cfg,
		norm:       player.NewNormalizer(),
		acc:        NewAccumulator(cfg.Clock),
		gw:         NewGateway(cfg.API, cfg.VideoID),
		events:     make(chan player.Event, 64),
		visibility: make(chan bool, 4),
		decisions:  make(chan Decision, 4),
		results:    make(chan apiResult, 8),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	m.sess = WatchSession{VideoID: cfg.VideoID, State: StateNone}
	m.pub = m.sess
	return m
}

// HandleEvent feeds one normalized-input player event into the loop.
// Safe to call from any goroutine; drops events after shutdown.
func (m *Manager) HandleEvent(ev player.Event) {
	select {
	case m.events <- ev:
	case <-m.doneCh:
	}
}

// SetHidden reports tab visibility changes.
func (m *Manager) SetHidden(hidden bool) {
	select {
	case m.visibility <- hidden:
	case <-m.doneCh:
	}
}

// Decide answers an outstanding resume prompt.
func (m *Manager) Decide(d Decision) {
	select {
	case m.decisions <- d:
	case <-m.doneCh:
	}
}

// Stop requests shutdown and waits for the final flush to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

// Session returns the latest published snapshot.
func (m *Manager) Session() WatchSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pub
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.Session().State
}

// Run executes the session loop until ctx is done or Stop is called,
// then performs the single teardown flush. It blocks; run it in its
// own goroutine.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.doneCh)

	m.transition(StateChecking)
	m.beginCheck()

	ticker := m.cfg.Clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return ctx.Err()
		case <-m.stopCh:
			m.teardown()
			return nil
		case ev := <-m.events:
			m.handleEvent(ev)
		case hidden := <-m.visibility:
			m.handleVisibility(hidden)
		case d := <-m.decisions:
			m.handleDecision(d)
		case r := <-m.results:
			m.handleResult(r)
		case <-ticker.Chan():
			m.handleTick()
		case <-m.autoPlayCh:
			m.autoPlayCh = nil
			if err := m.cfg.Player.Play(); err != nil {
				slog.Warn("session: resume autoplay failed", "video_id", m.cfg.VideoID, "error", err)
			}
		}
	}
}

func (m *Manager) transition(next State) {
	if m.sess.State == next {
		return
	}
	prev := m.sess.State
	m.sess.State = next
	slog.Debug("session: state change",
		"video_id", m.cfg.VideoID, "from", prev.String(), "to", next.String())
	m.publish()
	if m.cfg.Hooks.OnStateChange != nil {
		m.cfg.Hooks.OnStateChange(prev, next)
	}
}

func (m *Manager) publish() {
	m.mu.Lock()
	m.pub = m.sess
	m.mu.Unlock()
}

func (m *Manager) handleEvent(ev player.Event) {
	st, changed := m.norm.Apply(ev)

	m.sess.PlayheadSeconds = st.Position
	if st.Duration > 0 && st.Duration != m.sess.DurationSeconds {
		m.sess.DurationSeconds = st.Duration
		m.acc.SetDuration(st.Duration)
	}

	if changed {
		m.acc.SetPlaying(st.Playing)
		if st.Playing {
			m.maybeLazyStart()
		}
	}

	if ev.Kind == player.EventEnded && m.sess.State == StateActive {
		// Reaching the end is a lifecycle boundary; push immediately
		// and assert completion rather than waiting for a threshold.
		m.sess.Complete = true
		m.spawnFlush()
	}

	m.publish()
}

// maybeLazyStart opens the backend session on the first play, not at
// page load. A play that arrives while an open call is already in
// flight is absorbed; the in-flight call's answer wins.
func (m *Manager) maybeLazyStart() {
	if m.startPending || m.gw.Bound() {
		return
	}
	switch m.sess.State {
	case StateReady:
		m.transition(StateActive)
		m.beginOpen(openLazy, false, "")
	case StateResumable:
		// Playing straight through the prompt dismisses it and reuses
		// whatever open session the backend still holds.
		m.promptViewID = ""
		m.transition(StateActive)
		m.beginOpen(openLazy, false, "")
	}
}

func (m *Manager) handleTick() {
	m.acc.Tick()
	m.sess.WatchedSeconds = m.acc.Watched()
	m.publish()

	if m.sess.State == StateActive && m.gw.ShouldFlush(m.acc.Watched()) {
		m.spawnFlush()
	}
}

func (m *Manager) handleVisibility(hidden bool) {
	if hidden {
		if m.sess.State != StateActive || !m.norm.State().Playing {
			return
		}
		if err := m.cfg.Player.Pause(); err != nil {
			slog.Warn("session: pause on hide failed", "video_id", m.cfg.VideoID, "error", err)
		}
		// The player's own pause event may race the tab switch; fold
		// the pause in locally so no hidden time accumulates.
		m.norm.Apply(player.Event{
			Kind:       player.EventPause,
			Source:     player.SourceNative,
			Position:   -1,
			ObservedAt: m.cfg.Clock.Now(),
		})
		m.acc.SetPlaying(false)
		m.spawnFlush()
		m.transition(StatePausedHidden)
		return
	}

	if m.sess.State == StatePausedHidden {
		m.transition(StateResumable)
		if m.cfg.Prompter != nil {
			m.cfg.Prompter.Show(Prompt{
				ViewID:           m.gw.ViewID(),
				PlayheadPosition: m.sess.PlayheadSeconds,
				WatchTimeSeconds: m.acc.Watched(),
				UpdatedAt:        m.cfg.Clock.Now(),
				FromHide:         true,
			})
		}
	}
}

func (m *Manager) handleDecision(d Decision) {
	if m.sess.State != StateResumable {
		slog.Debug("session: decision outside prompt", "decision", d.String(), "state", m.sess.State.String())
		return
	}

	if m.gw.Bound() {
		// Return-from-hidden prompt: the session is still open.
		switch d {
		case DecisionResume:
			m.transition(StateActive)
			m.armAutoPlay()
		case DecisionStartOver:
			m.transition(StateActive)
			m.beginOpen(openStartOver, true, "")
		}
		return
	}

	// Page-load prompt: the session must be reopened first.
	switch d {
	case DecisionResume:
		m.beginOpen(openResume, false, m.promptViewID)
	case DecisionStartOver:
		m.beginOpen(openStartOver, true, "")
	}
	m.promptViewID = ""
}

func (m *Manager) beginCheck() {
	m.startGen++
	gen := m.startGen
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
		defer cancel()
		res, err := m.cfg.API.CheckView(ctx, m.cfg.VideoID)
		m.deliver(apiResult{kind: resultCheck, gen: gen, check: res, err: err})
	}()
}

func (m *Manager) beginOpen(mode openMode, forceNew bool, viewID string) {
	m.startGen++
	gen := m.startGen
	m.startPending = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
		defer cancel()

		var (
			res StartResult
			err error
		)
		if mode == openResume {
			var rr ResumeResult
			rr, err = m.cfg.API.ResumeView(ctx, m.cfg.VideoID, viewID)
			res = StartResult{
				ViewID:           rr.ViewID,
				PlayheadPosition: rr.PlayheadPosition,
				WatchTimeSeconds: rr.WatchTimeSeconds,
				Resuming:         true,
			}
		} else {
			res, err = m.cfg.API.StartView(ctx, m.cfg.VideoID, forceNew)
		}
		m.deliver(apiResult{kind: resultOpen, gen: gen, mode: mode, open: res, err: err})
	}()
}

func (m *Manager) spawnFlush() {
	snap := Snapshot{
		WatchedSeconds:  m.acc.Watched(),
		PlayheadSeconds: m.sess.PlayheadSeconds,
		DurationSeconds: m.sess.DurationSeconds,
		Complete:        m.sess.Complete,
	}
	upd, ok := m.gw.Prepare(snap)
	if !ok {
		return
	}
	go func() {
		res, err := m.gw.Push(context.Background(), upd)
		m.deliver(apiResult{kind: resultFlush, upd: upd, flush: res, err: err})
	}()
}

func (m *Manager) deliver(r apiResult) {
	select {
	case m.results <- r:
	case <-m.doneCh:
	}
}

func (m *Manager) handleResult(r apiResult) {
	switch r.kind {
	case resultCheck:
		m.handleCheckResult(r)
	case resultOpen:
		m.handleOpenResult(r)
	case resultFlush:
		m.handleFlushResult(r)
	}
}

func (m *Manager) handleCheckResult(r apiResult) {
	if r.gen != m.startGen {
		return
	}
	if m.sess.State != StateChecking {
		return
	}

	if r.err != nil {
		// Nothing resumable can be offered; a fresh session can still
		// be opened lazily, so tracking proceeds.
		slog.Warn("session: resume check failed", "video_id", m.cfg.VideoID, "error", r.err)
		m.becomeReady()
		return
	}

	if r.check.HasResumableSession && r.check.PlayheadPosition > 0 {
		m.promptViewID = r.check.ViewID
		m.transition(StateResumable)
		if m.cfg.Prompter != nil {
			m.cfg.Prompter.Show(Prompt{
				ViewID:           r.check.ViewID,
				PlayheadPosition: r.check.PlayheadPosition,
				WatchTimeSeconds: r.check.WatchTimeSeconds,
				UpdatedAt:        r.check.UpdatedAt,
				FromHide:         false,
			})
		}
		return
	}
	m.becomeReady()
}

// becomeReady enters READY, or goes straight to ACTIVE with a lazy
// start when playback already began while the check was in flight.
func (m *Manager) becomeReady() {
	m.transition(StateReady)
	if m.norm.State().Playing {
		m.maybeLazyStart()
	}
}

func (m *Manager) handleOpenResult(r apiResult) {
	if r.gen != m.startGen {
		// A newer open superseded this one; adopting anything from it
		// would resurrect a stale session.
		return
	}
	m.startPending = false

	if r.err != nil {
		// Local-only mode: keep counting, skip persistence. The next
		// prompt decision or lazy start retries naturally.
		slog.Warn("session: could not open view session",
			"video_id", m.cfg.VideoID, "error", r.err)
		m.sess.Degraded = true
		m.transition(StateActive)
		m.publish()
		if m.cfg.Hooks.OnDegraded != nil {
			m.cfg.Hooks.OnDegraded()
		}
		return
	}

	m.sess.Degraded = false
	m.sess.ViewID = r.open.ViewID
	m.gw.Bind(r.open.ViewID, r.open.WatchTimeSeconds)
	m.sess.LastPersistedSeconds = r.open.WatchTimeSeconds

	switch r.mode {
	case openLazy:
		// The server-confirmed counter wins over the few locally
		// accumulated seconds when an existing session was reused.
		if r.open.Resuming {
			m.acc.Reset(r.open.WatchTimeSeconds)
		}
	case openResume:
		m.acc.Reset(r.open.WatchTimeSeconds)
		m.sess.Complete = false
		if err := m.cfg.Player.SeekTo(r.open.PlayheadPosition); err != nil {
			slog.Warn("session: resume seek failed", "video_id", m.cfg.VideoID, "error", err)
		}
		m.armAutoPlay()
	case openStartOver:
		m.acc.Reset(0)
		m.sess.Complete = false
		m.sess.WatchedSeconds = 0
		if err := m.cfg.Player.SeekTo(0); err != nil {
			slog.Warn("session: start-over seek failed", "video_id", m.cfg.VideoID, "error", err)
		}
		m.armAutoPlay()
	}

	m.transition(StateActive)
	m.publish()
}

func (m *Manager) handleFlushResult(r apiResult) {
	if r.err != nil {
		slog.Warn("session: progress push failed",
			"video_id", m.cfg.VideoID, "view_id", r.upd.ViewID, "error", r.err)
		if m.cfg.Hooks.OnFlushError != nil {
			m.cfg.Hooks.OnFlushError(r.err)
		}
		return
	}
	if r.upd.ViewID != m.gw.ViewID() {
		// Confirmation for a session that has since been replaced.
		return
	}

	m.gw.Confirm(r.upd.WatchTimeSeconds)
	m.sess.LastPersistedSeconds = m.gw.LastConfirmed()

	if r.flush.IsComplete && m.sess.State != StateCompleted {
		m.sess.Complete = true
		m.gw.Unbind()
		m.transition(StateCompleted)
	}
	m.publish()
}

func (m *Manager) armAutoPlay() {
	m.autoPlayCh = m.cfg.Clock.After(m.cfg.ResumePlayDelay)
}

// teardown folds in the last playing interval and pushes exactly one
// final snapshot, synchronously, so unmount never loses progress.
func (m *Manager) teardown() {
	m.acc.SetPlaying(false)
	m.sess.WatchedSeconds = m.acc.Watched()

	if m.gw.Bound() && m.acc.Watched() > m.gw.LastConfirmed() {
		snap := Snapshot{
			WatchedSeconds:  m.acc.Watched(),
			PlayheadSeconds: m.sess.PlayheadSeconds,
			DurationSeconds: m.sess.DurationSeconds,
			Complete:        m.sess.Complete,
		}
		if upd, ok := m.gw.Prepare(snap); ok {
			if _, err := m.gw.Push(context.Background(), upd); err != nil {
				slog.Warn("session: final progress push failed",
					"video_id", m.cfg.VideoID, "view_id", upd.ViewID, "error", err)
			} else {
				m.gw.Confirm(upd.WatchTimeSeconds)
				m.sess.LastPersistedSeconds = m.gw.LastConfirmed()
			}
		}
	}
	m.publish()
}
