// Package session tails one live playlist. A Session polls the playlist,
// follows master playlists to the selected variant, emits every new entry
// exactly once and finishes when stopped, when the stream goes stale or when
// a failure after the first segment cannot be retried.
package session

import (
	"context"
	"fmt"
	"hlstaild/internal/config"
	"hlstaild/internal/diff"
	"hlstaild/internal/fetch"
	"hlstaild/internal/logger"
	"hlstaild/internal/models"
	"hlstaild/internal/playlist"
	"hlstaild/internal/retry"
	"hlstaild/internal/variant"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxMasterHops bounds how many master playlists one refresh may follow.
const maxMasterHops = 4

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a new Session.
type Options struct {
	// PlaylistURL is the absolute URL of a master or media playlist.
	PlaylistURL string
	// Quality defaults to "best".
	Quality string
	// Config defaults to config.DefaultSession() when left zero.
	Config config.Session
	Logger logger.Logger
	// ID defaults to a random UUID.
	ID string
}

// Snapshot is a point-in-time view of a Session, safe to read from any goroutine.
type Snapshot struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	PlaylistURL   string    `json:"playlistUrl"`
	Quality       string    `json:"quality"`
	State         string    `json:"state"`
	Cursor        string    `json:"cursor,omitempty"`
	TotalSegments int       `json:"totalSegments"`
	TotalDuration float64   `json:"totalDuration"`
	Retries       int       `json:"retries"`
	Reason        Reason    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Session is the polling state machine for one stream.
type Session struct {
	id        string
	origin    string
	quality   string
	cfg       config.Session
	policy    retry.Policy
	fetcher   fetch.Fetcher
	logger    logger.Logger
	createdAt time.Time

	// Guarded by mutex. Handlers and counters are read from other goroutines.
	mutex         sync.Mutex
	handlers      map[EventKind][]Handler
	anyHandlers   []Handler
	state         State
	stopped       bool
	reason        Reason
	playlistURL   string
	cursor        string
	retryCount    int
	totalSegments int
	totalDuration float64
	err           error
	cancel        context.CancelFunc

	done chan struct{}
}

// cycleResult is what one refresh hands back to the run loop.
type cycleResult struct {
	next   time.Duration
	usable bool
	fresh  bool
	end    Reason
	fatal  error
}

// New creates an idle session. Nothing is fetched before Start.
func New(fetcher fetch.Fetcher, opts Options) (*Session, error) {
	u, err := url.Parse(opts.PlaylistURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, opts.PlaylistURL)
	}

	cfg := withDefaults(opts.Config)
	quality := opts.Quality
	if quality == "" {
		quality = variant.QualityBest
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Session{
		id:          id,
		origin:      opts.PlaylistURL,
		quality:     quality,
		cfg:         cfg,
		policy:      retry.FromConfig(cfg),
		fetcher:     fetcher,
		logger:      log.With("session", id),
		createdAt:   time.Now(),
		handlers:    make(map[EventKind][]Handler),
		playlistURL: opts.PlaylistURL,
		done:        make(chan struct{}),
	}, nil
}

func withDefaults(cfg config.Session) config.Session {
	if cfg == (config.Session{}) {
		return config.DefaultSession()
	}
	def := config.DefaultSession()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = def.StaleTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = def.MaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.BackoffFloor <= 0 {
		cfg.BackoffFloor = def.BackoffFloor
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = def.BackoffStep
	}
	return cfg
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// On registers fn for one event kind. Register before Start to see every event.
func (s *Session) On(kind EventKind, fn Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[kind] = append(s.handlers[kind], fn)
}

// OnAny registers fn for every event kind.
func (s *Session) OnAny(fn Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.anyHandlers = append(s.anyHandlers, fn)
}

// Start launches the polling goroutine; the first refresh happens immediately.
// Cancelling ctx finishes the session like Stop does.
func (s *Session) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		return ErrStopped
	}
	if s.state != StateIdle {
		s.mutex.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	s.mutex.Unlock()

	s.logger.Infof("Starting session for %s (quality %s)", s.origin, s.quality)
	go s.run(runCtx)
	return nil
}

// Stop ends the session. It is idempotent and safe to call from a handler.
// The finish event is emitted by the session goroutine once the current
// handler returns; a session that never started finishes synchronously.
func (s *Session) Stop() {
	s.mutex.Lock()
	first := s.haltLocked(ReasonStopped)
	cancel := s.cancel
	idle := s.state == StateIdle
	s.mutex.Unlock()

	if !first {
		return
	}
	if cancel != nil {
		cancel()
	}
	if idle {
		s.finish()
	}
}

// Wait blocks until the session finished or failed. It returns the summary
// of a graceful finish, or a *FatalStartupError.
func (s *Session) Wait() (Summary, error) {
	<-s.done
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err != nil {
		return Summary{}, s.err
	}
	return s.summaryLocked(), nil
}

// Run starts the session and waits for it.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	if err := s.Start(ctx); err != nil {
		return Summary{}, err
	}
	return s.Wait()
}

// Done is closed once the session finished or failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns the current counters and state.
func (s *Session) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snap := Snapshot{
		ID:            s.id,
		URL:           s.origin,
		PlaylistURL:   s.playlistURL,
		Quality:       s.quality,
		State:         s.state.String(),
		Cursor:        s.cursor,
		TotalSegments: s.totalSegments,
		TotalDuration: s.totalDuration,
		Retries:       s.retryCount,
		CreatedAt:     s.createdAt,
	}
	if s.state == StateStopped {
		snap.Reason = s.reason
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Session) run(ctx context.Context) {
	refresh := time.NewTimer(0)
	defer refresh.Stop()

	var stale *time.Timer
	var staleC <-chan time.Time
	defer func() {
		if stale != nil {
			stale.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.halt(ReasonCanceled)
			s.finish()
			return
		case <-staleC:
			s.logger.Infof("No new segment for %s, ending session", s.cfg.StaleTimeout)
			s.halt(ReasonStale)
			s.finish()
			return
		case <-refresh.C:
		}

		res := s.refresh(ctx)
		switch {
		case res.fatal != nil:
			s.fail(res.fatal)
			return
		case res.end != "":
			s.halt(res.end)
			s.finish()
			return
		case s.isStopped():
			s.finish()
			return
		}

		// An empty tick leaves the stale timer alone; the first usable
		// playlist arms it so a stream that never produces still ends.
		if res.fresh || (res.usable && stale == nil) {
			if stale == nil {
				stale = time.NewTimer(s.cfg.StaleTimeout)
				staleC = stale.C
			} else {
				stale.Reset(s.cfg.StaleTimeout)
			}
		}
		refresh.Reset(res.next)
	}
}

// refresh runs one fetch cycle, following master playlists down to a media playlist.
func (s *Session) refresh(ctx context.Context) cycleResult {
	target := s.currentURL()

	for hop := 0; ; hop++ {
		s.logger.Debugf("Fetching playlist %s", target)
		manifest, err := s.load(ctx, target)
		if err != nil {
			return s.failure(ctx, target, err)
		}

		if manifest.Kind == playlist.KindMedia {
			return s.consume(target, manifest.Media)
		}

		if hop >= maxMasterHops {
			return s.failure(ctx, target, errTooManyHops)
		}
		s.emit(Event{Kind: EventMaster, Master: manifest.Master})
		if s.isStopped() {
			return cycleResult{}
		}

		chosen, label, ok := variant.Select(manifest.Master.Variants, s.quality)
		if !ok {
			return s.failure(ctx, target, fmt.Errorf("%w: %q", ErrQualityUnavailable, s.quality))
		}
		s.emit(Event{Kind: EventQuality, Quality: label})

		target = playlist.Resolve(target, chosen.URI)
		s.setPlaylistURL(target)
		s.logger.Infof("Selected %s variant %s", label, target)
		if s.isStopped() {
			return cycleResult{}
		}
	}
}

func (s *Session) load(ctx context.Context, target string) (*playlist.Manifest, error) {
	text, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	manifest, err := playlist.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", target, err)
	}
	return manifest, nil
}

// consume diffs a media playlist against the cursor and emits the new entries.
func (s *Session) consume(target string, media *playlist.Media) cycleResult {
	s.mutex.Lock()
	s.retryCount = 0
	cursor := s.cursor
	s.mutex.Unlock()

	header := media.Header
	s.emit(Event{Kind: EventMedia, Media: &header})

	fresh, first := diff.Compute(media.Entries(target), cursor)
	if first && !s.isStopped() {
		s.emit(Event{Kind: EventStart})
	}
	for _, entry := range fresh {
		if s.isStopped() {
			break
		}
		rec := s.record(entry)
		s.emit(Event{Kind: EventURI, URI: rec.URI})
		s.emit(Event{Kind: EventSegment, Segment: &rec})
	}
	if len(fresh) > 0 {
		s.logger.Debugf("Emitted %d new entries from %s", len(fresh), target)
	}

	res := cycleResult{next: s.interval(header), usable: true, fresh: len(fresh) > 0}
	if header.EndList && s.cfg.FinishOnEndList {
		res.end = ReasonEndList
	}
	return res
}

// failure turns a cycle error into a retry, a graceful end or a fatal result.
func (s *Session) failure(ctx context.Context, target string, err error) cycleResult {
	if ctx.Err() != nil {
		return cycleResult{end: ReasonCanceled}
	}

	s.mutex.Lock()
	attempt := s.retryCount
	hasEmitted := s.totalSegments > 0
	s.mutex.Unlock()

	decision := s.policy.Decide(err, attempt, hasEmitted)
	switch {
	case decision.Fatal:
		return cycleResult{fatal: &FatalStartupError{URL: target, Err: err}}
	case decision.Retry:
		s.mutex.Lock()
		s.retryCount++
		s.mutex.Unlock()
		s.debugf("retry %d/%d in %s: %v", attempt+1, s.policy.MaxRetries, decision.Delay, err)
		return cycleResult{next: decision.Delay}
	}

	s.debugf("ending stream: %v", err)
	return cycleResult{end: ReasonEnded}
}

// record numbers entry and folds it into the counters and the cursor.
func (s *Session) record(entry playlist.Segment) models.Segment {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.totalSegments++
	s.totalDuration += entry.Duration
	s.cursor = entry.URI

	return models.Segment{
		Number:        s.totalSegments,
		URI:           entry.URI,
		Duration:      entry.Duration,
		IsAd:          entry.IsAd,
		Prefetch:      entry.Prefetch,
		TotalDuration: s.totalDuration,
		Attributes:    entry.Attributes,
	}
}

func (s *Session) interval(h playlist.Header) time.Duration {
	if h.TargetDuration > 0 {
		return time.Duration(h.TargetDuration * float64(time.Second))
	}
	return s.cfg.RefreshInterval
}

func (s *Session) emit(ev Event) {
	ev.SessionID = s.id

	s.mutex.Lock()
	handlers := make([]Handler, 0, len(s.handlers[ev.Kind])+len(s.anyHandlers))
	handlers = append(handlers, s.handlers[ev.Kind]...)
	handlers = append(handlers, s.anyHandlers...)
	s.mutex.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (s *Session) debugf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	s.logger.Debugf("%s", msg)
	s.emit(Event{Kind: EventDebug, Message: msg})
}

// finish emits the summary once and releases Wait.
func (s *Session) finish() {
	s.mutex.Lock()
	if s.state == StateStopped || s.state == StateFailed {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	s.state = StateStopped
	summary := s.summaryLocked()
	s.mutex.Unlock()

	s.logger.Infof("Session finished (%s): %d segments, %.3fs", summary.Reason, summary.TotalSegments, summary.TotalDuration)
	s.emit(Event{Kind: EventFinish, Summary: &summary})
	close(s.done)
}

func (s *Session) fail(err error) {
	s.mutex.Lock()
	if s.state == StateStopped || s.state == StateFailed {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	s.state = StateFailed
	s.err = err
	s.mutex.Unlock()

	s.logger.Errorf("Session failed: %v", err)
	close(s.done)
}

func (s *Session) halt(reason Reason) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.haltLocked(reason)
}

// haltLocked sets the stopped flag and reason once; it reports whether this call did so.
func (s *Session) haltLocked(reason Reason) bool {
	if s.stopped {
		return false
	}
	s.stopped = true
	s.reason = reason
	return true
}

func (s *Session) summaryLocked() Summary {
	return Summary{
		TotalSegments: s.totalSegments,
		TotalDuration: s.totalDuration,
		Reason:        s.reason,
	}
}

func (s *Session) isStopped() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stopped
}

func (s *Session) currentURL() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.playlistURL
}

func (s *Session) setPlaylistURL(u string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.playlistURL = u
}
