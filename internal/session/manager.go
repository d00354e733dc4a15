package session

import (
	"context"
	"errors"
	"hlstaild/internal/cache"
	"hlstaild/internal/config"
	"hlstaild/internal/fetch"
	"hlstaild/internal/logger"
	"hlstaild/internal/models"
	"slices"
	"sync"
	"time"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Manager owns every session of the daemon and journals what they emit.
type Manager struct {
	mutex    sync.RWMutex
	sessions map[string]*Session
	order    []string
	logger   logger.Logger
	cfg      config.Session
	fetcher  fetch.Fetcher
	journal  *cache.Journal

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a session manager. journalSize bounds the records kept per session.
func NewManager(log logger.Logger, cfg config.Session, fetcher fetch.Fetcher, journalSize int, evictionInterval time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	sm := &Manager{
		sessions: make(map[string]*Session),
		logger:   log,
		cfg:      cfg,
		fetcher:  fetcher,
		ctx:      ctx,
		cancel:   cancel,
	}
	sm.journal = cache.New(log, journalSize, evictionInterval, sm.ActiveSessionIDs)
	return sm
}

// Start begins the background workers for the manager's components.
func (sm *Manager) Start() {
	sm.journal.Start()
}

// Stop stops every session, waits for them to wind down and shuts down the workers.
func (sm *Manager) Stop() {
	sm.logger.Infof("Stopping session manager and all active sessions...")
	sm.mutex.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mutex.RUnlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		<-s.Done()
	}
	sm.cancel()
	sm.journal.Stop()
	sm.logger.Infof("Session manager stopped.")
}

// Create starts a new session tailing playlistURL.
func (sm *Manager) Create(playlistURL, quality string) (*Session, error) {
	s, err := New(sm.fetcher, Options{
		PlaylistURL: playlistURL,
		Quality:     quality,
		Config:      sm.cfg,
		Logger:      sm.logger,
	})
	if err != nil {
		return nil, err
	}

	s.On(EventSegment, func(ev Event) {
		sm.journal.Append(ev.SessionID, *ev.Segment)
	})

	sm.mutex.Lock()
	sm.sessions[s.ID()] = s
	sm.order = append(sm.order, s.ID())
	sm.mutex.Unlock()

	if err := s.Start(sm.ctx); err != nil {
		sm.Remove(s.ID())
		return nil, err
	}
	sm.logger.Infof("Created session %s for %s", s.ID(), playlistURL)
	return s, nil
}

// Get returns the session with the given ID.
func (sm *Manager) Get(id string) (*Session, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	s, ok := sm.sessions[id]
	return s, ok
}

// List returns snapshots of every session in creation order.
func (sm *Manager) List() []Snapshot {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	out := make([]Snapshot, 0, len(sm.order))
	for _, id := range sm.order {
		out = append(out, sm.sessions[id].Snapshot())
	}
	return out
}

// Segments returns the journaled records of a session numbered above after.
func (sm *Manager) Segments(id string, after int) ([]models.Segment, error) {
	if _, ok := sm.Get(id); !ok {
		return nil, ErrNotFound
	}
	return sm.journal.After(id, after), nil
}

// Remove stops the session and forgets it together with its journal.
func (sm *Manager) Remove(id string) error {
	sm.mutex.Lock()
	s, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.order = slices.DeleteFunc(sm.order, func(v string) bool { return v == id })
	sm.mutex.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Stop()
	sm.journal.Delete(id)
	sm.logger.Infof("Removed session %s", id)
	return nil
}

// ActiveSessionIDs returns the IDs of every known session, finished or not,
// so that their journals survive eviction until they are removed.
func (sm *Manager) ActiveSessionIDs() map[string]struct{} {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	ids := make(map[string]struct{}, len(sm.sessions))
	for id := range sm.sessions {
		ids[id] = struct{}{}
	}
	return ids
}
