package cache

import (
	"context"
	"hlstaild/internal/logger"
	"hlstaild/internal/models"
	"sync"
	"time"
)

// ActiveSessionsProvider returns the IDs of every session whose journal must be kept.
type ActiveSessionsProvider func() map[string]struct{}

// Journal keeps the most recent emitted segment records of every session.
type Journal struct {
	mutex    sync.RWMutex
	entries  map[string][]models.Segment
	limit    int
	interval time.Duration
	logger   logger.Logger
	provider ActiveSessionsProvider

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Journal holding at most limit records per session. The
// eviction worker drops the journals of sessions the provider no longer lists.
func New(log logger.Logger, limit int, interval time.Duration, provider ActiveSessionsProvider) *Journal {
	ctx, cancel := context.WithCancel(context.Background())
	if limit <= 0 {
		limit = 1
	}
	return &Journal{
		entries:  make(map[string][]models.Segment),
		limit:    limit,
		interval: interval,
		logger:   log,
		provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the background eviction worker.
func (j *Journal) Start() {
	j.logger.Infof("Starting journal eviction worker...")
	go j.evictionWorker()
}

// Stop gracefully shuts down the eviction worker.
func (j *Journal) Stop() {
	j.logger.Infof("Stopping journal eviction worker...")
	j.cancel()
}

// Append records seg for the session, dropping the oldest record past the limit.
func (j *Journal) Append(sessionID string, seg models.Segment) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	list := append(j.entries[sessionID], seg)
	if over := len(list) - j.limit; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	j.entries[sessionID] = list
	j.logger.Debugf("Journaled segment %d for session %s", seg.Number, sessionID)
}

// After returns a copy of the records of the session numbered above after.
func (j *Journal) After(sessionID string, after int) []models.Segment {
	j.mutex.RLock()
	defer j.mutex.RUnlock()

	list := j.entries[sessionID]
	out := make([]models.Segment, 0, len(list))
	for _, seg := range list {
		if seg.Number > after {
			out = append(out, seg)
		}
	}
	return out
}

// Len returns how many records are kept for the session.
func (j *Journal) Len(sessionID string) int {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return len(j.entries[sessionID])
}

// Delete forgets the session's records.
func (j *Journal) Delete(sessionID string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	delete(j.entries, sessionID)
}

// evictionWorker runs in the background to drop journals of forgotten sessions.
// The manager lists finished sessions too and deletes a journal when it removes
// the session, so in practice this only catches a record appended by a session
// that was still winding down when it was removed.
func (j *Journal) evictionWorker() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			j.logger.Infof("Eviction worker stopped.")
			return
		case <-ticker.C:
			j.runEviction()
		}
	}
}

func (j *Journal) runEviction() {
	j.logger.Debugf("Running journal eviction...")
	active := j.provider()

	j.mutex.Lock()
	defer j.mutex.Unlock()

	evicted := 0
	for id := range j.entries {
		if _, ok := active[id]; !ok {
			delete(j.entries, id)
			evicted++
		}
	}

	if evicted > 0 {
		j.logger.Infof("Evicted %d session journals. Remaining: %d.", evicted, len(j.entries))
	} else {
		j.logger.Debugf("No journals to evict. Remaining: %d.", len(j.entries))
	}
}
