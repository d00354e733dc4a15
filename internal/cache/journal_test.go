package cache

import (
	"hlstaild/internal/logger"
	"hlstaild/internal/models"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger is a no-op logger for testing purposes.
type mockLogger struct{}

func (m *mockLogger) Debugf(format string, v ...interface{}) {}
func (m *mockLogger) Infof(format string, v ...interface{})  {}
func (m *mockLogger) Warnf(format string, v ...interface{})  {}
func (m *mockLogger) Errorf(format string, v ...interface{}) {}
func (m *mockLogger) With(args ...interface{}) logger.Logger { return m }

func noSessions() map[string]struct{} { return map[string]struct{}{} }

func seg(n int) models.Segment {
	return models.Segment{Number: n, URI: "http://origin/seg" + strconv.Itoa(n) + ".ts", Duration: 2}
}

func TestJournalAppendAndAfter(t *testing.T) {
	j := New(&mockLogger{}, 10, time.Minute, noSessions)

	for n := 1; n <= 4; n++ {
		j.Append("s1", seg(n))
	}
	j.Append("s2", seg(1))

	all := j.After("s1", 0)
	require.Len(t, all, 4)
	assert.Equal(t, 1, all[0].Number)

	tail := j.After("s1", 2)
	require.Len(t, tail, 2)
	assert.Equal(t, 3, tail[0].Number)
	assert.Equal(t, 4, tail[1].Number)

	assert.Empty(t, j.After("s1", 4))
	assert.Empty(t, j.After("unknown", 0))
	assert.Equal(t, 1, j.Len("s2"))
}

func TestJournalIsBounded(t *testing.T) {
	j := New(&mockLogger{}, 3, time.Minute, noSessions)
	for n := 1; n <= 5; n++ {
		j.Append("s1", seg(n))
	}

	got := j.After("s1", 0)
	require.Len(t, got, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{got[0].Number, got[1].Number, got[2].Number})
}

func TestJournalAfterReturnsCopy(t *testing.T) {
	j := New(&mockLogger{}, 3, time.Minute, noSessions)
	j.Append("s1", seg(1))

	got := j.After("s1", 0)
	got[0].URI = "mutated"
	assert.Equal(t, seg(1).URI, j.After("s1", 0)[0].URI)
}

func TestJournalDelete(t *testing.T) {
	j := New(&mockLogger{}, 3, time.Minute, noSessions)
	j.Append("s1", seg(1))
	j.Delete("s1")
	assert.Zero(t, j.Len("s1"))
}

// TestJournalEviction verifies that the worker drops journals of sessions the provider no longer lists.
func TestJournalEviction(t *testing.T) {
	var mu sync.Mutex
	active := map[string]struct{}{"keep": {}, "drop": {}}
	provider := func() map[string]struct{} {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]struct{}, len(active))
		for k, v := range active {
			out[k] = v
		}
		return out
	}

	j := New(&mockLogger{}, 10, 10*time.Millisecond, provider)
	j.Append("keep", seg(1))
	j.Append("drop", seg(1))

	j.Start()
	defer j.Stop()

	mu.Lock()
	delete(active, "drop")
	mu.Unlock()

	assert.Eventually(t, func() bool { return j.Len("drop") == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, j.Len("keep"))
}
