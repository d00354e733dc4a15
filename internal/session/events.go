package session

import (
	"fmt"
	"hlstaild/internal/models"
	"hlstaild/internal/playlist"
)

// EventKind identifies one of the observable session events.
type EventKind int

const (
	// EventStart fires once, right before the first batch of segments.
	EventStart EventKind = iota + 1
	// EventMaster carries every fetched master playlist.
	EventMaster
	// EventQuality carries the label of the variant chosen from a master playlist.
	EventQuality
	// EventMedia carries the header of every fetched media playlist.
	EventMedia
	// EventURI carries the absolute URI of a new entry.
	EventURI
	// EventSegment carries the numbered record of a new entry, right after its EventURI.
	EventSegment
	// EventDebug carries a diagnostic message about an absorbed failure.
	EventDebug
	// EventFinish is the terminal event, emitted exactly once on graceful completion.
	EventFinish
)

var kindNames = map[EventKind]string{
	EventStart:   "start",
	EventMaster:  "m3u8Master",
	EventQuality: "quality",
	EventMedia:   "m3u8",
	EventURI:     "uri",
	EventSegment: "segment",
	EventDebug:   "debug",
	EventFinish:  "finish",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to handlers. Only the field matching Kind is set.
type Event struct {
	Kind      EventKind
	SessionID string

	Master  *playlist.Master
	Quality string
	Media   *playlist.Header
	URI     string
	Segment *models.Segment
	Message string
	Summary *Summary
}

// Handler receives events on the session goroutine. It must not block for long:
// the next refresh waits for it.
type Handler func(Event)

// Reason tells why a session finished.
type Reason string

const (
	ReasonStopped  Reason = "stopped"
	ReasonStale    Reason = "stale"
	ReasonCanceled Reason = "canceled"
	ReasonEnded    Reason = "ended"
	ReasonEndList  Reason = "endlist"
)

// Summary is the payload of EventFinish and the result of Wait.
type Summary struct {
	TotalSegments int     `json:"totalSegments"`
	TotalDuration float64 `json:"totalDuration"`
	Reason        Reason  `json:"reason"`
}
