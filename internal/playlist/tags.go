package playlist

import (
	"bytes"
	"errors"
	"fmt"
	"hlstaild/internal/models"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

const (
	extinfTag         = "#EXTINF:"
	prefetchTag       = "#EXT-X-TWITCH-PREFETCH:"
	targetDurationTag = "#EXT-X-TARGETDURATION:"
)

// Titles that mark regular programme content. Anything else is an ad break.
var contentTitles = map[string]struct{}{
	"":     {},
	"live": {},
}

// titleTag is the synthetic per-segment tag produced from the EXTINF title field.
type titleTag struct {
	title string
}

func (t *titleTag) TagName() string       { return extinfTag }
func (t *titleTag) Encode() *bytes.Buffer { return nil }
func (t *titleTag) String() string        { return t.title }

// titleDecoder maps the trailing title of every EXTINF line onto a titleTag
// attached to the segment that follows.
type titleDecoder struct{}

func (titleDecoder) TagName() string  { return extinfTag }
func (titleDecoder) SegmentTag() bool { return true }

func (titleDecoder) Decode(line string) (m3u8.CustomTag, error) {
	rest := strings.TrimPrefix(line, extinfTag)
	sep := strings.IndexByte(rest, ',')
	if sep < 0 {
		return &titleTag{}, nil
	}
	return &titleTag{title: rest[sep+1:]}, nil
}

// foldTitle reads the synthetic title tag of seg and derives the ad flag from it.
func foldTitle(seg *m3u8.MediaSegment, out *Segment) {
	title := seg.Title
	if t, ok := seg.Custom[extinfTag].(*titleTag); ok {
		title = t.title
	}
	_, content := contentTitles[title]

	out.Title = title
	out.IsAd = !content
	out.Attributes = append(out.Attributes,
		models.Attribute{Key: "title", Value: title},
		models.Attribute{Key: "ad", Value: strconv.FormatBool(out.IsAd)},
	)
}

// prefetchEntry is the custom tag stored for a low-latency prefetch line.
type prefetchEntry struct {
	uri string
}

func (t *prefetchEntry) TagName() string { return prefetchTag }
func (t *prefetchEntry) String() string  { return prefetchTag + t.uri }

func (t *prefetchEntry) Encode() *bytes.Buffer {
	return bytes.NewBufferString(t.String())
}

var errEmptyPrefetch = errors.New("prefetch tag without URI")

// prefetchDecoder collects every prefetch line of one parse, in order.
type prefetchDecoder struct {
	entries []Segment
	seen    map[string]struct{}
}

func newPrefetchDecoder() *prefetchDecoder {
	return &prefetchDecoder{seen: make(map[string]struct{})}
}

func (d *prefetchDecoder) TagName() string  { return prefetchTag }
func (d *prefetchDecoder) SegmentTag() bool { return false }

func (d *prefetchDecoder) Decode(line string) (m3u8.CustomTag, error) {
	uri := strings.TrimSpace(strings.TrimPrefix(line, prefetchTag))
	tag := &prefetchEntry{uri: uri}
	if uri == "" {
		return tag, errEmptyPrefetch
	}
	// Prefetch URIs are unique within a playlist, so a repeat is either the
	// same line offered again while the playlist type is still unknown or a
	// duplicate that would only be dropped by Entries anyway.
	if _, dup := d.seen[uri]; dup {
		return tag, nil
	}
	d.seen[uri] = struct{}{}
	d.entries = append(d.entries, Segment{
		URI:        uri,
		Prefetch:   true,
		Attributes: []models.Attribute{{Key: "prefetch", Value: "true"}},
	})
	return tag, nil
}

// targetDurationEntry is the custom tag stored for EXT-X-TARGETDURATION.
type targetDurationEntry struct {
	seconds float64
}

func (t *targetDurationEntry) TagName() string { return targetDurationTag }
func (t *targetDurationEntry) String() string {
	return targetDurationTag + strconv.FormatFloat(t.seconds, 'f', -1, 64)
}

func (t *targetDurationEntry) Encode() *bytes.Buffer {
	return bytes.NewBufferString(t.String())
}

// targetDurationDecoder keeps the target duration exactly as the playlist
// states it. The decoding library raises its own copy to the longest segment
// seen, which would hide a missing tag.
type targetDurationDecoder struct {
	seconds float64
	set     bool
}

func (d *targetDurationDecoder) TagName() string  { return targetDurationTag }
func (d *targetDurationDecoder) SegmentTag() bool { return false }

func (d *targetDurationDecoder) Decode(line string) (m3u8.CustomTag, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(line, targetDurationTag))
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return &targetDurationEntry{}, fmt.Errorf("invalid target duration %q", raw)
	}
	d.seconds, d.set = seconds, true
	return &targetDurationEntry{seconds: seconds}, nil
}

// value returns the stated target duration, or 0 when the playlist has none.
func (d *targetDurationDecoder) value() float64 {
	if !d.set {
		return 0
	}
	return d.seconds
}
