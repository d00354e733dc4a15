package playlist

import (
	"fmt"
	"hlstaild/internal/models"
	"net/url"
)

// Kind tells which side of the Manifest union is set.
type Kind int

const (
	KindMaster Kind = iota + 1
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindMedia:
		return "media"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Manifest is the parsed result of one fetch. Exactly one of Master and Media is set.
type Manifest struct {
	Kind   Kind
	Master *Master
	Media  *Media
}

// Master lists the variant streams of a multivariant playlist.
type Master struct {
	Version  uint8     `json:"version"`
	Variants []Variant `json:"variants"`
}

// Variant is one EXT-X-STREAM-INF entry.
type Variant struct {
	URI       string `json:"uri"`
	Bandwidth int64  `json:"bandwidth"`
	// VideoLabel is the VIDEO attribute, e.g. "720p60", "chunked" or "audio_only".
	VideoLabel string `json:"video"`
	Resolution string `json:"resolution,omitempty"`
	Codecs     string `json:"codecs,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Header is a media playlist without its segment list.
type Header struct {
	// TargetDuration is in seconds; zero when the playlist does not advertise one.
	TargetDuration        float64 `json:"targetDuration"`
	MediaSequence         uint64  `json:"mediaSequence"`
	DiscontinuitySequence uint64  `json:"discontinuitySequence"`
	Version               uint8   `json:"version"`
	// PlaylistType is "VOD", "EVENT" or empty for a sliding window.
	PlaylistType string `json:"playlistType,omitempty"`
	EndList      bool   `json:"endList"`
}

// Media is a media playlist: ordinary segments followed by vendor prefetch entries.
type Media struct {
	Header
	Segments []Segment
	Prefetch []Segment
}

// Segment is an ordinary media segment or a prefetch entry.
type Segment struct {
	URI      string
	Duration float64
	Title    string
	IsAd     bool
	Prefetch bool
	// Attributes is the flattened attribute set in emission order.
	Attributes []models.Attribute
}

// Entries returns the segments followed by the prefetch entries, with URIs
// resolved against base. Later duplicates of an already listed URI are dropped.
func (m *Media) Entries(base string) []Segment {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}

	out := make([]Segment, 0, len(m.Segments)+len(m.Prefetch))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]Segment{m.Segments, m.Prefetch} {
		for _, seg := range list {
			seg.URI = resolve(baseURL, seg.URI)
			if _, dup := seen[seg.URI]; dup {
				continue
			}
			seen[seg.URI] = struct{}{}
			out = append(out, seg)
		}
	}
	return out
}

// Resolve resolves ref against base, returning ref unchanged when either fails to parse.
func Resolve(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return resolve(baseURL, ref)
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}
