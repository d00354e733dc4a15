// Package playlist turns playlist text into a Manifest. Lexing and syntax are
// delegated to github.com/grafov/m3u8; this package registers the vendor tag
// extensions (ad titles, low-latency prefetch) and flattens the result.
package playlist

import (
	"errors"
	"fmt"
	"hlstaild/internal/models"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

var errMissingHeader = errors.New("missing #EXTM3U header")

// ParseError reports playlist text that could not be turned into a Manifest.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse playlist: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes text as either a master or a media playlist.
// Unknown tags are ignored; structurally invalid input yields a *ParseError.
func Parse(text string) (*Manifest, error) {
	if !strings.HasPrefix(strings.TrimLeft(text, "\ufeff \t\r\n"), "#EXTM3U") {
		return nil, &ParseError{Err: errMissingHeader}
	}

	prefetch := newPrefetchDecoder()
	target := &targetDurationDecoder{}
	decoders := []m3u8.CustomDecoder{titleDecoder{}, prefetch, target}

	pl, listType, err := m3u8.DecodeWith(strings.NewReader(text), false, decoders)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			break
		}
		return &Manifest{Kind: KindMaster, Master: convertMaster(master)}, nil
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			break
		}
		out := convertMedia(media)
		out.TargetDuration = target.value()
		out.Prefetch = prefetch.entries
		return &Manifest{Kind: KindMedia, Media: out}, nil
	}
	return nil, &ParseError{Err: fmt.Errorf("unexpected playlist type %v", listType)}
}

func convertMaster(p *m3u8.MasterPlaylist) *Master {
	out := &Master{Version: p.Version()}
	for _, v := range p.Variants {
		// I-frame playlists carry no playable media segments.
		if v == nil || v.Iframe {
			continue
		}
		out.Variants = append(out.Variants, Variant{
			URI:        v.URI,
			Bandwidth:  int64(v.Bandwidth),
			VideoLabel: v.Video,
			Resolution: v.Resolution,
			Codecs:     v.Codecs,
			Name:       v.Name,
		})
	}
	return out
}

func convertMedia(p *m3u8.MediaPlaylist) *Media {
	out := &Media{
		Header: Header{
			MediaSequence:         p.SeqNo,
			DiscontinuitySequence: p.DiscontinuitySeq,
			Version:               p.Version(),
			EndList:               p.Closed,
		},
	}
	switch p.MediaType {
	case m3u8.VOD:
		out.PlaylistType = "VOD"
	case m3u8.EVENT:
		out.PlaylistType = "EVENT"
	}

	for _, seg := range p.Segments {
		// Segments is backed by a ring buffer with unused slots left nil.
		if seg == nil {
			continue
		}
		out.Segments = append(out.Segments, convertSegment(seg))
	}
	return out
}

func convertSegment(seg *m3u8.MediaSegment) Segment {
	out := Segment{
		URI:      seg.URI,
		Duration: seg.Duration,
		Attributes: []models.Attribute{
			{Key: "duration", Value: strconv.FormatFloat(seg.Duration, 'f', -1, 64)},
		},
	}
	foldTitle(seg, &out)

	if seg.Discontinuity {
		out.Attributes = append(out.Attributes, models.Attribute{Key: "discontinuity", Value: "true"})
	}
	if !seg.ProgramDateTime.IsZero() {
		out.Attributes = append(out.Attributes, models.Attribute{Key: "programDateTime", Value: seg.ProgramDateTime.Format(m3u8.DATETIME)})
	}
	return out
}
