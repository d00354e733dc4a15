// Package variant picks one variant stream of a master playlist for a
// requested quality.
package variant

import (
	"hlstaild/internal/playlist"
	"strings"
)

const (
	QualityBest   = "best"
	QualitySource = "source"
	QualityAudio  = "audio"
)

// aliases maps a requested quality to the VIDEO label it stands for.
var aliases = map[string]string{
	QualitySource: "chunked",
	QualityAudio:  "audio_only",
}

// Select returns the variant matching quality together with its
// human-readable label. The boolean is false when nothing matches.
//
// "best" picks the highest bandwidth, keeping the first of equal candidates.
// "source" and "audio" are aliases for the "chunked" and "audio_only" labels.
// Any other quality matches the first variant whose label contains it.
func Select(variants []playlist.Variant, quality string) (playlist.Variant, string, bool) {
	if quality == "" {
		quality = QualityBest
	}

	idx := -1
	if quality == QualityBest {
		idx = highestBandwidth(variants)
	} else {
		want := quality
		if label, ok := aliases[quality]; ok {
			want = label
		}
		for i, v := range variants {
			if strings.Contains(v.VideoLabel, want) {
				idx = i
				break
			}
		}
	}

	if idx < 0 {
		return playlist.Variant{}, "", false
	}
	chosen := variants[idx]
	return chosen, Label(chosen.VideoLabel), true
}

// Label reverse-maps a VIDEO label through the alias table, falling back to
// the raw label.
func Label(videoLabel string) string {
	for quality, label := range aliases {
		if label == videoLabel {
			return quality
		}
	}
	return videoLabel
}

func highestBandwidth(variants []playlist.Variant) int {
	idx := -1
	for i, v := range variants {
		if idx < 0 || v.Bandwidth > variants[idx].Bandwidth {
			idx = i
		}
	}
	return idx
}
