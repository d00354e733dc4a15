package models

// Attribute is one key/value pair of a segment's flattened attribute set.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Segment is the normalized record emitted for every new playlist entry.
// This struct is shared by the session, the journal cache and the API.
type Segment struct {
	// Number is the 1-based position of this record in the session's emission order.
	Number int `json:"segment"`
	// URI is absolute, resolved against the playlist it was read from.
	URI string `json:"uri"`
	// Duration is in seconds. Prefetch entries have none.
	Duration float64 `json:"duration"`
	IsAd     bool    `json:"isAd"`
	Prefetch bool    `json:"prefetch,omitempty"`
	// TotalDuration is the running sum of durations including this record.
	TotalDuration float64 `json:"totalDuration"`
	// Attributes holds every per-segment attribute in a fixed order.
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attr returns the value stored under key, if any.
func (s Segment) Attr(key string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
