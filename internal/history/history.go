// Package history accumulates transcript segments for a recording
// session so they can be persisted when the session ends.
package history

import (
	"sort"
	"sync"

	"github.com/ponchovillalobos/maity-desktop/internal/events"
)

// Segment is a transcript entry ordered by sequence id.
type Segment struct {
	Text           string  `json:"text"`
	Timestamp      string  `json:"timestamp"`
	Source         string  `json:"source"`
	SourceType     string  `json:"source_type,omitempty"`
	SequenceID     uint64  `json:"sequence_id"`
	Confidence     float32 `json:"confidence"`
	AudioStartTime float64 `json:"audio_start_time"`
	AudioEndTime   float64 `json:"audio_end_time"`
	Duration       float64 `json:"duration"`
}

// chunkKey identifies the audio a result refers to. Every emission
// carries a fresh sequence id, so an interim and the final that
// supersedes it only share the device and timing of their chunk.
type chunkKey struct {
	source string
	start  float64
	end    float64
}

// History collects transcript updates from a live session. Interims
// for a chunk are replaced in place as refinements arrive; the final
// for that chunk removes the last interim and takes its place. Finals
// are never overwritten.
type History struct {
	mu       sync.Mutex
	segments map[uint64]Segment
	interims map[chunkKey]uint64
}

func New() *History {
	return &History{
		segments: make(map[uint64]Segment),
		interims: make(map[chunkKey]uint64),
	}
}

// Add records a transcript update.
func (h *History) Add(u events.TranscriptUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := chunkKey{source: u.Source, start: u.AudioStartTime, end: u.AudioEndTime}
	if seq, live := h.interims[k]; live {
		delete(h.segments, seq)
		delete(h.interims, k)
	}
	h.segments[u.SequenceID] = Segment{
		Text:           u.Text,
		Timestamp:      u.Timestamp,
		Source:         u.Source,
		SourceType:     u.SourceType,
		SequenceID:     u.SequenceID,
		Confidence:     u.Confidence,
		AudioStartTime: u.AudioStartTime,
		AudioEndTime:   u.AudioEndTime,
		Duration:       u.Duration,
	}
	if u.IsPartial {
		h.interims[k] = u.SequenceID
	}
}

// Segments returns the recorded segments sorted by sequence id.
func (h *History) Segments() []Segment {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Segment, 0, len(h.segments))
	for _, s := range h.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })
	return out
}

// Len reports how many segments are stored.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.segments)
}
