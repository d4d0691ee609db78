// Package pipeline moves captured audio through accumulation, a
// bounded queue and the transcription engine, with exact accounting of
// every chunk.
package pipeline

import "sync/atomic"

// Context is the shared state of one recording session. A fresh
// Context is created per session so sequence numbers and flags never
// leak across recordings.
type Context struct {
	seq            atomic.Uint64
	speechDetected atomic.Bool
	Tracker        *Tracker
}

func NewContext() *Context {
	return &Context{Tracker: &Tracker{}}
}

// NextSequence returns the next global transcript sequence number.
// Assigned at emission time, so listeners can totally order updates
// from every device.
func (c *Context) NextSequence() uint64 {
	return c.seq.Add(1)
}

// MarkSpeechDetected flips the one-shot session flag. Returns true
// only for the caller that performed the flip.
func (c *Context) MarkSpeechDetected() bool {
	return c.speechDetected.CompareAndSwap(false, true)
}

// SpeechDetected reports whether any speech was heard this session.
func (c *Context) SpeechDetected() bool {
	return c.speechDetected.Load()
}
