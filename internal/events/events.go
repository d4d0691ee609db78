// Package events defines the session event model and an in-process bus
// connecting the pipeline to the daemon, the transcript history and any
// other listeners.
package events

// Type names an event on the bus.
type Type string

const (
	TypeRecordingStarted Type = "recording-started"
	TypeRecordingStopped Type = "recording-stopped"
	TypeRecordingPaused  Type = "recording-paused"
	TypeRecordingResumed Type = "recording-resumed"

	TypeShutdownProgress Type = "recording-shutdown-progress"

	TypeTranscriptUpdate     Type = "transcript-update"
	TypeSpeechDetected       Type = "speech-detected"
	TypeTranscriptionWarning Type = "transcription-warning"
	TypeTranscriptionError   Type = "transcription-error"
	TypeTranscriptionSummary Type = "transcription-summary"
	TypeChunkLossDetected    Type = "transcript-chunk-loss-detected"
)

// Event is a typed payload on the bus.
type Event struct {
	Type    Type
	Payload any
}

// TranscriptUpdate is one transcription result ready for display.
type TranscriptUpdate struct {
	Text           string  `json:"text"`
	Timestamp      string  `json:"timestamp"`
	Source         string  `json:"source"`
	SequenceID     uint64  `json:"sequence_id"`
	IsPartial      bool    `json:"is_partial"`
	Confidence     float32 `json:"confidence"`
	AudioStartTime float64 `json:"audio_start_time"`
	AudioEndTime   float64 `json:"audio_end_time"`
	Duration       float64 `json:"duration"`
	SourceType     string  `json:"source_type,omitempty"`
}

// ShutdownStage identifies a step of the stop protocol.
type ShutdownStage string

const (
	StageStoppingAudio         ShutdownStage = "stopping_audio"
	StageProcessingTranscripts ShutdownStage = "processing_transcripts"
	StageUnloadingModel        ShutdownStage = "unloading_model"
	StageFinalizing            ShutdownStage = "finalizing"
	StageComplete              ShutdownStage = "complete"
)

// ShutdownProgress reports stop progress to listeners.
type ShutdownProgress struct {
	Stage    ShutdownStage `json:"stage"`
	Message  string        `json:"message"`
	Progress int           `json:"progress"`
}

// Summary is the end-of-session accounting report. It is emitted on
// every stop, lossy or not.
type Summary struct {
	ChunksQueued    uint64  `json:"chunks_queued"`
	ChunksCompleted uint64  `json:"chunks_completed"`
	ChunksDropped   uint64  `json:"chunks_dropped"`
	LossPercentage  float64 `json:"loss_percentage"`
	Status          string  `json:"status"` // "complete" or "incomplete"
}

// SessionInfo accompanies recording start/stop events. Duration and
// paused time are filled on stop.
type SessionInfo struct {
	MeetingName   string  `json:"meeting_name"`
	Folder        string  `json:"folder,omitempty"`
	Duration      float64 `json:"duration_seconds,omitempty"`
	PausedSeconds float64 `json:"paused_seconds,omitempty"`
}
