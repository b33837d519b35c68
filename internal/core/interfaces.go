// Package core defines the domain types and interfaces shared across the studio.
package core

import (
	"context"
	"time"
)

// Kind identifies the type of a generation and tags its history file name.
type Kind string

const (
	// KindTTS marks audio produced by text-to-speech generation.
	KindTTS Kind = "tts"
	// KindVC marks audio produced by voice conversion.
	KindVC Kind = "vc"
)

// JobState describes where a generation job is in its lifecycle.
type JobState string

const (
	// StateQueued means the job is accepted and waiting for a worker.
	StateQueued JobState = "queued"
	// StateRunning means a worker is calling the inference engine.
	StateRunning JobState = "running"
	// StateDone means the job finished and its audio is in the history.
	StateDone JobState = "done"
	// StateFailed means the engine or the history store rejected the job.
	StateFailed JobState = "failed"
)

// SpeechParams carries the three numeric controls forwarded verbatim to the
// inference engine, plus the resolved generation seed.
type SpeechParams struct {
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Temperature  float64 `json:"temperature"`
	Seed         int     `json:"seed"`
}

// TTSSpec describes a single text-to-speech job.
type TTSSpec struct {
	// Text is the normalized input text to synthesize.
	Text string `json:"text"`

	// ReferencePath optionally points at a server-side reference audio
	// file used to clone the target voice.
	ReferencePath string `json:"reference_path,omitempty"`

	Params SpeechParams `json:"params"`
}

// VCSpec describes a single voice-conversion job.
type VCSpec struct {
	// InputPath is the server-side path of the audio to convert.
	InputPath string `json:"input_path"`

	// TargetVoicePath optionally points at the target voice sample. The
	// engine falls back to its built-in voice when empty.
	TargetVoicePath string `json:"target_voice_path,omitempty"`
}

// JobResult holds the outcome of a finished job.
type JobResult struct {
	// FileName is the history file the audio was saved under.
	FileName string `json:"file_name"`

	// AudioSeconds is the duration of the generated audio.
	AudioSeconds float64 `json:"audio_seconds"`

	// EngineSeconds is the wall-clock time the engine call took.
	EngineSeconds float64 `json:"engine_seconds"`

	// RealTimeFactor is EngineSeconds divided by AudioSeconds.
	RealTimeFactor float64 `json:"real_time_factor"`

	// Seed is the seed actually used for generation.
	Seed int `json:"seed"`

	SizeBytes int64 `json:"size_bytes"`
}

// Job is the unit of work tracked by the queue.
type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	State       JobState   `json:"state"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Result      *JobResult `json:"result,omitempty"`
}

// Record is one entry in the generation history.
type Record struct {
	ID            uint      `json:"id"`
	Kind          Kind      `json:"kind"`
	FileName      string    `json:"file_name"`
	SizeBytes     int64     `json:"size_bytes"`
	AudioSeconds  float64   `json:"audio_seconds"`
	EngineSeconds float64   `json:"engine_seconds"`
	Exaggeration  float64   `json:"exaggeration"`
	CFGWeight     float64   `json:"cfg_weight"`
	Temperature   float64   `json:"temperature"`
	Seed          int       `json:"seed"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryStats summarizes the history directory for diagnostics.
type HistoryStats struct {
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

// SpeechEngine is the boundary to the external inference service. All audio
// synthesis and voice conversion happens behind it.
type SpeechEngine interface {
	GenerateSpeech(ctx context.Context, spec TTSSpec) ([]byte, error)
	ConvertVoice(ctx context.Context, spec VCSpec) ([]byte, error)
	Health(ctx context.Context) error
}

// HistoryStore persists generated audio and its metadata.
type HistoryStore interface {
	Save(ctx context.Context, kind Kind, audio []byte, meta Record) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
	Stats(ctx context.Context) (HistoryStats, error)
	Clear(ctx context.Context) (int, error)
	FilePath(name string) (string, error)
}

// JobQueue accepts generation jobs and reports their progress.
type JobQueue interface {
	SubmitTTS(ctx context.Context, spec TTSSpec) (*Job, error)
	SubmitVC(ctx context.Context, spec VCSpec) (*Job, error)
	Lookup(id string) (*Job, bool)
}
