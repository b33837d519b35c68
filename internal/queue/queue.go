// Package queue runs generation jobs through a NATS subject and a bounded
// worker pool, mirroring the one-generation-at-a-time session model of the
// original studio while letting a small number of jobs proceed in parallel.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"tts-studio/internal/core"
)

// workerGroup names the NATS queue group the worker pool subscribes under.
const workerGroup = "studio-workers"

// Static errors.
var (
	ErrQueueFull      = errors.New("generation queue is full")
	ErrUnknownJobKind = errors.New("unknown job kind")
	ErrMissingSpec    = errors.New("job message carries no spec")
)

// jobMessage is the wire format published to the jobs subject.
type jobMessage struct {
	JobID string        `json:"job_id"`
	Kind  core.Kind     `json:"kind"`
	TTS   *core.TTSSpec `json:"tts,omitempty"`
	VC    *core.VCSpec  `json:"vc,omitempty"`
}

// Options configures a Queue.
type Options struct {
	// JobsSubject carries job messages; EventsSubject carries job
	// lifecycle snapshots for observers such as the websocket stream.
	JobsSubject   string
	EventsSubject string

	// Workers bounds concurrent engine calls; MaxPending bounds accepted
	// but unfinished jobs.
	Workers    int
	MaxPending int

	// JobTimeout bounds a single engine call plus the history write.
	JobTimeout time.Duration
}

// Queue implements core.JobQueue over a NATS connection shared with the
// rest of the process.
type Queue struct {
	conn    *nats.Conn
	engine  core.SpeechEngine
	history core.HistoryStore
	log     *logger.Logger
	opts    Options

	mu      sync.RWMutex
	jobs    map[string]*core.Job
	pending int
}

// New creates a queue. Run must be started before jobs are submitted, or
// published job messages have no consumer.
func New(
	conn *nats.Conn,
	engine core.SpeechEngine,
	history core.HistoryStore,
	log *logger.Logger,
	opts Options,
) *Queue {
	return &Queue{
		conn:    conn,
		engine:  engine,
		history: history,
		log:     log,
		opts:    opts,
		mu:      sync.RWMutex{},
		jobs:    make(map[string]*core.Job),
		pending: 0,
	}
}

// SubmitTTS accepts a text-to-speech job and publishes it to the worker
// pool.
func (q *Queue) SubmitTTS(ctx context.Context, spec core.TTSSpec) (*core.Job, error) {
	msg := jobMessage{
		JobID: uuid.NewString(),
		Kind:  core.KindTTS,
		TTS:   &spec,
		VC:    nil,
	}

	return q.submit(ctx, msg)
}

// SubmitVC accepts a voice-conversion job and publishes it to the worker
// pool.
func (q *Queue) SubmitVC(ctx context.Context, spec core.VCSpec) (*core.Job, error) {
	msg := jobMessage{
		JobID: uuid.NewString(),
		Kind:  core.KindVC,
		TTS:   nil,
		VC:    &spec,
	}

	return q.submit(ctx, msg)
}

// Lookup returns a snapshot of the job with the given id.
func (q *Queue) Lookup(id string) (*core.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}

	snapshot := *job

	return &snapshot, true
}

func (q *Queue) submit(_ context.Context, msg jobMessage) (*core.Job, error) {
	data, err := marshalJSON(msg)
	if err != nil {
		return nil, err
	}

	job, err := q.register(msg)
	if err != nil {
		return nil, err
	}

	err = q.conn.Publish(q.opts.JobsSubject, data)
	if err != nil {
		q.setFailed(msg.JobID, fmt.Errorf("failed to publish job: %w", err))

		return nil, fmt.Errorf("failed to publish job: %w", err)
	}

	q.publishEvent(msg.JobID)

	snapshot := *job

	return &snapshot, nil
}

// register admits the job into the registry, enforcing the pending bound.
func (q *Queue) register(msg jobMessage) (*core.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending >= q.opts.MaxPending {
		return nil, fmt.Errorf("%w: %d jobs pending", ErrQueueFull, q.pending)
	}

	job := &core.Job{
		ID:          msg.JobID,
		Kind:        msg.Kind,
		State:       core.StateQueued,
		Error:       "",
		SubmittedAt: time.Now(),
		Result:      nil,
	}

	q.jobs[msg.JobID] = job
	q.pending++

	return job, nil
}

// publishEvent publishes the current snapshot of the job to the events
// subject. Event delivery is best effort.
func (q *Queue) publishEvent(jobID string) {
	snapshot, ok := q.Lookup(jobID)
	if !ok {
		return
	}

	data, err := marshalJSON(snapshot)
	if err != nil {
		q.log.Warn("Failed to encode job event for %s: %v", jobID, err)

		return
	}

	err = q.conn.Publish(q.opts.EventsSubject, data)
	if err != nil {
		q.log.Warn("Failed to publish job event for %s: %v", jobID, err)
	}
}

func (q *Queue) setRunning(jobID string) {
	q.mu.Lock()

	job, ok := q.jobs[jobID]
	if ok {
		job.State = core.StateRunning
	}

	q.mu.Unlock()

	q.publishEvent(jobID)
}

func (q *Queue) setDone(jobID string, result core.JobResult) {
	q.mu.Lock()

	job, ok := q.jobs[jobID]
	if ok && job.State != core.StateDone && job.State != core.StateFailed {
		job.State = core.StateDone
		job.Result = &result
		q.pending--
	}

	q.mu.Unlock()

	q.publishEvent(jobID)
}

func (q *Queue) setFailed(jobID string, cause error) {
	q.mu.Lock()

	job, ok := q.jobs[jobID]
	if ok && job.State != core.StateDone && job.State != core.StateFailed {
		job.State = core.StateFailed
		job.Error = cause.Error()
		q.pending--
	}

	q.mu.Unlock()

	q.publishEvent(jobID)
}
