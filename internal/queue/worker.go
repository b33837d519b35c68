package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"tts-studio/internal/core"
)

// Run subscribes the worker pool to the jobs subject and blocks until the
// context is cancelled. Concurrency is bounded by the configured worker
// count; jobs beyond it wait in the subscription.
func (q *Queue) Run(ctx context.Context) error {
	semaphore := make(chan struct{}, q.opts.Workers)

	sub, err := q.conn.QueueSubscribe(
		q.opts.JobsSubject,
		workerGroup,
		func(msg *nats.Msg) {
			go q.dispatch(ctx, semaphore, msg.Data)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", q.opts.JobsSubject, err)
	}

	q.log.Info("Generation worker pool started: %d workers, subject %s",
		q.opts.Workers, q.opts.JobsSubject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

// dispatch acquires a worker slot and processes one job message.
func (q *Queue) dispatch(ctx context.Context, semaphore chan struct{}, data []byte) {
	select {
	case semaphore <- struct{}{}:
	case <-ctx.Done():
		return
	}

	defer func() { <-semaphore }()

	var msg jobMessage

	err := unmarshalJSON(data, &msg)
	if err != nil {
		q.log.Error("Failed to parse job message: %v", err)

		return
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), q.opts.JobTimeout)
	defer cancel()

	q.process(jobCtx, msg)
}

// process runs one job end to end: engine call, history write, state
// updates. Engine errors are surfaced on the job verbatim; there is no
// retry.
func (q *Queue) process(ctx context.Context, msg jobMessage) {
	q.setRunning(msg.JobID)

	start := time.Now()

	audio, meta, err := q.generate(ctx, msg)
	if err != nil {
		q.log.Error("Job %s failed: %v", msg.JobID, err)
		q.setFailed(msg.JobID, err)

		return
	}

	engineSeconds := time.Since(start).Seconds()
	meta.EngineSeconds = engineSeconds

	record, err := q.history.Save(ctx, msg.Kind, audio, meta)
	if err != nil {
		q.log.Error("Job %s failed to save audio: %v", msg.JobID, err)
		q.setFailed(msg.JobID, err)

		return
	}

	result := core.JobResult{
		FileName:       record.FileName,
		AudioSeconds:   record.AudioSeconds,
		EngineSeconds:  engineSeconds,
		RealTimeFactor: realTimeFactor(engineSeconds, record.AudioSeconds),
		Seed:           meta.Seed,
		SizeBytes:      record.SizeBytes,
	}

	q.setDone(msg.JobID, result)

	q.log.Info("Job %s done: %s (%.1fs audio in %.1fs)",
		msg.JobID, record.FileName, record.AudioSeconds, engineSeconds)
}

// generate invokes the engine according to the job kind and returns the
// audio plus the metadata to index it under.
func (q *Queue) generate(ctx context.Context, msg jobMessage) ([]byte, core.Record, error) {
	switch msg.Kind {
	case core.KindTTS:
		if msg.TTS == nil {
			return nil, core.Record{}, ErrMissingSpec
		}

		audio, err := q.engine.GenerateSpeech(ctx, *msg.TTS)
		if err != nil {
			return nil, core.Record{}, fmt.Errorf("speech generation failed: %w", err)
		}

		meta := core.Record{
			Exaggeration: msg.TTS.Params.Exaggeration,
			CFGWeight:    msg.TTS.Params.CFGWeight,
			Temperature:  msg.TTS.Params.Temperature,
			Seed:         msg.TTS.Params.Seed,
		}

		return audio, meta, nil
	case core.KindVC:
		if msg.VC == nil {
			return nil, core.Record{}, ErrMissingSpec
		}

		audio, err := q.engine.ConvertVoice(ctx, *msg.VC)
		if err != nil {
			return nil, core.Record{}, fmt.Errorf("voice conversion failed: %w", err)
		}

		return audio, core.Record{}, nil
	default:
		return nil, core.Record{}, fmt.Errorf("%w: %q", ErrUnknownJobKind, msg.Kind)
	}
}

// realTimeFactor reports engine time relative to audio time; zero-length
// audio yields zero.
func realTimeFactor(engineSeconds, audioSeconds float64) float64 {
	if audioSeconds <= 0 {
		return 0
	}

	return engineSeconds / audioSeconds
}
