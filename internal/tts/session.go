package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// AudioSink persists decoded audio for an item.
type AudioSink interface {
	WriteAudio(sheet, itemID string, data []byte) (string, error)
}

// Transport carries requests to the synthesis service.
type Transport interface {
	Emit(ctx context.Context, event string, payload any) error
	Done() <-chan struct{}
	Err() error
}

// Options configure a Session.
type Options struct {
	Model        string
	Speaker      int
	Interval     time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
}

// DefaultOptions returns the production pacing and model settings.
func DefaultOptions() Options {
	return Options{
		Model:        DefaultModel,
		Speaker:      DefaultSpeaker,
		Interval:     DefaultInterval,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// Summary reports the outcome of a Run.
type Summary struct {
	RunID     string
	Submitted int
	Completed int
	Failed    int
	Unknown   int
	TimedOut  bool
}

// Session correlates synthesis requests with out-of-order results.
// The pending map is fully built before any request is sent and is never
// mutated afterwards, so result handlers may read it without locking.
type Session struct {
	logger  *slog.Logger
	sink    AudioSink
	opts    Options
	runID   string
	jobs    []Job
	pending map[int]Job

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	unknown   atomic.Int64
}

// NewSession assigns correlation indices 0..len(jobs)-1 in order.
func NewSession(logger *slog.Logger, sink AudioSink, jobs []Job, opts Options) *Session {
	defaults := DefaultOptions()
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}

	pending := make(map[int]Job, len(jobs))
	for i, job := range jobs {
		pending[i] = job
	}

	runID := uuid.NewString()
	return &Session{
		logger:  logger.With(slog.String("run_id", runID)),
		sink:    sink,
		opts:    opts,
		runID:   runID,
		jobs:    jobs,
		pending: pending,
	}
}

// Request builds the payload for correlation index i.
func (s *Session) Request(i int) Request {
	job := s.jobs[i]
	return Request{
		Text:    job.Text,
		Model:   s.opts.Model,
		Gender:  Gender(job.Sheet),
		Index:   i,
		Speaker: s.opts.Speaker,
	}
}

// HandleEvent is the transport's event callback.
func (s *Session) HandleEvent(event string, data json.RawMessage) {
	if event != EventResult {
		s.logger.Debug("ignoring event", slog.String("event", event))
		return
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		s.logger.Error("error processing result", slog.String("error", err.Error()))
		return
	}
	s.HandleResult(res)
}

// HandleResult writes the audio of a known index and counts it.
func (s *Session) HandleResult(res Result) {
	if res.Index == nil {
		s.unknown.Add(1)
		s.logger.Warn("received result without index")
		return
	}
	index := *res.Index
	job, ok := s.pending[index]
	if !ok {
		s.unknown.Add(1)
		s.logger.Warn("received result with unknown index", slog.Int("index", index))
		return
	}

	if res.Audio == nil || *res.Audio == "" {
		s.failed.Add(1)
		s.logger.Warn("received result with missing audio",
			slog.Int("index", index),
			slog.String("sheet", job.Sheet),
			slog.String("item_id", job.ItemID),
		)
		return
	}

	audio, err := base64.StdEncoding.DecodeString(*res.Audio)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("failed to decode audio data",
			slog.Int("index", index),
			slog.String("item_id", job.ItemID),
			slog.String("error", err.Error()),
		)
		return
	}

	path, err := s.sink.WriteAudio(job.Sheet, job.ItemID, audio)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("failed to write audio",
			slog.String("sheet", job.Sheet),
			slog.String("item_id", job.ItemID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.completed.Add(1)
	s.logger.Info("saved audio", slog.String("path", path), slog.Int("audio_bytes", len(audio)))
}

// Run sends every request, paced by Options.Interval, then polls until all
// results arrived or Options.Timeout elapsed. A transport failure aborts
// the run; a timeout does not produce an error.
func (s *Session) Run(ctx context.Context, t Transport) (Summary, error) {
	limiter := rate.NewLimiter(rate.Every(s.opts.Interval), 1)

	for i, job := range s.jobs {
		if err := limiter.Wait(ctx); err != nil {
			return s.Summary(), fmt.Errorf("pace requests: %w", err)
		}
		s.logger.Info("sending request",
			slog.String("sheet", job.Sheet),
			slog.String("item_id", job.ItemID),
			slog.Int("index", i),
		)
		if err := t.Emit(ctx, EventTextTransmit, s.Request(i)); err != nil {
			return s.Summary(), fmt.Errorf("send request %d: %w", i, err)
		}
		s.submitted.Add(1)
	}

	summary, err := s.wait(ctx, t)
	s.logger.Info("finished",
		slog.Int("submitted", summary.Submitted),
		slog.Int("completed", summary.Completed),
		slog.Int("failed", summary.Failed),
		slog.Int("unknown", summary.Unknown),
		slog.Bool("timed_out", summary.TimedOut),
	)
	return summary, err
}

func (s *Session) wait(ctx context.Context, t Transport) (Summary, error) {
	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if s.completed.Load() >= s.submitted.Load() {
			return s.Summary(), nil
		}
		select {
		case <-ctx.Done():
			return s.Summary(), ctx.Err()
		case <-t.Done():
			return s.Summary(), fmt.Errorf("connection lost: %w", t.Err())
		case <-timer.C:
			s.logger.Warn("timeout waiting for all responses", slog.Duration("timeout", s.opts.Timeout))
			summary := s.Summary()
			summary.TimedOut = true
			return summary, nil
		case <-ticker.C:
		}
	}
}

// Summary snapshots the counters.
func (s *Session) Summary() Summary {
	return Summary{
		RunID:     s.runID,
		Submitted: int(s.submitted.Load()),
		Completed: int(s.completed.Load()),
		Failed:    int(s.failed.Load()),
		Unknown:   int(s.unknown.Load()),
	}
}
