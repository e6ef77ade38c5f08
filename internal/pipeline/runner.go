package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/session"
)

// Transcriber converts one WAV chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, filename string) (string, error)
}

// Recorder persists transcript and mention lines.
type Recorder interface {
	AppendTranscript(ts time.Time, text string) (time.Time, error)
	AppendMention(ts time.Time, kind session.MentionKind, text string) error
}

// Options configures a Runner.
type Options struct {
	Format        PCMFormat
	ChunkDuration time.Duration
	// MinChunkRatio is the fraction of a full chunk a trailing partial chunk
	// must reach to be transcribed.
	MinChunkRatio float64
	// WorkDir receives WAV files while they are submitted.
	WorkDir string
	// KeepChunks retains the WAV files under WorkDir instead of deleting them.
	KeepChunks bool
	// MetricsPath, when set, receives a Prometheus textfile after each chunk.
	MetricsPath string
}

// Stats summarizes a finished run.
type Stats struct {
	Chunks   int
	Lines    int
	Mentions int
	Dropped  int
	Failures int
}

// Runner is the sequential capture-transcribe loop.
type Runner struct {
	opts        Options
	source      Source
	transcriber Transcriber
	recorder    Recorder
	matcher     *Matcher
	metrics     *Metrics
	notifier    notifications.Service
	sessionID   string
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner wires a Runner. metrics may be nil.
func NewRunner(opts Options, source Source, transcriber Transcriber, recorder Recorder, matcher *Matcher, metrics *Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		opts:        opts,
		source:      source,
		transcriber: transcriber,
		recorder:    recorder,
		matcher:     matcher,
		metrics:     metrics,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		now:         time.Now,
	}
}

// WithNotifier pushes each detected mention for sessionID through n.
func (r *Runner) WithNotifier(n notifications.Service, sessionID string) *Runner {
	r.notifier = n
	r.sessionID = sessionID
	return r
}

// ChunkBytes returns the byte length of one full chunk, rounded down to a
// whole frame.
func (r *Runner) ChunkBytes() int {
	bytes := int(int64(r.opts.Format.BytesPerSecond()) * r.opts.ChunkDuration.Milliseconds() / 1000)
	frame := r.opts.Format.frameBytes()
	if frame > 0 {
		bytes -= bytes % frame
	}
	return bytes
}

// Run reads and transcribes chunks until the stream ends or ctx is cancelled.
// Cancellation is cooperative: the chunk being transcribed completes and is
// recorded, then Run returns nil. A recorder that dies on its own is
// returned as an error along with whatever was transcribed before it.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	chunkBytes := r.ChunkBytes()
	if chunkBytes <= 0 {
		return stats, errors.New("pipeline: chunk size resolves to zero bytes")
	}
	minBytes := int(float64(chunkBytes) * r.opts.MinChunkRatio)
	if r.opts.WorkDir == "" {
		dir, err := os.MkdirTemp("", "meetwatch-chunks-")
		if err != nil {
			return stats, fmt.Errorf("create chunk dir: %w", err)
		}
		r.opts.WorkDir = dir
		defer func() {
			_ = os.RemoveAll(dir)
			r.opts.WorkDir = ""
		}()
	} else if err := os.MkdirAll(r.opts.WorkDir, 0o755); err != nil {
		return stats, fmt.Errorf("create chunk dir: %w", err)
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		return stats, fmt.Errorf("open capture: %w", err)
	}
	defer func() { _ = stream.Close() }()

	r.logger.Info("capture started",
		logging.Int("chunk_bytes", chunkBytes),
		logging.Duration("chunk_duration", r.opts.ChunkDuration),
		logging.String(logging.FieldEventType, "capture_started"),
	)

	buf := make([]byte, chunkBytes)
	for {
		n, readErr := io.ReadFull(stream, buf)
		final := readErr != nil
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF), ctx.Err() != nil:
		default:
			return stats, fmt.Errorf("read capture: %w", readErr)
		}

		if n > 0 {
			if final && n < minBytes {
				r.drop(&stats, "short_tail")
				r.logger.Debug("trailing chunk too short; dropped", logging.Int("bytes", n), logging.Int("min_bytes", minBytes))
			} else {
				stats.Chunks++
				r.process(ctx, &stats, stats.Chunks, buf[:n])
			}
			r.flushMetrics()
		}

		if final || ctx.Err() != nil {
			break
		}
	}

	// A stream that ended without a stop request means the recorder died.
	if ctx.Err() == nil {
		if err := stream.Close(); err != nil {
			return stats, fmt.Errorf("capture ended: %w", err)
		}
	}

	r.logger.Info("capture finished",
		logging.Int("chunks", stats.Chunks),
		logging.Int("lines", stats.Lines),
		logging.Int("mentions", stats.Mentions),
		logging.Int("dropped", stats.Dropped),
		logging.String(logging.FieldEventType, "capture_finished"),
	)
	return stats, nil
}

func (r *Runner) process(ctx context.Context, stats *Stats, index int, pcm []byte) {
	submitted := r.now()
	if r.metrics != nil {
		r.metrics.observeSubmit(submitted)
	}

	name := fmt.Sprintf("chunk_%05d.wav", index)
	path := filepath.Join(r.opts.WorkDir, name)
	wav, err := writeWAV(path, pcm, r.opts.Format)
	if !r.opts.KeepChunks {
		defer os.Remove(path)
	}
	if err != nil {
		r.fail(stats, index, "encode", err)
		return
	}

	// The in-flight request finishes even after a stop request.
	started := time.Now()
	text, err := r.transcriber.Transcribe(context.WithoutCancel(ctx), wav, name)
	if r.metrics != nil {
		r.metrics.TranscriptionDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.TranscriptionFailures.Inc()
		}
		stats.Failures++
		r.fail(stats, index, "transcribe", err)
		return
	}
	if text == "" {
		r.drop(stats, "empty")
		return
	}

	written, err := r.recorder.AppendTranscript(submitted, text)
	if err != nil {
		r.fail(stats, index, "append", err)
		return
	}
	stats.Lines++
	if r.metrics != nil {
		r.metrics.TranscriptLines.Inc()
	}

	if r.matcher == nil {
		return
	}
	kind, keyword, ok := r.matcher.Match(text)
	if !ok {
		return
	}
	if err := r.recorder.AppendMention(written, kind, text); err != nil {
		logging.WarnWithContext(r.logger, "mention append failed", "mention_append_failed",
			logging.Int("chunk", index),
			logging.Error(err),
			logging.String(logging.FieldImpact, "mention missing from mentions.txt; transcript line kept"),
		)
		return
	}
	stats.Mentions++
	if r.metrics != nil {
		r.metrics.Mentions.WithLabelValues(string(kind)).Inc()
	}
	r.logger.Info("mention detected",
		logging.String("kind", string(kind)),
		logging.String("keyword", keyword),
		logging.String(logging.FieldEventType, "mention_detected"),
	)
	r.notifyMention(ctx, kind, text)
}

func (r *Runner) notifyMention(ctx context.Context, kind session.MentionKind, text string) {
	if r.notifier == nil {
		return
	}
	event := notifications.EventMention
	if kind == session.KindQuestion {
		event = notifications.EventQuestion
	}
	payload := notifications.Payload{"session": r.sessionID, "text": text}
	if err := r.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		r.logger.Debug("mention notification failed", logging.Error(err))
	}
}

func (r *Runner) fail(stats *Stats, index int, stage string, err error) {
	r.drop(stats, stage+"_failed")
	logging.WarnWithContext(r.logger, "chunk dropped", "chunk_dropped",
		logging.Int("chunk", index),
		logging.String("stage", stage),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the transcription server with meetwatch doctor"),
		logging.String(logging.FieldImpact, "this chunk's speech is missing from the transcript"),
	)
}

func (r *Runner) drop(stats *Stats, reason string) {
	stats.Dropped++
	if r.metrics != nil {
		r.metrics.ChunksDropped.WithLabelValues(reason).Inc()
	}
}

func (r *Runner) flushMetrics() {
	if r.metrics == nil || r.opts.MetricsPath == "" {
		return
	}
	if err := r.metrics.WriteTextfile(r.opts.MetricsPath); err != nil {
		r.logger.Debug("metrics write failed", logging.Error(err))
	}
}
