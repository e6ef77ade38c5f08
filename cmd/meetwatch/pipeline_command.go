package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"meetwatch/internal/config"
	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/pipeline"
	"meetwatch/internal/pipelinectl"
)

const metricsFileName = "metrics.prom"

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:    "pipeline",
		Short:  "Run the capture and transcription loop for a session",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			return runPipeline(parent, ctx, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to transcribe")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func runPipeline(parent context.Context, cc *commandContext, sessionID string) error {
	cfg := cc.config
	store := cc.sessionStore()
	if _, err := store.Load(sessionID); err != nil {
		return err
	}
	dir := store.Dir(sessionID)

	logger, err := logging.NewSessionLogger(cfg, dir)
	if err != nil {
		return fmt.Errorf("init pipeline logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldSessionID, sessionID))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transcript, err := store.OpenLog(sessionID)
	if err != nil {
		return err
	}
	defer transcript.Close()

	format := pipeline.PCMFormat{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		BytesPerSample: config.BytesPerSample(cfg.Audio.Format),
	}
	source := pipeline.ParecSource{
		Binary:   cfg.CaptureBinary(),
		Device:   cfg.Audio.SinkName + ".monitor",
		Rate:     cfg.Audio.SampleRate,
		Channels: cfg.Audio.Channels,
		Format:   cfg.Audio.Format,
	}
	opts := pipeline.Options{
		Format:        format,
		ChunkDuration: cfg.ChunkDuration(),
		MinChunkRatio: cfg.Audio.MinChunkRatio,
		KeepChunks:    cfg.Pipeline.KeepChunks,
	}
	if cfg.Pipeline.KeepChunks {
		opts.WorkDir = filepath.Join(dir, "chunks")
	}
	var metrics *pipeline.Metrics
	if cfg.Pipeline.Metrics {
		metrics = pipeline.NewMetrics(sessionID)
		opts.MetricsPath = filepath.Join(dir, metricsFileName)
	}

	runner := pipeline.NewRunner(
		opts,
		source,
		cc.transcriptionClient(),
		transcript,
		pipeline.NewMatcher(cfg.Mentions.Keywords, cfg.Mentions.QuestionPhrases),
		metrics,
		logger,
	).WithNotifier(notifications.NewService(cfg), sessionID)
	logger.Info("transcriber starting",
		logging.Int("pid", os.Getpid()),
		logging.String("device", source.Device),
		logging.String("model", cfg.Transcription.Model),
		logging.String(logging.FieldEventType, "pipeline_started"),
	)
	_, runErr := runner.Run(ctx)

	sup := pipelinectl.New(pipelinectl.Options{RecordPath: cfg.PIDRecordPath()}, logger)
	if err := sup.ClearIfOwned(os.Getpid()); err != nil {
		logger.Warn("could not clear transcriber record", logging.Error(err))
	}
	if runErr != nil {
		logging.ErrorWithContext(logger, "transcriber failed", "pipeline_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, "check that the capture sink exists (pactl list short sinks)"),
		)
		return runErr
	}
	return nil
}
