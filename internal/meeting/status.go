package meeting

import (
	"context"

	"meetwatch/internal/logging"
	"meetwatch/internal/session"
)

// Report is the status of the current session.
type Report struct {
	Active          bool             `json:"active"`
	Meeting         *session.Meeting `json:"meeting,omitempty"`
	Dir             string           `json:"dir,omitempty"`
	TranscriptLines int              `json:"transcript_lines"`
	Mentions        int              `json:"mentions"`
	PipelineState   string           `json:"pipeline"`
	PipelinePID     int              `json:"pipeline_pid,omitempty"`
	PipelineSession string           `json:"pipeline_session,omitempty"`
}

// Status reads the current session and transcriber liveness. A dead or
// missing transcriber reports stopped; it is never an error.
func (s *Service) Status(ctx context.Context) (*Report, error) {
	report := &Report{PipelineState: "stopped"}

	status, err := s.transcribers.Inspect()
	if err != nil {
		logging.WithContext(ctx, s.logger).Debug("transcriber record unreadable", logging.Error(err))
	} else {
		report.PipelineState = status.State()
		if status.Record != nil {
			report.PipelinePID = status.Record.PID
			report.PipelineSession = status.Record.SessionID
		}
	}

	meeting, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	if meeting == nil {
		return report, nil
	}
	report.Active = true
	report.Meeting = meeting
	report.Dir = s.store.Dir(meeting.ID)
	if report.TranscriptLines, err = s.store.LineCount(meeting.ID); err != nil {
		return nil, err
	}
	if report.Mentions, err = s.store.MentionCount(meeting.ID); err != nil {
		return nil, err
	}
	if report.PipelineSession != "" && report.PipelineSession != meeting.ID {
		// A transcriber left over from another session is not this session's.
		report.PipelineState = "stopped"
	}
	return report, nil
}
