package session

import "time"

// Status is the lifecycle state of a meeting session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Meeting is the persisted metadata of one session.
type Meeting struct {
	ID              string     `json:"meeting_id"`
	URL             string     `json:"url"`
	ParticipantName string     `json:"participant_name"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	Status          Status     `json:"status"`
}

// Active reports whether the session has not been ended.
func (m Meeting) Active() bool {
	return m.Status == StatusActive
}

// Duration returns the elapsed time of the session, measured to now when it
// is still active.
func (m Meeting) Duration(now time.Time) time.Duration {
	end := now
	if m.EndedAt != nil {
		end = *m.EndedAt
	}
	if end.Before(m.StartedAt) {
		return 0
	}
	return end.Sub(m.StartedAt)
}
