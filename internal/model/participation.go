package model

import "time"

type Status string

const (
	StatusWaitlist   Status = "waitlist"
	StatusRegistered Status = "registered"
	StatusPresent    Status = "present"
	StatusLate       Status = "late"
)

// IsActive reports whether the status occupies a seat in the session.
func (s Status) IsActive() bool {
	switch s {
	case StatusRegistered, StatusPresent, StatusLate:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	return s == StatusWaitlist || s.IsActive()
}

// Participation is one user's registration for one session. An empty Position means no
// position, and TeamNo 0 means unassigned.
type Participation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	Position  string    `json:"position,omitempty"`
	TeamNo    int       `json:"team_no,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Participation) IsActive() bool {
	return p.Status.IsActive()
}

type Registration struct {
	SessionID string
	UserID    string
	Position  string
	TeamNo    int
}

// WithdrawalResult describes the cascade triggered by one unregister call.
type WithdrawalResult struct {
	Removed    *Participation   `json:"removed"`
	Promoted   *Participation   `json:"promoted,omitempty"`
	Backfilled []*Participation `json:"backfilled"`
}
