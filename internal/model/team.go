package model

import (
	"time"

	"github.com/pkg/errors"
)

// CapacityPolicy decides whether bulk team reassignment respects per-team capacity.
type CapacityPolicy string

const (
	CapacityPolicyOverride CapacityPolicy = "override"
	CapacityPolicyEnforce  CapacityPolicy = "enforce"
)

func ParseCapacityPolicy(s string) (CapacityPolicy, error) {
	switch p := CapacityPolicy(s); p {
	case CapacityPolicyOverride, CapacityPolicyEnforce:
		return p, nil
	default:
		return "", errors.Errorf("unknown capacity policy %q", s)
	}
}

type RosterEntry struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Status    Status    `json:"status"`
	Position  string    `json:"position,omitempty"`
	TeamNo    int       `json:"team_no,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamGroup struct {
	TeamNo   int            `json:"team_no"`
	Name     string         `json:"name"`
	Capacity int            `json:"capacity"`
	Members  []*RosterEntry `json:"members"`
}

type TeamsView struct {
	SessionID       string         `json:"session_id"`
	TeamCount       int            `json:"team_count"`
	TeamNames       []string       `json:"team_names"`
	TeamCapacity    int            `json:"team_capacity"`
	AverageTeamSize float64        `json:"average_team_size"`
	CanEdit         bool           `json:"can_edit"`
	Roster          []*RosterEntry `json:"roster"`
	Teams           []*TeamGroup   `json:"teams"`
	Unassigned      []*RosterEntry `json:"unassigned"`
	Waitlist        []*RosterEntry `json:"waitlist"`
}

type TeamAssignment struct {
	UserID string `json:"user_id" validate:"required"`
	TeamNo int    `json:"team_no"`
}

type PositionAssignment struct {
	UserID   string `json:"user_id" validate:"required"`
	Position string `json:"position" validate:"max=32"`
}
