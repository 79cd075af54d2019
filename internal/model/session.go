package model

import (
	"fmt"
	"time"
)

// MinLineupParticipants is the smallest session size that supports a tactical lineup.
const MinLineupParticipants = 8

type Session struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	MaxParticipants      int        `json:"max_participants"`
	TeamCount            int        `json:"team_count"`
	TeamNames            []string   `json:"team_names"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	CreatedBy            string     `json:"created_by"`
}

func (s *Session) Teams() int {
	if s.TeamCount < 1 {
		return 1
	}
	return s.TeamCount
}

// TeamCapacity is the number of active members a single team may hold: ceil(max / teams).
func (s *Session) TeamCapacity() int {
	n := s.Teams()
	return (s.MaxParticipants + n - 1) / n
}

func (s *Session) HasTeam(teamNo int) bool {
	return teamNo >= 1 && teamNo <= s.Teams()
}

func (s *Session) TeamName(teamNo int) string {
	if teamNo >= 1 && teamNo <= len(s.TeamNames) && s.TeamNames[teamNo-1] != "" {
		return s.TeamNames[teamNo-1]
	}
	return fmt.Sprintf("Team %d", teamNo)
}

func (s *Session) LineupEnabled() bool {
	return s.MaxParticipants >= MinLineupParticipants
}
