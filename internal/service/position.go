package service

import (
	"strings"

	"github.com/yakoovad/squad-roster/internal/model"
)

// Positions are only unique inside a real team. Records without a team hold a provisional
// label that is never checked for conflicts until a team is chosen.
func positionScoped(teamNo int) bool {
	return teamNo > 0
}

func NormalizePosition(position string) string {
	return strings.TrimSpace(position)
}

// positionKey is the comparison form of a label: case and whitespace insensitive.
func positionKey(position string) string {
	return strings.ToLower(strings.Join(strings.Fields(position), " "))
}

// HasPositionConflict reports whether an active record other than excludingID in team teamNo
// already holds position.
func HasPositionConflict(records []*model.Participation, teamNo int, position, excludingID string) bool {
	if !positionScoped(teamNo) {
		return false
	}

	key := positionKey(position)
	if key == "" {
		return false
	}

	for _, r := range records {
		if r.ID == excludingID || !r.IsActive() || r.TeamNo != teamNo {
			continue
		}
		if positionKey(r.Position) == key {
			return true
		}
	}
	return false
}

// findPositionCollision returns the first label held twice inside one team.
func findPositionCollision(records []*model.Participation) (string, bool) {
	type slot struct {
		team int
		key  string
	}

	seen := make(map[slot]struct{}, len(records))
	for _, r := range records {
		if !r.IsActive() || !positionScoped(r.TeamNo) {
			continue
		}
		key := positionKey(r.Position)
		if key == "" {
			continue
		}
		s := slot{team: r.TeamNo, key: key}
		if _, ok := seen[s]; ok {
			return r.Position, true
		}
		seen[s] = struct{}{}
	}
	return "", false
}
