package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/yakoovad/squad-roster/internal/formation"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

// LineupSchemaVersion is stamped on the lineup marker row. Version 1 folds legacy "A:GK" style
// positions into lineup slots.
const LineupSchemaVersion = 1

var legacySlotPattern = regexp.MustCompile(`^([A-Da-d]):([A-Za-z0-9]{1,16})$`)

// parseLegacyPosition decodes "<teamLetter>:<slotKey>", where A is team 1 through D for team 4.
func parseLegacyPosition(position string) (int, string, bool) {
	m := legacySlotPattern.FindStringSubmatch(strings.TrimSpace(position))
	if m == nil {
		return 0, "", false
	}
	teamNo := int(strings.ToUpper(m[1])[0]-'A') + 1
	return teamNo, strings.ToUpper(m[2]), true
}

// planLegacyLineup maps legacy encoded positions of active records onto slots of f sized for
// teamSize. Records are visited in FIFO order; the first claimant of a slot wins and a user gets
// one slot per team. Keys the formation does not use are dropped.
func planLegacyLineup(records []*model.Participation, teamCount int, f *formation.Formation, teamSize int) []*model.LineupSlot {
	type teamSlot struct {
		team int
		key  string
	}
	type teamUser struct {
		team int
		user string
	}

	slotTaken := make(map[teamSlot]struct{})
	userPlaced := make(map[teamUser]struct{})

	var slots []*model.LineupSlot
	for _, rec := range records {
		if !rec.IsActive() {
			continue
		}
		teamNo, key, ok := parseLegacyPosition(rec.Position)
		if !ok || teamNo > teamCount || !f.HasSlot(teamSize, key) {
			continue
		}
		if _, dup := slotTaken[teamSlot{teamNo, key}]; dup {
			continue
		}
		if _, dup := userPlaced[teamUser{teamNo, rec.UserID}]; dup {
			continue
		}
		slotTaken[teamSlot{teamNo, key}] = struct{}{}
		userPlaced[teamUser{teamNo, rec.UserID}] = struct{}{}
		slots = append(slots, &model.LineupSlot{TeamNo: teamNo, SlotKey: key, UserID: rec.UserID})
	}
	return slots
}

// ensureLineup creates the lineup marker for a session on first use and migrates legacy
// positions into it. The marker insert is conflict-tolerant, so only the caller that actually
// created it writes the migrated slots.
func (s *LineupService) ensureLineup(ctx context.Context, session *model.Session, records []*model.Participation) error {
	exists, err := s.lineups.Exists(ctx, session.ID)
	if err != nil || exists {
		return err
	}

	created, err := s.lineups.Create(ctx, session.ID, LineupSchemaVersion)
	if err != nil || !created {
		return err
	}

	f, _ := s.catalog.Get(s.catalog.DefaultName())
	slots := planLegacyLineup(records, session.Teams(), f, session.TeamCapacity())

	byTeam := make(map[int][]*repository.LineupSlot)
	var teams []int
	for _, slot := range slots {
		if _, ok := byTeam[slot.TeamNo]; !ok {
			teams = append(teams, slot.TeamNo)
		}
		byTeam[slot.TeamNo] = append(byTeam[slot.TeamNo], &repository.LineupSlot{
			SessionID: session.ID,
			TeamNo:    slot.TeamNo,
			SlotKey:   slot.SlotKey,
			UserID:    slot.UserID,
		})
	}

	for _, teamNo := range teams {
		if err = s.lineups.SaveFormation(ctx, &repository.LineupFormation{
			SessionID: session.ID,
			TeamNo:    teamNo,
			Name:      s.catalog.DefaultName(),
		}); err != nil {
			return err
		}
		if err = s.lineups.ReplaceTeamSlots(ctx, session.ID, teamNo, byTeam[teamNo]); err != nil {
			return err
		}
	}

	logger.FromContext(ctx).Info("lineup initialised",
		zap.String("session_id", session.ID),
		zap.Int("schema_version", LineupSchemaVersion),
		zap.Int("migrated_slots", len(slots)))

	return nil
}
