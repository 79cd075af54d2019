package service

import (
	"context"

	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
)

// buildTeamsView groups the records of a session by team and decorates them with user profiles.
func buildTeamsView(ctx context.Context, users repository.UserRepository, session *model.Session, capability model.Capability,
	records []*model.Participation) (*model.TeamsView, error) {

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.UserID)
	}

	profiles, err := users.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*repository.User, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	teamCount := session.Teams()
	view := &model.TeamsView{
		SessionID:    session.ID,
		TeamCount:    teamCount,
		TeamNames:    make([]string, 0, teamCount),
		TeamCapacity: session.TeamCapacity(),
		CanEdit:      capability.CanEdit(),
		Roster:       []*model.RosterEntry{},
		Teams:        make([]*model.TeamGroup, 0, teamCount),
		Unassigned:   []*model.RosterEntry{},
		Waitlist:     []*model.RosterEntry{},
	}

	for no := 1; no <= teamCount; no++ {
		view.TeamNames = append(view.TeamNames, session.TeamName(no))
		view.Teams = append(view.Teams, &model.TeamGroup{
			TeamNo:   no,
			Name:     session.TeamName(no),
			Capacity: session.TeamCapacity(),
			Members:  []*model.RosterEntry{},
		})
	}

	assigned := 0
	for _, r := range records {
		entry := &model.RosterEntry{
			UserID:    r.UserID,
			Username:  r.UserID,
			Status:    r.Status,
			Position:  r.Position,
			TeamNo:    r.TeamNo,
			CreatedAt: r.CreatedAt,
		}
		if p, ok := byID[r.UserID]; ok {
			entry.Username = p.Username
			if p.AvatarURL != nil {
				entry.AvatarURL = *p.AvatarURL
			}
		}

		switch {
		case !r.IsActive():
			view.Waitlist = append(view.Waitlist, entry)
			continue
		case session.HasTeam(r.TeamNo):
			group := view.Teams[r.TeamNo-1]
			group.Members = append(group.Members, entry)
			assigned++
		default:
			view.Unassigned = append(view.Unassigned, entry)
		}
		view.Roster = append(view.Roster, entry)
	}

	view.AverageTeamSize = float64(assigned) / float64(teamCount)

	return view, nil
}
