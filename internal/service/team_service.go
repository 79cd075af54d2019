package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TeamService struct {
	tx db.Transactor

	sessions       repository.SessionRepository
	participations repository.ParticipationRepository
	users          repository.UserRepository
	editors        *EditorResolver

	policy model.CapacityPolicy
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx:     tx,
		policy: model.CapacityPolicyOverride,
	}
}

func (t *TeamService) GetTeams(ctx context.Context, sessionID string, caller model.Caller) (*model.TeamsView, *Error) {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID))
	l.Debug("getting teams")

	session, serr := fetchSession(ctx, t.sessions, sessionID, false)
	if serr != nil {
		return nil, serr
	}

	var (
		capability model.Capability
		records    []*model.Participation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := t.editors.Resolve(gctx, session, caller)
		capability = c
		return err
	})
	g.Go(func() error {
		r, err := listRecords(gctx, t.participations, sessionID)
		records = r
		return err
	})
	if err := g.Wait(); err != nil {
		l.Error("failed to load roster", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to load roster")
	}

	view, err := buildTeamsView(ctx, t.users, session, capability, records)
	if err != nil {
		l.Error("failed to build roster view", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to build roster view")
	}
	return view, nil
}

// UpdateTeams bulk-assigns active participants to teams. Entries for unknown or waitlisted users,
// out-of-range teams, or positions already held in the target team are skipped. Capacity is only
// checked under CapacityPolicyEnforce; otherwise the assignment is an administrative override.
func (t *TeamService) UpdateTeams(ctx context.Context, sessionID string, caller model.Caller, assignments []*model.TeamAssignment) (*model.TeamsView, *Error) {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID), zap.String("caller_id", caller.UserID))
	l.Info("updating teams", zap.Int("assignments", len(assignments)), zap.String("policy", string(t.policy)))

	session, capability, serr := t.authorize(ctx, sessionID, caller)
	if serr != nil {
		return nil, serr
	}
	if len(assignments) == 0 {
		return nil, NewError(ErrorCodeBadRequest, "no team assignments given")
	}

	var records []*model.Participation

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		locked, serr := fetchSession(txCtx, t.sessions, sessionID, true)
		if serr != nil {
			return serr
		}
		session = locked

		var err error
		records, err = listRecords(txCtx, t.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		changed := make(map[string]*model.Participation)
		for _, a := range assignments {
			rec := findByUser(records, a.UserID)
			if rec == nil || !rec.IsActive() {
				l.Debug("skipping assignment for inactive participant", zap.String("user_id", a.UserID))
				continue
			}
			if !session.HasTeam(a.TeamNo) {
				l.Debug("skipping assignment to unknown team", zap.String("user_id", a.UserID), zap.Int("team_no", a.TeamNo))
				continue
			}
			if rec.TeamNo == a.TeamNo {
				continue
			}
			if HasPositionConflict(records, a.TeamNo, rec.Position, rec.ID) {
				l.Debug("skipping assignment with taken position", zap.String("user_id", a.UserID), zap.Int("team_no", a.TeamNo))
				continue
			}
			if t.policy == model.CapacityPolicyEnforce && countTeam(records, a.TeamNo) >= session.TeamCapacity() {
				l.Warn("team full", zap.Int("team_no", a.TeamNo))
				return NewError(ErrorCodeConflict, "team full")
			}

			rec.TeamNo = a.TeamNo
			changed[rec.ID] = rec
		}

		for _, rec := range records {
			if _, ok := changed[rec.ID]; !ok {
				continue
			}
			teamNo := rec.TeamNo
			if _, err = t.participations.Patch(txCtx, &repository.ParticipationPatch{
				ID:     rec.ID,
				TeamNo: &teamNo,
			}); err != nil {
				l.Error("failed to assign team", zap.String("user_id", rec.UserID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to assign team")
			}
		}

		l.Debug("teams updated", zap.Int("changed", len(changed)))
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	view, err := buildTeamsView(ctx, t.users, session, capability, records)
	if err != nil {
		l.Error("failed to build roster view", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to build roster view")
	}
	return view, nil
}

// UpdatePositions sets the positions of several participants at once. Uniqueness is checked on
// the state after the whole batch is applied, so two members may swap labels in one call.
func (t *TeamService) UpdatePositions(ctx context.Context, sessionID string, caller model.Caller, items []*model.PositionAssignment) *Error {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID), zap.String("caller_id", caller.UserID))
	l.Info("updating positions", zap.Int("items", len(items)))

	session, _, serr := t.authorize(ctx, sessionID, caller)
	if serr != nil {
		return serr
	}
	if len(items) == 0 {
		return NewError(ErrorCodeBadRequest, "no positions given")
	}
	if len(items) > session.MaxParticipants {
		return NewError(ErrorCodeBadRequest, "too many positions in one batch")
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.UserID]; ok {
			return NewError(ErrorCodeBadRequest, "duplicate user in positions batch")
		}
		seen[item.UserID] = struct{}{}
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, serr := fetchSession(txCtx, t.sessions, sessionID, true); serr != nil {
			return serr
		}

		records, err := listRecords(txCtx, t.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		changed := make([]*model.Participation, 0, len(items))
		for _, item := range items {
			rec := findByUser(records, item.UserID)
			if rec == nil || !rec.IsActive() {
				continue
			}
			position := NormalizePosition(item.Position)
			if rec.Position == position {
				continue
			}
			rec.Position = position
			changed = append(changed, rec)
		}

		if position, ok := findPositionCollision(records); ok {
			l.Warn("position already taken", zap.String("position", position))
			return NewError(ErrorCodeConflict, "position already taken: "+position)
		}

		for _, rec := range changed {
			position := rec.Position
			if _, err = t.participations.Patch(txCtx, &repository.ParticipationPatch{
				ID:       rec.ID,
				Position: &position,
			}); err != nil {
				l.Error("failed to update position", zap.String("user_id", rec.UserID), zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to update position")
			}
		}
		return nil
	})

	return asError(err)
}

// MarkAttendance moves an active participant between registered, present and late.
func (t *TeamService) MarkAttendance(ctx context.Context, sessionID string, caller model.Caller, userID string, status model.Status) (*model.Participation, *Error) {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID), zap.String("user_id", userID))
	l.Info("marking attendance", zap.String("status", string(status)))

	if !status.Valid() {
		return nil, NewError(ErrorCodeBadRequest, "unknown status "+string(status))
	}
	if !status.IsActive() {
		return nil, NewError(ErrorCodeBadRequest, "attendance status must be registered, present or late")
	}

	if _, _, serr := t.authorize(ctx, sessionID, caller); serr != nil {
		return nil, serr
	}

	var updated *model.Participation

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, serr := fetchSession(txCtx, t.sessions, sessionID, true); serr != nil {
			return serr
		}

		rec, err := t.participations.GetByUser(txCtx, sessionID, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "participation not found")
		case err != nil:
			l.Error("failed to get participation", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get participation")
		}

		if !rec.Status.IsActive() {
			return NewError(ErrorCodeBadRequest, "waitlisted participants cannot be marked")
		}

		row, err := t.participations.Patch(txCtx, &repository.ParticipationPatch{
			ID:     rec.ID,
			Status: &status,
		})
		if err != nil {
			l.Error("failed to update attendance", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update attendance")
		}

		updated = toParticipation(row)
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	return updated, nil
}

// SetEditors replaces the designated co-editors. Only administrators and the creator may do it.
func (t *TeamService) SetEditors(ctx context.Context, sessionID string, caller model.Caller, userIDs []string) ([]string, *Error) {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID), zap.String("caller_id", caller.UserID))
	l.Info("setting editors", zap.Strings("user_ids", userIDs))

	session, serr := fetchSession(ctx, t.sessions, sessionID, false)
	if serr != nil {
		return nil, serr
	}

	capability, err := t.editors.Resolve(ctx, session, caller)
	if err != nil {
		l.Error("failed to resolve capability", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to resolve capability")
	}
	if !capability.CanManageEditors() {
		return nil, NewError(ErrorCodeForbidden, "only the creator or an administrator can change editors")
	}

	ids := make([]string, 0, len(userIDs))
	for _, id := range NormalizeEditorIDs(userIDs) {
		if id != session.CreatedBy {
			ids = append(ids, id)
		}
	}

	err = t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, serr := fetchSession(txCtx, t.sessions, sessionID, true); serr != nil {
			return serr
		}

		err := t.sessions.ReplaceEditors(txCtx, sessionID, ids)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeBadRequest, "unknown editor user")
		case err != nil:
			l.Error("failed to replace editors", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to replace editors")
		}
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	return ids, nil
}

// authorize loads the session and requires editor capability.
func (t *TeamService) authorize(ctx context.Context, sessionID string, caller model.Caller) (*model.Session, model.Capability, *Error) {
	session, serr := fetchSession(ctx, t.sessions, sessionID, false)
	if serr != nil {
		return nil, 0, serr
	}

	capability, err := t.editors.Resolve(ctx, session, caller)
	if err != nil {
		logger.FromContext(ctx).Error("failed to resolve capability", zap.String("session_id", sessionID), zap.Error(err))
		return nil, 0, NewError(ErrorCodeUnspecified, "failed to resolve capability")
	}
	if !capability.CanEdit() {
		return nil, 0, NewError(ErrorCodeForbidden, "editor capability required")
	}
	return session, capability, nil
}

func (t *TeamService) WithSessionRepo(r repository.SessionRepository) *TeamService {
	t.sessions = r
	return t
}

func (t *TeamService) WithParticipationRepo(r repository.ParticipationRepository) *TeamService {
	t.participations = r
	return t
}

func (t *TeamService) WithUserRepo(r repository.UserRepository) *TeamService {
	t.users = r
	return t
}

func (t *TeamService) WithEditorResolver(r *EditorResolver) *TeamService {
	t.editors = r
	return t
}

func (t *TeamService) WithCapacityPolicy(p model.CapacityPolicy) *TeamService {
	t.policy = p
	return t
}
