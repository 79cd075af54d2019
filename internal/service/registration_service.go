package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

type RegistrationService struct {
	tx db.Transactor

	sessions       repository.SessionRepository
	participations repository.ParticipationRepository
	lineups        repository.LineupRepository
}

func NewRegistrationService(tx db.Transactor) *RegistrationService {
	return &RegistrationService{tx: tx}
}

// Register admits the user into the session, or puts them on the waitlist when the session
// is full. Waitlisted records never keep the requested position or team.
func (r *RegistrationService) Register(ctx context.Context, req *model.Registration) (*model.Participation, *Error) {
	l := logger.FromContext(ctx).With(
		zap.String("session_id", req.SessionID),
		zap.String("user_id", req.UserID),
	)
	l.Info("registering participant", zap.Int("team_no", req.TeamNo), zap.String("position", req.Position))

	var created *model.Participation

	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		session, serr := fetchSession(txCtx, r.sessions, req.SessionID, true)
		if serr != nil {
			return serr
		}

		_, err := r.participations.GetByUser(txCtx, req.SessionID, req.UserID)
		switch {
		case err == nil:
			l.Warn("participant already registered")
			return NewError(ErrorCodeConflict, "already registered for this session")
		case !errors.Is(err, repository.ErrNotFound):
			l.Error("failed to get participation", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get participation")
		}

		records, err := listRecords(txCtx, r.participations, req.SessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		position := NormalizePosition(req.Position)
		if position != "" && req.TeamNo > 0 && HasPositionConflict(records, req.TeamNo, position, "") {
			l.Warn("position already taken", zap.String("position", position))
			return NewError(ErrorCodeConflict, "position already taken")
		}

		row := &repository.Participation{
			SessionID: req.SessionID,
			UserID:    req.UserID,
		}

		if countActive(records) >= session.MaxParticipants {
			row.Status = model.StatusWaitlist
		} else {
			if req.TeamNo < 0 || req.TeamNo > session.Teams() {
				return NewError(ErrorCodeBadRequest, "team number out of range")
			}
			if req.TeamNo > 0 && countTeam(records, req.TeamNo) >= session.TeamCapacity() {
				l.Warn("team full", zap.Int("team_no", req.TeamNo))
				return NewError(ErrorCodeConflict, "team full")
			}
			row.Status = model.StatusRegistered
			if position != "" {
				row.Position = &position
			}
			if req.TeamNo > 0 {
				teamNo := req.TeamNo
				row.TeamNo = &teamNo
			}
		}

		err = r.participations.Create(txCtx, row)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeConflict, "already registered for this session")
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "user not found")
		case err != nil:
			l.Error("failed to create participation", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create participation")
		}

		created = toParticipation(row)
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	l.Debug("participant registered", zap.String("status", string(created.Status)))

	return created, nil
}

// Unregister withdraws the user. If an active seat is freed the oldest waitlisted record is
// promoted, and if a team seat is freed the team is back-filled from unassigned members.
func (r *RegistrationService) Unregister(ctx context.Context, sessionID, userID string) (*model.WithdrawalResult, *Error) {
	l := logger.FromContext(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)
	l.Info("unregistering participant")

	res := &model.WithdrawalResult{Backfilled: []*model.Participation{}}

	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		session, serr := fetchSession(txCtx, r.sessions, sessionID, true)
		if serr != nil {
			return serr
		}

		records, err := listRecords(txCtx, r.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		removed := findByUser(records, userID)
		if removed == nil {
			return NewError(ErrorCodeNotFound, "participation not found")
		}

		if err = r.lineups.DeleteUserSlots(txCtx, sessionID, userID); err != nil {
			l.Error("failed to delete lineup slots", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete lineup slots")
		}

		err = r.participations.Delete(txCtx, removed.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "participation not found")
		case err != nil:
			l.Error("failed to delete participation", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete participation")
		}
		res.Removed = removed

		remaining := make([]*model.Participation, 0, len(records)-1)
		for _, rec := range records {
			if rec.ID != removed.ID {
				remaining = append(remaining, rec)
			}
		}

		if removed.IsActive() {
			promoted, perr := r.promoteOldest(txCtx, remaining)
			if perr != nil {
				return perr
			}
			res.Promoted = promoted
		}

		if positionScoped(removed.TeamNo) {
			backfilled, berr := r.backfillTeam(txCtx, remaining, removed.TeamNo, session.TeamCapacity())
			if berr != nil {
				return berr
			}
			res.Backfilled = backfilled
		}

		return nil
	})
	if serr := asError(err); serr != nil {
		return nil, serr
	}

	l.Debug("participant unregistered",
		zap.Bool("promoted", res.Promoted != nil),
		zap.Int("backfilled", len(res.Backfilled)))

	return res, nil
}

// promoteOldest moves the first waitlisted record into the registered state with no position or
// team. records is left untouched, so the promoted user is never a back-fill candidate.
func (r *RegistrationService) promoteOldest(ctx context.Context, records []*model.Participation) (*model.Participation, *Error) {
	var oldest *model.Participation
	for _, rec := range records {
		if rec.Status == model.StatusWaitlist {
			oldest = rec
			break
		}
	}
	if oldest == nil {
		return nil, nil
	}

	status := model.StatusRegistered
	position, teamNo := "", 0
	row, err := r.participations.Patch(ctx, &repository.ParticipationPatch{
		ID:       oldest.ID,
		Status:   &status,
		Position: &position,
		TeamNo:   &teamNo,
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to promote waitlisted participant",
			zap.String("user_id", oldest.UserID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to promote waitlisted participant")
	}

	return toParticipation(row), nil
}

func (r *RegistrationService) backfillTeam(ctx context.Context, records []*model.Participation, teamNo, capacity int) ([]*model.Participation, *Error) {
	placed := planBackfill(records, teamNo, capacity)

	res := make([]*model.Participation, 0, len(placed))
	for _, rec := range placed {
		team := teamNo
		row, err := r.participations.Patch(ctx, &repository.ParticipationPatch{
			ID:     rec.ID,
			TeamNo: &team,
		})
		if err != nil {
			logger.FromContext(ctx).Error("failed to back-fill team",
				zap.String("user_id", rec.UserID), zap.Int("team_no", teamNo), zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to back-fill team")
		}
		res = append(res, toParticipation(row))
	}
	return res, nil
}

// planBackfill picks, in FIFO order, the active unassigned records that fill teamNo up to
// capacity. Candidates whose position is already held in the team are skipped.
func planBackfill(records []*model.Participation, teamNo, capacity int) []*model.Participation {
	size := 0
	taken := make(map[string]struct{})
	for _, rec := range records {
		if rec.IsActive() && rec.TeamNo == teamNo {
			size++
			if key := positionKey(rec.Position); key != "" {
				taken[key] = struct{}{}
			}
		}
	}

	var placed []*model.Participation
	for _, rec := range records {
		if size >= capacity {
			break
		}
		if !rec.IsActive() || rec.TeamNo != 0 {
			continue
		}
		if key := positionKey(rec.Position); key != "" {
			if _, ok := taken[key]; ok {
				continue
			}
			taken[key] = struct{}{}
		}
		placed = append(placed, rec)
		size++
	}
	return placed
}

// UpdateMyPosition sets or clears the caller's own position label.
func (r *RegistrationService) UpdateMyPosition(ctx context.Context, sessionID, userID, position string) (*model.Participation, *Error) {
	l := logger.FromContext(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)
	l.Info("updating own position", zap.String("position", position))

	var updated *model.Participation

	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, serr := fetchSession(txCtx, r.sessions, sessionID, true); serr != nil {
			return serr
		}

		records, err := listRecords(txCtx, r.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		rec := findByUser(records, userID)
		if rec == nil {
			return NewError(ErrorCodeNotFound, "participation not found")
		}
		if !rec.IsActive() {
			return NewError(ErrorCodeBadRequest, "waitlisted participants cannot hold a position")
		}

		normalized := NormalizePosition(position)
		if HasPositionConflict(records, rec.TeamNo, normalized, rec.ID) {
			l.Warn("position already taken", zap.String("position", normalized))
			return NewError(ErrorCodeConflict, "position already taken")
		}

		row, err := r.participations.Patch(txCtx, &repository.ParticipationPatch{
			ID:       rec.ID,
			Position: &normalized,
		})
		if err != nil {
			l.Error("failed to update position", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update position")
		}

		updated = toParticipation(row)
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	return updated, nil
}

func (r *RegistrationService) WithSessionRepo(repo repository.SessionRepository) *RegistrationService {
	r.sessions = repo
	return r
}

func (r *RegistrationService) WithParticipationRepo(repo repository.ParticipationRepository) *RegistrationService {
	r.participations = repo
	return r
}

func (r *RegistrationService) WithLineupRepo(repo repository.LineupRepository) *RegistrationService {
	r.lineups = repo
	return r
}
