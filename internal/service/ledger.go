package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

func toSession(s *repository.Session) *model.Session {
	return &model.Session{
		ID:                   s.ID,
		Name:                 s.Name,
		MaxParticipants:      s.MaxParticipants,
		TeamCount:            s.TeamCount,
		TeamNames:            s.TeamNames,
		RegistrationDeadline: s.RegistrationDeadline,
		CreatedBy:            s.CreatedBy,
	}
}

func toParticipation(p *repository.Participation) *model.Participation {
	res := &model.Participation{
		ID:        p.ID,
		SessionID: p.SessionID,
		UserID:    p.UserID,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
	if p.Position != nil {
		res.Position = *p.Position
	}
	if p.TeamNo != nil {
		res.TeamNo = *p.TeamNo
	}
	return res
}

// fetchSession reads the session, taking the row lock when lock is set. Every mutation locks
// the session first so that count-then-write sequences on one session run one at a time.
func fetchSession(ctx context.Context, sessions repository.SessionRepository, sessionID string, lock bool) (*model.Session, *Error) {
	l := logger.FromContext(ctx)

	get := sessions.Get
	if lock {
		get = sessions.Lock
	}

	s, err := get(ctx, sessionID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		l.Warn("session not found", zap.String("session_id", sessionID))
		return nil, NewError(ErrorCodeNotFound, "session not found")
	case err != nil:
		l.Error("failed to get session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get session")
	}
	return toSession(s), nil
}

// listRecords returns the session's participation records in FIFO order.
func listRecords(ctx context.Context, participations repository.ParticipationRepository, sessionID string) ([]*model.Participation, error) {
	rows, err := participations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	records := make([]*model.Participation, 0, len(rows))
	for _, row := range rows {
		records = append(records, toParticipation(row))
	}
	return records, nil
}

func countActive(records []*model.Participation) int {
	n := 0
	for _, r := range records {
		if r.IsActive() {
			n++
		}
	}
	return n
}

func countTeam(records []*model.Participation, teamNo int) int {
	n := 0
	for _, r := range records {
		if r.IsActive() && r.TeamNo == teamNo {
			n++
		}
	}
	return n
}

func findByUser(records []*model.Participation, userID string) *model.Participation {
	for _, r := range records {
		if r.UserID == userID {
			return r
		}
	}
	return nil
}
