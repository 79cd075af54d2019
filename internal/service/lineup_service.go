package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/formation"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/pkg/logger"
	"go.uber.org/zap"
)

type LineupService struct {
	tx db.Transactor

	sessions       repository.SessionRepository
	participations repository.ParticipationRepository
	lineups        repository.LineupRepository
	editors        *EditorResolver

	catalog *formation.Catalog
}

func NewLineupService(tx db.Transactor) *LineupService {
	return &LineupService{
		tx:      tx,
		catalog: formation.Default(),
	}
}

// ParseTeamKey resolves a lineup team key. Letters A and B name teams 1 and 2; digits 1-4 name
// the team directly.
func ParseTeamKey(key string) (int, bool) {
	switch k := strings.ToUpper(strings.TrimSpace(key)); k {
	case "A":
		return 1, true
	case "B":
		return 2, true
	case "1", "2", "3", "4":
		n, _ := strconv.Atoi(k)
		return n, true
	default:
		return 0, false
	}
}

// GetLineup returns the formation and slot assignments of every team. Sessions smaller than
// model.MinLineupParticipants have no lineup and get an empty, non-editable view.
func (s *LineupService) GetLineup(ctx context.Context, sessionID string, caller model.Caller) (*model.LineupView, *Error) {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID))
	l.Debug("getting lineup")

	session, serr := fetchSession(ctx, s.sessions, sessionID, false)
	if serr != nil {
		return nil, serr
	}

	capability, err := s.editors.Resolve(ctx, session, caller)
	if err != nil {
		l.Error("failed to resolve capability", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to resolve capability")
	}

	view := &model.LineupView{
		CanEdit:    capability.CanEdit(),
		CanLineup:  session.LineupEnabled(),
		Formation:  map[int]string{},
		Slots:      []*model.LineupSlot{},
		Formations: []string{},
	}
	if !view.CanLineup {
		return view, nil
	}

	view.Formations = s.catalog.Names()

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		records, err := listRecords(txCtx, s.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		if err = s.ensureLineup(txCtx, session, records); err != nil {
			l.Error("failed to initialise lineup", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to initialise lineup")
		}

		formations, err := s.lineups.ListFormations(txCtx, sessionID)
		if err != nil {
			l.Error("failed to list formations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list formations")
		}

		slots, err := s.lineups.ListSlots(txCtx, sessionID)
		if err != nil {
			l.Error("failed to list lineup slots", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list lineup slots")
		}

		for no := 1; no <= session.Teams(); no++ {
			view.Formation[no] = s.catalog.DefaultName()
		}
		for _, f := range formations {
			if session.HasTeam(f.TeamNo) {
				view.Formation[f.TeamNo] = f.Name
			}
		}

		active := make(map[string]struct{}, len(records))
		for _, rec := range records {
			if rec.IsActive() {
				active[rec.UserID] = struct{}{}
			}
		}
		for _, slot := range slots {
			if _, ok := active[slot.UserID]; !ok || !session.HasTeam(slot.TeamNo) {
				continue
			}
			view.Slots = append(view.Slots, &model.LineupSlot{
				TeamNo:  slot.TeamNo,
				SlotKey: slot.SlotKey,
				UserID:  slot.UserID,
			})
		}
		return nil
	})
	if res := asError(err); res != nil {
		return nil, res
	}

	return view, nil
}

// UpdateLineup replaces one team's slots and optionally its formation. Other teams are untouched.
func (s *LineupService) UpdateLineup(ctx context.Context, sessionID string, caller model.Caller, upd *model.LineupUpdate) *Error {
	l := logger.FromContext(ctx).With(zap.String("session_id", sessionID), zap.String("caller_id", caller.UserID))
	l.Info("updating lineup", zap.String("team_key", upd.TeamKey), zap.Int("slots", len(upd.Slots)))

	session, serr := fetchSession(ctx, s.sessions, sessionID, false)
	if serr != nil {
		return serr
	}

	capability, err := s.editors.Resolve(ctx, session, caller)
	if err != nil {
		l.Error("failed to resolve capability", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to resolve capability")
	}
	if !capability.CanEdit() {
		return NewError(ErrorCodeForbidden, "editor capability required")
	}
	if !session.LineupEnabled() {
		return NewError(ErrorCodeBadRequest, "lineup is not available for this session")
	}

	teamNo, ok := ParseTeamKey(upd.TeamKey)
	if !ok || !session.HasTeam(teamNo) {
		return NewError(ErrorCodeBadRequest, "unknown team")
	}

	slotKeys := make(map[string]struct{}, len(upd.Slots))
	userIDs := make(map[string]struct{}, len(upd.Slots))
	for _, slot := range upd.Slots {
		key := strings.TrimSpace(slot.SlotKey)
		if key == "" || slot.UserID == "" {
			return NewError(ErrorCodeBadRequest, "slot key and user are required")
		}
		if _, dup := slotKeys[key]; dup {
			return NewError(ErrorCodeBadRequest, "duplicate slot key "+key)
		}
		if _, dup := userIDs[slot.UserID]; dup {
			return NewError(ErrorCodeBadRequest, "user placed in more than one slot")
		}
		slotKeys[key] = struct{}{}
		userIDs[slot.UserID] = struct{}{}
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		locked, serr := fetchSession(txCtx, s.sessions, sessionID, true)
		if serr != nil {
			return serr
		}

		records, err := listRecords(txCtx, s.participations, sessionID)
		if err != nil {
			l.Error("failed to list participations", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to list participations")
		}

		if err = s.ensureLineup(txCtx, locked, records); err != nil {
			l.Error("failed to initialise lineup", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to initialise lineup")
		}

		name, serr := s.resolveFormation(txCtx, sessionID, teamNo, upd.Formation)
		if serr != nil {
			return serr
		}

		f, _ := s.catalog.Get(name)
		teamSize := locked.TeamCapacity()

		rows := make([]*repository.LineupSlot, 0, len(upd.Slots))
		for _, slot := range upd.Slots {
			key := strings.TrimSpace(slot.SlotKey)
			if !f.HasSlot(teamSize, key) {
				return NewError(ErrorCodeBadRequest, "slot "+key+" is not part of formation "+name)
			}
			rec := findByUser(records, slot.UserID)
			if rec == nil || !rec.IsActive() {
				return NewError(ErrorCodeBadRequest, "user "+slot.UserID+" is not an active participant")
			}
			rows = append(rows, &repository.LineupSlot{
				SessionID: sessionID,
				TeamNo:    teamNo,
				SlotKey:   key,
				UserID:    slot.UserID,
			})
		}

		if err = s.lineups.ReplaceTeamSlots(txCtx, sessionID, teamNo, rows); err != nil {
			l.Error("failed to replace lineup slots", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to replace lineup slots")
		}

		if err = s.lineups.SaveFormation(txCtx, &repository.LineupFormation{
			SessionID: sessionID,
			TeamNo:    teamNo,
			Name:      name,
		}); err != nil {
			l.Error("failed to save formation", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to save formation")
		}

		l.Debug("lineup updated", zap.Int("team_no", teamNo), zap.String("formation", name))
		return nil
	})

	return asError(err)
}

// resolveFormation picks the requested formation, falling back to the team's stored one and
// then to the catalog default.
func (s *LineupService) resolveFormation(ctx context.Context, sessionID string, teamNo int, requested string) (string, *Error) {
	name := strings.TrimSpace(requested)
	if name == "" {
		formations, err := s.lineups.ListFormations(ctx, sessionID)
		if err != nil {
			logger.FromContext(ctx).Error("failed to list formations", zap.String("session_id", sessionID), zap.Error(err))
			return "", NewError(ErrorCodeUnspecified, "failed to list formations")
		}
		name = s.catalog.DefaultName()
		for _, f := range formations {
			if f.TeamNo == teamNo {
				name = f.Name
			}
		}
	}

	if _, ok := s.catalog.Get(name); !ok {
		return "", NewError(ErrorCodeBadRequest, "unknown formation "+name)
	}
	return name, nil
}

func (s *LineupService) WithSessionRepo(r repository.SessionRepository) *LineupService {
	s.sessions = r
	return s
}

func (s *LineupService) WithParticipationRepo(r repository.ParticipationRepository) *LineupService {
	s.participations = r
	return s
}

func (s *LineupService) WithLineupRepo(r repository.LineupRepository) *LineupService {
	s.lineups = r
	return s
}

func (s *LineupService) WithEditorResolver(r *EditorResolver) *LineupService {
	s.editors = r
	return s
}

func (s *LineupService) WithCatalog(c *formation.Catalog) *LineupService {
	s.catalog = c
	return s
}
