package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
)

type memState struct {
	sessions       map[string]*repository.Session
	editors        map[string][]string
	users          map[string]*repository.User
	participations []*repository.Participation
	lineups        map[string]int
	formations     []*repository.LineupFormation
	slots          []*repository.LineupSlot
	seq            int64
}

func (s *memState) clone() *memState {
	c := &memState{
		sessions: make(map[string]*repository.Session, len(s.sessions)),
		editors:  make(map[string][]string, len(s.editors)),
		users:    s.users,
		lineups:  make(map[string]int, len(s.lineups)),
		seq:      s.seq,
	}
	for k, v := range s.sessions {
		cp := *v
		c.sessions[k] = &cp
	}
	for k, v := range s.editors {
		c.editors[k] = slices.Clone(v)
	}
	for k, v := range s.lineups {
		c.lineups[k] = v
	}
	for _, p := range s.participations {
		c.participations = append(c.participations, copyParticipation(p))
	}
	for _, f := range s.formations {
		cp := *f
		c.formations = append(c.formations, &cp)
	}
	for _, sl := range s.slots {
		cp := *sl
		c.slots = append(c.slots, &cp)
	}
	return c
}

func copyParticipation(p *repository.Participation) *repository.Participation {
	cp := *p
	if p.Position != nil {
		pos := *p.Position
		cp.Position = &pos
	}
	if p.TeamNo != nil {
		team := *p.TeamNo
		cp.TeamNo = &team
	}
	return &cp
}

// memStore is an in-memory roster ledger. Transactions are serialized by txMu and roll back
// to a snapshot when fn fails.
type memStore struct {
	txMu  sync.Mutex
	state *memState
	start time.Time

	// failOn makes the named repository method return the error.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			sessions: map[string]*repository.Session{},
			editors:  map[string][]string{},
			users:    map[string]*repository.User{},
			lineups:  map[string]int{},
		},
		start:  time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (m *memStore) fail(method string) error {
	return m.failOn[method]
}

func (m *memStore) addSession(id string, maxParticipants, teamCount int, createdBy string) {
	m.state.sessions[id] = &repository.Session{
		ID:              id,
		Name:            "Session " + id,
		MaxParticipants: maxParticipants,
		TeamCount:       teamCount,
		CreatedBy:       createdBy,
	}
}

func (m *memStore) addUser(id string) {
	m.state.users[id] = &repository.User{ID: id, Username: "user-" + id}
}

// seed inserts a participation directly, bypassing registration rules.
func (m *memStore) seed(sessionID, userID string, status model.Status, position string, teamNo int) {
	p := &repository.Participation{
		SessionID: sessionID,
		UserID:    userID,
		Status:    status,
		Position:  nullableString(position),
		TeamNo:    nullableTeam(teamNo),
	}
	if err := m.Create(context.Background(), p); err != nil {
		panic(err)
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTeam(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx); err != nil {
		m.state = snapshot
		return fmt.Errorf("transaction function failed: %w", err)
	}
	return nil
}

func (m *memStore) Get(_ context.Context, sessionID string) (*repository.Session, error) {
	if err := m.fail("Get"); err != nil {
		return nil, err
	}
	s, ok := m.state.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Lock(ctx context.Context, sessionID string) (*repository.Session, error) {
	if err := m.fail("Lock"); err != nil {
		return nil, err
	}
	return m.Get(ctx, sessionID)
}

func (m *memStore) ListEditors(_ context.Context, sessionID string) ([]string, error) {
	if err := m.fail("ListEditors"); err != nil {
		return nil, err
	}
	return slices.Clone(m.state.editors[sessionID]), nil
}

func (m *memStore) ReplaceEditors(_ context.Context, sessionID string, userIDs []string) error {
	if err := m.fail("ReplaceEditors"); err != nil {
		return err
	}
	for _, id := range userIDs {
		if _, ok := m.state.users[id]; !ok {
			return repository.ErrNotFound
		}
	}
	m.state.editors[sessionID] = slices.Clone(userIDs)
	return nil
}

func (m *memStore) Create(_ context.Context, p *repository.Participation) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	if _, ok := m.state.sessions[p.SessionID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range m.state.participations {
		if existing.SessionID == p.SessionID && existing.UserID == p.UserID {
			return repository.ErrAlreadyExists
		}
	}

	m.state.seq++
	if p.ID == "" {
		p.ID = fmt.Sprintf("p-%d", m.state.seq)
	}
	p.Seq = m.state.seq
	p.CreatedAt = m.start.Add(time.Duration(m.state.seq) * time.Minute)
	m.state.participations = append(m.state.participations, copyParticipation(p))
	return nil
}

func (m *memStore) GetByUser(_ context.Context, sessionID, userID string) (*repository.Participation, error) {
	if err := m.fail("GetByUser"); err != nil {
		return nil, err
	}
	for _, p := range m.state.participations {
		if p.SessionID == sessionID && p.UserID == userID {
			return copyParticipation(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]*repository.Participation, error) {
	if err := m.fail("ListBySession"); err != nil {
		return nil, err
	}
	var out []*repository.Participation
	for _, p := range m.state.participations {
		if p.SessionID == sessionID {
			out = append(out, copyParticipation(p))
		}
	}
	return out, nil
}

func (m *memStore) Patch(_ context.Context, patch *repository.ParticipationPatch) (*repository.Participation, error) {
	if err := m.fail("Patch"); err != nil {
		return nil, err
	}
	for _, p := range m.state.participations {
		if p.ID != patch.ID {
			continue
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.Position != nil {
			p.Position = nullableString(*patch.Position)
		}
		if patch.TeamNo != nil {
			p.TeamNo = nullableTeam(*patch.TeamNo)
		}
		return copyParticipation(p), nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if err := m.fail("Delete"); err != nil {
		return err
	}
	for i, p := range m.state.participations {
		if p.ID == id {
			m.state.participations = slices.Delete(m.state.participations, i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) Exists(_ context.Context, sessionID string) (bool, error) {
	_, ok := m.state.lineups[sessionID]
	return ok, nil
}

func (m *memStore) createLineup(sessionID string, version int) bool {
	if _, ok := m.state.lineups[sessionID]; ok {
		return false
	}
	m.state.lineups[sessionID] = version
	return true
}

func (m *memStore) ListFormations(_ context.Context, sessionID string) ([]*repository.LineupFormation, error) {
	var out []*repository.LineupFormation
	for _, f := range m.state.formations {
		if f.SessionID == sessionID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamNo < out[j].TeamNo })
	return out, nil
}

func (m *memStore) SaveFormation(_ context.Context, f *repository.LineupFormation) error {
	if err := m.fail("SaveFormation"); err != nil {
		return err
	}
	for _, existing := range m.state.formations {
		if existing.SessionID == f.SessionID && existing.TeamNo == f.TeamNo {
			existing.Name = f.Name
			return nil
		}
	}
	cp := *f
	m.state.formations = append(m.state.formations, &cp)
	return nil
}

func (m *memStore) ListSlots(_ context.Context, sessionID string) ([]*repository.LineupSlot, error) {
	var out []*repository.LineupSlot
	for _, s := range m.state.slots {
		if s.SessionID == sessionID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamNo != out[j].TeamNo {
			return out[i].TeamNo < out[j].TeamNo
		}
		return out[i].SlotKey < out[j].SlotKey
	})
	return out, nil
}

func (m *memStore) ReplaceTeamSlots(_ context.Context, sessionID string, teamNo int, slots []*repository.LineupSlot) error {
	if err := m.fail("ReplaceTeamSlots"); err != nil {
		return err
	}
	m.state.slots = slices.DeleteFunc(m.state.slots, func(s *repository.LineupSlot) bool {
		return s.SessionID == sessionID && s.TeamNo == teamNo
	})
	for _, s := range slots {
		cp := *s
		cp.SessionID = sessionID
		cp.TeamNo = teamNo
		m.state.slots = append(m.state.slots, &cp)
	}
	return nil
}

func (m *memStore) DeleteUserSlots(_ context.Context, sessionID, userID string) error {
	if err := m.fail("DeleteUserSlots"); err != nil {
		return err
	}
	m.state.slots = slices.DeleteFunc(m.state.slots, func(s *repository.LineupSlot) bool {
		return s.SessionID == sessionID && s.UserID == userID
	})
	return nil
}

func (m *memStore) GetProfiles(_ context.Context, userIDs []string) ([]*repository.User, error) {
	if err := m.fail("GetProfiles"); err != nil {
		return nil, err
	}
	var out []*repository.User
	for _, id := range userIDs {
		if u, ok := m.state.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// record returns the stored participation of a user, or nil.
func (m *memStore) record(sessionID, userID string) *model.Participation {
	for _, p := range m.state.participations {
		if p.SessionID == sessionID && p.UserID == userID {
			return toParticipation(p)
		}
	}
	return nil
}

func (m *memStore) records(sessionID string) []*model.Participation {
	var out []*model.Participation
	for _, p := range m.state.participations {
		if p.SessionID == sessionID {
			out = append(out, toParticipation(p))
		}
	}
	return out
}

// assertInvariants checks the roster and lineup consistency rules for one session.
func assertInvariants(t *testing.T, m *memStore, sessionID string) {
	t.Helper()

	s := toSession(m.state.sessions[sessionID])
	records := m.records(sessionID)

	assert.LessOrEqual(t, countActive(records), s.MaxParticipants, "active count exceeds capacity")

	_, collision := findPositionCollision(records)
	assert.False(t, collision, "two members of one team share a position")

	active := map[string]bool{}
	for _, r := range records {
		if r.Status == model.StatusWaitlist {
			assert.Empty(t, r.Position, "waitlisted record holds a position")
			assert.Zero(t, r.TeamNo, "waitlisted record holds a team")
		}
		active[r.UserID] = r.IsActive()
	}

	type key struct {
		team int
		val  string
	}
	seenSlot, seenUser := map[key]bool{}, map[key]bool{}
	for _, sl := range m.state.slots {
		if sl.SessionID != sessionID {
			continue
		}
		assert.True(t, active[sl.UserID], "lineup slot references inactive user %s", sl.UserID)
		assert.False(t, seenSlot[key{sl.TeamNo, sl.SlotKey}], "duplicate slot key")
		assert.False(t, seenUser[key{sl.TeamNo, sl.UserID}], "duplicate slot user")
		seenSlot[key{sl.TeamNo, sl.SlotKey}] = true
		seenUser[key{sl.TeamNo, sl.UserID}] = true
	}
}

// assertTeamCapacity checks the per-team bound, which bulk overrides may legitimately exceed.
func assertTeamCapacity(t *testing.T, m *memStore, sessionID string) {
	t.Helper()

	s := toSession(m.state.sessions[sessionID])
	records := m.records(sessionID)
	for no := 1; no <= s.Teams(); no++ {
		assert.LessOrEqual(t, countTeam(records, no), s.TeamCapacity(), "team %d over capacity", no)
	}
}

func newServices(m *memStore) (*RegistrationService, *TeamService, *LineupService) {
	editors := NewEditorResolver(m)
	lineups := &memLineups{memStore: m}

	reg := NewRegistrationService(m).
		WithSessionRepo(m).
		WithParticipationRepo(m).
		WithLineupRepo(lineups)
	team := NewTeamService(m).
		WithSessionRepo(m).
		WithParticipationRepo(m).
		WithUserRepo(m).
		WithEditorResolver(editors)
	lineup := NewLineupService(m).
		WithSessionRepo(m).
		WithParticipationRepo(m).
		WithLineupRepo(lineups).
		WithEditorResolver(editors)
	return reg, team, lineup
}

// memLineups adapts memStore to LineupRepository, whose Create clashes with the ledger's Create.
type memLineups struct {
	*memStore
}

func (l *memLineups) Create(_ context.Context, sessionID string, schemaVersion int) (bool, error) {
	if err := l.fail("CreateLineup"); err != nil {
		return false, err
	}
	return l.createLineup(sessionID, schemaVersion), nil
}
