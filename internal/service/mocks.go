package service

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/squad-roster/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, sessionID string) (*repository.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Session), args.Error(1)
}

func (m *MockSessionRepository) Lock(ctx context.Context, sessionID string) (*repository.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Session), args.Error(1)
}

func (m *MockSessionRepository) ListEditors(ctx context.Context, sessionID string) ([]string, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSessionRepository) ReplaceEditors(ctx context.Context, sessionID string, userIDs []string) error {
	args := m.Called(ctx, sessionID, userIDs)
	return args.Error(0)
}

type MockParticipationRepository struct {
	mock.Mock
}

func (m *MockParticipationRepository) Create(ctx context.Context, p *repository.Participation) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParticipationRepository) GetByUser(ctx context.Context, sessionID, userID string) (*repository.Participation, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Participation), args.Error(1)
}

func (m *MockParticipationRepository) ListBySession(ctx context.Context, sessionID string) ([]*repository.Participation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Participation), args.Error(1)
}

func (m *MockParticipationRepository) Patch(ctx context.Context, patch *repository.ParticipationPatch) (*repository.Participation, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Participation), args.Error(1)
}

func (m *MockParticipationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockLineupRepository struct {
	mock.Mock
}

func (m *MockLineupRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLineupRepository) Create(ctx context.Context, sessionID string, schemaVersion int) (bool, error) {
	args := m.Called(ctx, sessionID, schemaVersion)
	return args.Bool(0), args.Error(1)
}

func (m *MockLineupRepository) ListFormations(ctx context.Context, sessionID string) ([]*repository.LineupFormation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.LineupFormation), args.Error(1)
}

func (m *MockLineupRepository) SaveFormation(ctx context.Context, f *repository.LineupFormation) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockLineupRepository) ListSlots(ctx context.Context, sessionID string) ([]*repository.LineupSlot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.LineupSlot), args.Error(1)
}

func (m *MockLineupRepository) ReplaceTeamSlots(ctx context.Context, sessionID string, teamNo int, slots []*repository.LineupSlot) error {
	args := m.Called(ctx, sessionID, teamNo, slots)
	return args.Error(0)
}

func (m *MockLineupRepository) DeleteUserSlots(ctx context.Context, sessionID, userID string) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetProfiles(ctx context.Context, userIDs []string) ([]*repository.User, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.User), args.Error(1)
}
