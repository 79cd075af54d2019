//go:build integration

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/yakoovad/squad-roster/internal/db"
	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
	"github.com/yakoovad/squad-roster/internal/service"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17",
		postgres.WithDatabase("roster_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	require.NoError(t, db.Migrate(ctx, pool))
	// Applying twice must be harmless.
	require.NoError(t, db.Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		require.NoError(t, container.Terminate(ctx))
	})

	return pool
}

func seedSession(t *testing.T, pool *pgxpool.Pool, id string, maxParticipants, teamCount int, users ...string) {
	t.Helper()
	ctx := context.Background()

	for _, u := range append([]string{"owner"}, users...) {
		_, err := pool.Exec(ctx, `INSERT INTO users (id, username) VALUES ($1, $2) ON CONFLICT DO NOTHING`, u, "user "+u)
		require.NoError(t, err)
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO sessions (id, name, max_participants, team_count, team_names, created_by)
		 VALUES ($1, $2, $3, $4, $5, 'owner')`,
		id, "Session "+id, maxParticipants, teamCount, []string{"Reds", "Blues"})
	require.NoError(t, err)
}

func TestPgxRepositories(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	seedSession(t, pool, "s1", 8, 2, "a", "b", "c")

	sessions := repository.NewPgxSessionRepository(pool)
	participations := repository.NewPgxParticipationRepository(pool)
	lineups := repository.NewPgxLineupRepository(pool)
	users := repository.NewPgxUserRepository(pool)

	t.Run("success: session lookup", func(t *testing.T) {
		s, err := sessions.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 8, s.MaxParticipants)
		assert.Equal(t, []string{"Reds", "Blues"}, s.TeamNames)

		_, err = sessions.Get(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("success: editor set is replaced", func(t *testing.T) {
		require.NoError(t, sessions.ReplaceEditors(ctx, "s1", []string{"a", "b"}))
		require.NoError(t, sessions.ReplaceEditors(ctx, "s1", []string{"c"}))

		editors, err := sessions.ListEditors(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, editors)

		assert.ErrorIs(t, sessions.ReplaceEditors(ctx, "s1", []string{"nobody"}), repository.ErrNotFound)
	})

	t.Run("success: participation lifecycle", func(t *testing.T) {
		gk := "GK"
		team := 1
		first := &repository.Participation{SessionID: "s1", UserID: "a", Status: model.StatusRegistered, Position: &gk, TeamNo: &team}
		require.NoError(t, participations.Create(ctx, first))
		assert.NotEmpty(t, first.ID)
		assert.NotZero(t, first.Seq)

		second := &repository.Participation{SessionID: "s1", UserID: "b", Status: model.StatusWaitlist}
		require.NoError(t, participations.Create(ctx, second))

		err := participations.Create(ctx, &repository.Participation{SessionID: "s1", UserID: "a", Status: model.StatusRegistered})
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)

		list, err := participations.ListBySession(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].UserID)
		assert.Equal(t, "b", list[1].UserID)

		registered := model.StatusRegistered
		empty := ""
		zero := 0
		updated, err := participations.Patch(ctx, &repository.ParticipationPatch{
			ID:       first.ID,
			Status:   &registered,
			Position: &empty,
			TeamNo:   &zero,
		})
		require.NoError(t, err)
		assert.Nil(t, updated.Position)
		assert.Nil(t, updated.TeamNo)

		_, err = participations.Patch(ctx, &repository.ParticipationPatch{ID: first.ID})
		assert.ErrorIs(t, err, repository.ErrEmptyPatch)

		require.NoError(t, participations.Delete(ctx, second.ID))
		assert.ErrorIs(t, participations.Delete(ctx, second.ID), repository.ErrNotFound)

		_, err = participations.GetByUser(ctx, "s1", "b")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("success: lineup marker and slots", func(t *testing.T) {
		created, err := lineups.Create(ctx, "s1", service.LineupSchemaVersion)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = lineups.Create(ctx, "s1", service.LineupSchemaVersion)
		require.NoError(t, err)
		assert.False(t, created)

		exists, err := lineups.Exists(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, lineups.SaveFormation(ctx, &repository.LineupFormation{SessionID: "s1", TeamNo: 1, Name: "4-4-2"}))
		require.NoError(t, lineups.SaveFormation(ctx, &repository.LineupFormation{SessionID: "s1", TeamNo: 1, Name: "3-5-2"}))

		formations, err := lineups.ListFormations(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, formations, 1)
		assert.Equal(t, "3-5-2", formations[0].Name)

		require.NoError(t, lineups.ReplaceTeamSlots(ctx, "s1", 1, []*repository.LineupSlot{{SlotKey: "GK", UserID: "a"}}))

		err = lineups.ReplaceTeamSlots(ctx, "s1", 2, []*repository.LineupSlot{{SlotKey: "GK", UserID: "c"}})
		assert.ErrorIs(t, err, repository.ErrNotFound, "slots must reference a participation")

		require.NoError(t, lineups.DeleteUserSlots(ctx, "s1", "a"))
		slots, err := lineups.ListSlots(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("success: user profiles", func(t *testing.T) {
		profiles, err := users.GetProfiles(ctx, []string{"a", "c", "nobody"})
		require.NoError(t, err)
		assert.Len(t, profiles, 2)
	})
}

func TestConcurrentRegistrationRespectsCapacity(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	ids := []string{"u0", "u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8", "u9"}
	seedSession(t, pool, "s2", 4, 2, ids...)

	registration := service.NewRegistrationService(db.NewPgxTransactor(pool)).
		WithSessionRepo(repository.NewPgxSessionRepository(pool)).
		WithParticipationRepo(repository.NewPgxParticipationRepository(pool)).
		WithLineupRepo(repository.NewPgxLineupRepository(pool))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registration.Register(ctx, &model.Registration{SessionID: "s2", UserID: id})
			assert.Nil(t, err)
		}()
	}
	wg.Wait()

	list, err := repository.NewPgxParticipationRepository(pool).ListBySession(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, list, len(ids))

	active := 0
	for _, p := range list {
		if p.Status.IsActive() {
			active++
		} else {
			assert.Nil(t, p.Position)
			assert.Nil(t, p.TeamNo)
		}
	}
	assert.Equal(t, 4, active)
}

func TestConcurrentRegistrationRespectsPositionsAndTeams(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	keepers := []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7"}
	outfield := []string{"o0", "o1", "o2", "o3", "o4", "o5", "o6", "o7"}
	seedSession(t, pool, "s3", 10, 2, append(keepers, outfield...)...)

	registration := service.NewRegistrationService(db.NewPgxTransactor(pool)).
		WithSessionRepo(repository.NewPgxSessionRepository(pool)).
		WithParticipationRepo(repository.NewPgxParticipationRepository(pool)).
		WithLineupRepo(repository.NewPgxLineupRepository(pool))

	race := func(reqs []*model.Registration) (ok, conflicts int) {
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, req := range reqs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := registration.Register(ctx, req)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case err.Code == service.ErrorCodeConflict:
					conflicts++
				default:
					t.Errorf("unexpected error for %s: %v", req.UserID, err)
				}
			}()
		}
		wg.Wait()
		return ok, conflicts
	}

	// Everyone wants the same position in team 1.
	var sameSlot []*model.Registration
	for _, id := range keepers {
		sameSlot = append(sameSlot, &model.Registration{SessionID: "s3", UserID: id, TeamNo: 1, Position: "gk"})
	}
	ok, conflicts := race(sameSlot)
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(keepers)-1, conflicts)

	// Distinct positions, but team 2 only holds ceil(10/2) members.
	var sameTeam []*model.Registration
	for i, id := range outfield {
		sameTeam = append(sameTeam, &model.Registration{SessionID: "s3", UserID: id, TeamNo: 2, Position: "P" + string(rune('0'+i))})
	}
	ok, conflicts = race(sameTeam)
	assert.Equal(t, 5, ok)
	assert.Equal(t, len(outfield)-5, conflicts)

	list, err := repository.NewPgxParticipationRepository(pool).ListBySession(ctx, "s3")
	require.NoError(t, err)
	require.Len(t, list, 6)

	perTeam := map[int]int{}
	positions := map[int]map[string]int{}
	for _, p := range list {
		require.NotNil(t, p.TeamNo)
		perTeam[*p.TeamNo]++
		if positions[*p.TeamNo] == nil {
			positions[*p.TeamNo] = map[string]int{}
		}
		require.NotNil(t, p.Position)
		positions[*p.TeamNo][*p.Position]++
	}
	assert.Equal(t, map[int]int{1: 1, 2: 5}, perTeam)
	assert.Equal(t, map[string]int{"gk": 1}, positions[1])
	for key, n := range positions[2] {
		assert.Equal(t, 1, n, key)
	}
}
