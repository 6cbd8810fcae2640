package verify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/gamewarden/internal/db"
	"github.com/wardenlabs/gamewarden/internal/store"
)

func setup(t *testing.T) (*store.Store, *Service) {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	st := store.New(sqlDB)
	require.NoError(t, st.EnsureGuild(context.Background(), "g1"))
	return st, New(st, st, zerolog.Nop())
}

func TestCreateGeneratesReadableCode(t *testing.T) {
	_, svc := setup(t)

	ch, err := svc.Create(context.Background(), "g1", "u1", store.GameEvrima, "")
	require.NoError(t, err)
	assert.Len(t, ch.Code, codeLength)
	for _, r := range ch.Code {
		assert.Contains(t, codeAlphabet, string(r))
	}
	assert.Equal(t, store.ChallengePending, ch.State)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), ch.ExpiresAt, time.Minute)
}

func TestCreateSupersedesPending(t *testing.T) {
	st, svc := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "")
	require.NoError(t, err)

	_, err = st.GetChallengeByCode(ctx, "g1", first.Code)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetChallengeByCode(ctx, "g1", second.Code)
	assert.NoError(t, err)
}

func TestConsumeFirstResponderWins(t *testing.T) {
	st, svc := setup(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "")
	require.NoError(t, err)

	got, err := svc.Consume(ctx, "g1", ch.Code, "76561198012345678", "Raptor")
	require.NoError(t, err)
	assert.Equal(t, store.ChallengeVerified, got.State)
	assert.Equal(t, "76561198012345678", got.VerifiedPlayerID)

	player, err := st.GetPlayer(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "76561198012345678", player.SteamID)
	assert.Equal(t, "Raptor", player.PlayerName)

	// The settled code no longer resolves.
	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198099999999", "Other")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeTargetMismatch(t *testing.T) {
	st, svc := setup(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "76561198012345678")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198000000001", "Impostor")
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198000000001", "Impostor")
	assert.ErrorIs(t, err, ErrMismatch)

	// Third mismatch spends the budget and fails the challenge for good.
	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198000000001", "Impostor")
	assert.ErrorIs(t, err, ErrNoAttempts)

	got, err := st.GetChallenge(ctx, "g1", ch.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ChallengeFailed, got.State)

	// Even the right identity cannot revive a failed challenge.
	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198012345678", "Real")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeMatchWithinBudget(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "76561198012345678")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198000000001", "Impostor")
	assert.ErrorIs(t, err, ErrMismatch)

	got, err := svc.Consume(ctx, "g1", ch.Code, "76561198012345678", "Real")
	require.NoError(t, err)
	assert.Equal(t, store.ChallengeVerified, got.State)
}

func TestConsumeLazyExpiry(t *testing.T) {
	st, svc := setup(t)
	ctx := context.Background()

	ch, err := svc.Create(ctx, "g1", "u1", store.GameEvrima, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err = svc.Consume(ctx, "g1", ch.Code, "76561198012345678", "Late")
	assert.ErrorIs(t, err, ErrExpired)

	got, err := st.GetChallenge(ctx, "g1", ch.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ChallengeExpired, got.State)
}

func TestConsumeUnknownCode(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.Consume(context.Background(), "g1", "NOPE42", "76561198012345678", "X")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
