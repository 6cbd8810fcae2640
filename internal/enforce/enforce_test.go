package enforce

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/gamewarden/internal/db"
	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

type issued struct {
	serverID string
	cmd      rcon.Command
}

type fakeRunner struct {
	mu   sync.Mutex
	cmds []issued
	fail bool
}

func (r *fakeRunner) Execute(ctx context.Context, guildID, serverID, executedBy string, cmd rcon.Command) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return "", rcon.ErrCommandTimeout
	}
	r.cmds = append(r.cmds, issued{serverID: serverID, cmd: cmd})
	return "ok", nil
}

type fakeLedger struct {
	bans []string
}

func (l *fakeLedger) RecordBan(ctx context.Context, guildID, userID, gameID, reason string) error {
	l.bans = append(l.bans, gameID)
	return nil
}

type fixedFlags bool

func (f fixedFlags) AutoBanAllowed(ctx context.Context, guildID string) bool { return bool(f) }

func setup(t *testing.T) (*store.Store, *fakeRunner, *Engine, *fakeLedger) {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	st := store.New(sqlDB)
	ctx := context.Background()

	require.NoError(t, st.EnsureGuild(ctx, "g1"))
	require.NoError(t, st.AddServer(ctx, &store.GameServer{
		GuildID: "g1", Name: "evrima", Protocol: store.ProtocolEvrima,
		Host: "10.0.0.1", Port: 8888, Password: "x",
	}))
	require.NoError(t, st.AddServer(ctx, &store.GameServer{
		GuildID: "g1", Name: "pot", Protocol: store.ProtocolSource,
		Host: "10.0.0.2", Port: 7779, Password: "x",
	}))
	require.NoError(t, st.LinkPlayer(ctx, "g1", "u1", store.GameEvrima, "76561198012345678", "Subject"))

	require.NoError(t, st.SaveRule(ctx, &store.EnforcementRule{
		GuildID:           "g1",
		AutoKickEnabled:   true,
		AutoKickThreshold: 3,
		AutoBanEnabled:    true,
		AutoBanThreshold:  5,
	}))

	runner := &fakeRunner{}
	ledger := &fakeLedger{}
	eng := New(st, runner, ledger, fixedFlags(true), zerolog.Nop())
	return st, runner, eng, ledger
}

func TestBelowThresholdNoAction(t *testing.T) {
	_, runner, eng, _ := setup(t)

	out, err := eng.HandleStrikeChange(context.Background(), "g1", "u1", 2)
	require.NoError(t, err)
	assert.False(t, out.Kicked)
	assert.False(t, out.Banned)
	assert.Empty(t, runner.cmds)
}

func TestKickAtThreshold(t *testing.T) {
	_, runner, eng, _ := setup(t)

	out, err := eng.HandleStrikeChange(context.Background(), "g1", "u1", 3)
	require.NoError(t, err)
	assert.True(t, out.Kicked)
	assert.False(t, out.Banned)

	// Only the Evrima server carries the subject's linked identity.
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, rcon.CmdKick, runner.cmds[0].cmd.Kind)
	assert.Equal(t, "76561198012345678", runner.cmds[0].cmd.Target)
}

func TestDuplicateNotificationActsOnce(t *testing.T) {
	_, runner, eng, _ := setup(t)
	ctx := context.Background()

	out, err := eng.HandleStrikeChange(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	assert.True(t, out.Kicked)

	out, err = eng.HandleStrikeChange(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	assert.False(t, out.Kicked)
	assert.Len(t, runner.cmds, 1)
}

func TestBanCrossesBothThresholds(t *testing.T) {
	_, runner, eng, ledger := setup(t)

	out, err := eng.HandleStrikeChange(context.Background(), "g1", "u1", 5)
	require.NoError(t, err)
	assert.True(t, out.Kicked)
	assert.True(t, out.Banned)

	require.Len(t, runner.cmds, 2)
	assert.Equal(t, rcon.CmdKick, runner.cmds[0].cmd.Kind)
	assert.Equal(t, rcon.CmdBan, runner.cmds[1].cmd.Kind)
	assert.Equal(t, []string{"76561198012345678"}, ledger.bans)
}

func TestBanGatedByFeatureFlag(t *testing.T) {
	st, runner, _, ledger := setup(t)
	eng := New(st, runner, ledger, fixedFlags(false), zerolog.Nop())

	out, err := eng.HandleStrikeChange(context.Background(), "g1", "u1", 5)
	require.NoError(t, err)
	assert.True(t, out.Kicked)
	assert.False(t, out.Banned)

	// The ban mark stays unclaimed, so enabling the flag later still bans.
	eng = New(st, runner, ledger, fixedFlags(true), zerolog.Nop())
	out, err = eng.HandleStrikeChange(context.Background(), "g1", "u1", 5)
	require.NoError(t, err)
	assert.True(t, out.Banned)
}

func TestCommandFailureStillMarks(t *testing.T) {
	st, runner, eng, _ := setup(t)
	runner.fail = true
	ctx := context.Background()

	out, err := eng.HandleStrikeChange(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	assert.True(t, out.Kicked)

	marked, err := st.HasActionMark(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestUnlinkedSubjectMarksWithoutCommands(t *testing.T) {
	_, runner, eng, _ := setup(t)

	out, err := eng.HandleStrikeChange(context.Background(), "g1", "nobody", 3)
	require.NoError(t, err)
	assert.True(t, out.Kicked)
	assert.Empty(t, runner.cmds)
}
