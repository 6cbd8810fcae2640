package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/db"
	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	st := store.New(sqlDB)
	require.NoError(t, st.EnsureGuild(context.Background(), "g1"))
	return st
}

func addServer(t *testing.T, st *store.Store) *store.GameServer {
	t.Helper()
	srv := &store.GameServer{
		GuildID:  "g1",
		Name:     "main",
		Protocol: store.ProtocolEvrima,
		Host:     "10.0.0.1",
		Port:     8888,
		Password: "secret",
	}
	require.NoError(t, st.AddServer(context.Background(), srv))
	return srv
}

func testCfg() config.RCONConfig {
	return config.RCONConfig{
		CommandTimeout:  time.Second,
		DialTimeout:     time.Second,
		BackoffBase:     time.Millisecond,
		BackoffCap:      5 * time.Millisecond,
		MaxDialFailures: 3,
	}
}

type fakeConn struct {
	mu       sync.Mutex
	inFlight int32
	overlap  bool
	execErr  error
	commands []rcon.Command
}

func (c *fakeConn) Execute(ctx context.Context, cmd rcon.Command) (string, error) {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		c.overlap = true
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)

	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	err := c.execErr
	c.execErr = nil
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "ok: " + string(cmd.Kind), nil
}

func (c *fakeConn) Close() error { return nil }

func fakeDial(conn *fakeConn, dials *int32, errs ...error) DialFunc {
	var calls int32
	return func(ctx context.Context, p rcon.Protocol, host string, port int, password string, timeout time.Duration) (rcon.Conn, error) {
		n := atomic.AddInt32(&calls, 1)
		if dials != nil {
			atomic.AddInt32(dials, 1)
		}
		if int(n) <= len(errs) && errs[n-1] != nil {
			return nil, errs[n-1]
		}
		return conn, nil
	}
}

func TestExecuteSuccess(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	conn := &fakeConn{}
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(conn, nil))
	defer m.Close()

	out, err := m.Execute(context.Background(), "g1", srv.ID, "mod#1", rcon.Kick("76561198012345678", "spam"))
	require.NoError(t, err)
	assert.Equal(t, "ok: kick", out)

	recs, err := st.ListAudit(context.Background(), "g1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kick", recs[0].Command)
	assert.Equal(t, "76561198012345678", recs[0].TargetID)
	assert.Equal(t, "mod#1", recs[0].ExecutedBy)
	assert.True(t, recs[0].Success)

	got, err := st.GetServer(context.Background(), "g1", srv.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastConnectedAt)
}

func TestExecuteSerializesPerServer(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	conn := &fakeConn{}
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(conn, nil))
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, conn.overlap, "commands overlapped on one connection")
	assert.Len(t, conn.commands, 8)
}

func TestRepeatedDialFailureDeactivates(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	dialErr := errors.New("connection refused")
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(nil, nil, dialErr, dialErr, dialErr))
	defer m.Close()

	_, err := m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
	require.ErrorIs(t, err, ErrServerInactive)

	got, err := st.GetServer(context.Background(), "g1", srv.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Contains(t, got.LastError, "connection failures")

	// Commands after deactivation are rejected without dialing.
	_, err = m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
	assert.ErrorIs(t, err, ErrServerInactive)

	recs, err := st.ListAudit(context.Background(), "g1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
}

func TestDialRecoversWithinLimit(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	conn := &fakeConn{}
	dialErr := errors.New("connection refused")
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(conn, nil, dialErr, dialErr))
	defer m.Close()

	out, err := m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
	require.NoError(t, err)
	assert.Equal(t, "ok: save", out)

	got, err := st.GetServer(context.Background(), "g1", srv.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.LastError)
}

func TestCommandErrorRedials(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	conn := &fakeConn{execErr: rcon.ErrCommandTimeout}
	var dials int32
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(conn, &dials))
	defer m.Close()

	_, err := m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
	require.ErrorIs(t, err, rcon.ErrCommandTimeout)

	out, err := m.Execute(context.Background(), "g1", srv.ID, "t", rcon.Save())
	require.NoError(t, err)
	assert.Equal(t, "ok: save", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
}

func TestExecuteDefault(t *testing.T) {
	st := newTestStore(t)
	srv := addServer(t, st)
	second := &store.GameServer{GuildID: "g1", Name: "overflow", Protocol: store.ProtocolSource, Host: "10.0.0.2", Port: 7779, Password: "x"}
	require.NoError(t, st.AddServer(context.Background(), second))

	conn := &fakeConn{}
	m := New(st, zerolog.Nop(), testCfg(), fakeDial(conn, nil))
	defer m.Close()

	def, err := m.DefaultServer(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, srv.ID, def.ID)

	_, err = m.ExecuteDefault(context.Background(), "g1", "t", rcon.Announce("restart soon"))
	require.NoError(t, err)
}
