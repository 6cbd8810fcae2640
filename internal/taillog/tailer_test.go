package taillog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/db"
	"github.com/wardenlabs/gamewarden/internal/gamelog"
	"github.com/wardenlabs/gamewarden/internal/store"
)

type fakeFS struct {
	files map[string]string
}

func (f *fakeFS) Size(path string) (int64, error) {
	return int64(len(f.files[path])), nil
}

func (f *fakeFS) ReadFrom(path string, offset int64) ([]byte, error) {
	content := f.files[path]
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	return []byte(content[offset:]), nil
}

func (f *fakeFS) Close() error { return nil }

type captured struct {
	events []*gamelog.Event
}

func (c *captured) Dispatch(ctx context.Context, src *store.SftpSource, ev *gamelog.Event) {
	c.events = append(c.events, ev)
}

func setup(t *testing.T, fs *fakeFS) (*store.Store, *store.SftpSource, *Tailer, *captured) {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))
	st := store.New(sqlDB)
	ctx := context.Background()

	require.NoError(t, st.EnsureGuild(ctx, "g1"))
	src := &store.SftpSource{
		GuildID:       "g1",
		Name:          "isle",
		Game:          store.GameEvrima,
		Host:          "sftp.example.com",
		Port:          2022,
		Username:      "warden",
		Password:      "x",
		ChatLogPath:   "/logs/chat.log",
		AdminLogPath:  "/logs/admin.log",
		AdminListPath: "/config/admins.txt",
	}
	require.NoError(t, st.AddSource(ctx, src))

	sink := &captured{}
	connect := func(ctx context.Context, s *store.SftpSource, timeout time.Duration) (RemoteFS, error) {
		return fs, nil
	}
	tl := New(st, zerolog.Nop(), config.TailConfig{
		PollInterval: 30 * time.Second,
		LeaseTTL:     time.Minute,
		DialTimeout:  time.Second,
	}, connect, sink)
	return st, src, tl, sink
}

const chatLine1 = "[2024.01.22-15.30.45][LogTheIsleChatData]: [Global] Alpha [76561198000000001]: first\n"
const chatLine2 = "[2024.01.22-15.31.00][LogTheIsleChatData]: [Global] Beta [76561198000000002]: second\n"

func TestPollDispatchesNewLines(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1 + chatLine2}}
	st, src, tl, sink := setup(t, fs)

	tl.PollSource(context.Background(), src)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "first", sink.events[0].Message)
	assert.Equal(t, "second", sink.events[1].Message)

	cur, err := st.GetCursor(context.Background(), src.ID, store.LogChat)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chatLine1)+len(chatLine2)), cur.Offset)
}

func TestPollUnchangedFileEmitsNothing(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1}}
	_, src, tl, sink := setup(t, fs)
	ctx := context.Background()

	tl.PollSource(ctx, src)
	require.Len(t, sink.events, 1)

	tl.PollSource(ctx, src)
	assert.Len(t, sink.events, 1)
}

func TestPollReadsOnlyAppendedTail(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1}}
	_, src, tl, sink := setup(t, fs)
	ctx := context.Background()

	tl.PollSource(ctx, src)
	fs.files["/logs/chat.log"] = chatLine1 + chatLine2
	tl.PollSource(ctx, src)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "second", sink.events[1].Message)
}

func TestPollRotationResetsAndDedupes(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1 + chatLine2}}
	_, src, tl, sink := setup(t, fs)
	ctx := context.Background()

	tl.PollSource(ctx, src)
	require.Len(t, sink.events, 2)

	// Rotation: the new, shorter file starts with the last line already
	// seen. It must be skipped, the rest emitted.
	line3 := "[2024.01.22-15.31.30][LogTheIsleChatData]: [Global] C [76561198000000003]: hi\n"
	fs.files["/logs/chat.log"] = chatLine2 + line3
	tl.PollSource(ctx, src)

	require.Len(t, sink.events, 3)
	assert.Equal(t, "hi", sink.events[2].Message)
}

func TestPollLeavesPartialLine(t *testing.T) {
	partial := "[2024.01.22-15.32.00][LogTheIsleChatData]: [Global] Gamma [7656119800000"
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1 + partial}}
	st, src, tl, sink := setup(t, fs)
	ctx := context.Background()

	tl.PollSource(ctx, src)
	require.Len(t, sink.events, 1)

	cur, err := st.GetCursor(ctx, src.ID, store.LogChat)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chatLine1)), cur.Offset)

	fs.files["/logs/chat.log"] = chatLine1 + partial + "0003]: third\n"
	tl.PollSource(ctx, src)
	require.Len(t, sink.events, 2)
	assert.Equal(t, "third", sink.events[1].Message)
}

func TestPollSkipsUnparseableLines(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": "garbage line\n" + chatLine1 + "???\n"}}
	st, src, tl, sink := setup(t, fs)

	tl.PollSource(context.Background(), src)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "first", sink.events[0].Message)

	// Skipped lines still advance the cursor.
	cur, err := st.GetCursor(context.Background(), src.ID, store.LogChat)
	require.NoError(t, err)
	assert.Equal(t, int64(len("garbage line\n")+len(chatLine1)+len("???\n")), cur.Offset)
}

func TestPollMarksListedAdmins(t *testing.T) {
	adminLine := "[2024.01.22-15.30.45][LogTheIsleAdmin]: Mod [76561198000000009] executed: /save\n"
	rogueLine := "[2024.01.22-15.30.50][LogTheIsleAdmin]: Rogue [76561198000000066] executed: /ban Alpha\n"
	fs := &fakeFS{files: map[string]string{
		"/logs/admin.log":    adminLine + rogueLine,
		"/config/admins.txt": "# staff\n76561198000000009\n",
	}}
	_, src, tl, sink := setup(t, fs)

	tl.PollSource(context.Background(), src)

	require.Len(t, sink.events, 2)
	assert.True(t, sink.events[0].AdminListed)
	assert.False(t, sink.events[1].AdminListed)
}

func TestLeaseBlocksSecondPoller(t *testing.T) {
	fs := &fakeFS{files: map[string]string{"/logs/chat.log": chatLine1}}
	st, src, _, _ := setup(t, fs)
	ctx := context.Background()

	ok, err := st.AcquireLease(ctx, src.ID, "other-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.AcquireLease(ctx, src.ID, "me", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// The same holder extends its own lease.
	ok, err = st.AcquireLease(ctx, src.ID, "other-holder", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
