// Package taillog polls remote game log files over SFTP and turns new lines
// into parsed events. Cursors and leases live in the store, so multiple
// instances can run without double-reading a source.
package taillog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/gamelog"
	"github.com/wardenlabs/gamewarden/internal/secrets"
	"github.com/wardenlabs/gamewarden/internal/store"
)

const adminListTTL = 5 * time.Minute

var tailedTypes = []store.LogType{store.LogChat, store.LogKill, store.LogAdmin}

// Dispatcher receives parsed events after their cursor is persisted.
// Delivery is at least once: a crash between persist and dispatch loses the
// event, a crash before persist redelivers it.
type Dispatcher interface {
	Dispatch(ctx context.Context, src *store.SftpSource, ev *gamelog.Event)
}

type adminList struct {
	ids       map[string]bool
	fetchedAt time.Time
}

// Tailer drives the poll cycle over every active source.
type Tailer struct {
	store    *store.Store
	log      zerolog.Logger
	cfg      config.TailConfig
	connect  ConnectFunc
	dispatch Dispatcher
	secrets  secrets.Resolver
	holder   string

	mu     sync.Mutex
	admins map[string]*adminList
}

func New(st *store.Store, log zerolog.Logger, cfg config.TailConfig, connect ConnectFunc, dispatch Dispatcher) *Tailer {
	if connect == nil {
		connect = ConnectSFTP
	}
	return &Tailer{
		store:    st,
		log:      log,
		cfg:      cfg,
		connect:  connect,
		dispatch: dispatch,
		secrets:  secrets.Plaintext{},
		holder:   uuid.NewString(),
		admins:   map[string]*adminList{},
	}
}

// SetSecretResolver swaps the credential resolver. Default is plaintext
// passthrough of the stored password column.
func (t *Tailer) SetSecretResolver(r secrets.Resolver) { t.secrets = r }

// Run polls until the context is cancelled.
func (t *Tailer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cycle(ctx)
		}
	}
}

func (t *Tailer) cycle(ctx context.Context) {
	sources, err := t.store.ListActiveSources(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("list sources")
		return
	}
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		ok, err := t.store.AcquireLease(ctx, src.ID, t.holder, t.cfg.LeaseTTL)
		if err != nil {
			t.log.Error().Err(err).Str("source_id", src.ID).Msg("acquire lease")
			continue
		}
		if !ok {
			continue
		}
		t.PollSource(ctx, src)
	}
}

// PollSource reads every configured log file of one source once.
func (t *Tailer) PollSource(ctx context.Context, src *store.SftpSource) {
	log := t.log.With().Str("source_id", src.ID).Str("source", src.Name).Logger()

	password, err := t.secrets.Resolve(ctx, src.Password)
	if err != nil {
		log.Error().Err(err).Msg("resolve source credential")
		return
	}
	resolved := *src
	resolved.Password = password

	fs, err := t.connect(ctx, &resolved, t.cfg.DialTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("connect failed")
		return
	}
	defer fs.Close()

	for _, lt := range tailedTypes {
		path := src.LogPath(lt)
		if path == "" {
			continue
		}
		if err := t.pollFile(ctx, fs, src, lt, path); err != nil {
			log.Warn().Err(err).Str("log_type", string(lt)).Msg("poll failed")
		}
	}
}

func (t *Tailer) pollFile(ctx context.Context, fs RemoteFS, src *store.SftpSource, lt store.LogType, path string) error {
	cur, err := t.store.GetCursor(ctx, src.ID, lt)
	if err != nil {
		return err
	}
	if cur.FilePath != path {
		// Path reconfigured; start the new file from the beginning.
		cur.Offset = 0
		cur.LastLineHash = ""
	}

	size, err := fs.Size(path)
	if err != nil {
		return err
	}
	if size < cur.Offset {
		// The file shrank, so it was rotated or truncated. The line hash is
		// kept: when the new file overlaps the old one, the duplicate line
		// is skipped below.
		t.log.Info().Str("source_id", src.ID).Str("log_type", string(lt)).
			Int64("offset", cur.Offset).Int64("size", size).Msg("rotation detected")
		cur.Offset = 0
	}
	if size == cur.Offset {
		return nil
	}

	data, err := fs.ReadFrom(path, cur.Offset)
	if err != nil {
		return err
	}

	lines, consumed := splitLines(data)
	if len(lines) > 0 && cur.LastLineHash != "" && lineHash(lines[0]) == cur.LastLineHash {
		lines = lines[1:]
	}

	parser := gamelog.Get(src.Game)
	if parser == nil {
		return fmt.Errorf("no parser for game %q", src.Game)
	}
	var events []*gamelog.Event
	parseErrors := 0
	var lastLine string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lastLine = line
		ev := parser.Parse(line, gamelog.LogType(lt))
		if ev == nil {
			parseErrors++
			continue
		}
		if ev.Type == gamelog.Admin {
			ev.AdminListed = t.isListedAdmin(ctx, fs, src, ev.AdminID)
		}
		events = append(events, ev)
	}
	if parseErrors > 0 {
		t.log.Warn().Str("source_id", src.ID).Str("log_type", string(lt)).
			Int("lines", parseErrors).Msg("unparseable lines skipped")
	}

	cur.Offset += consumed
	cur.FilePath = path
	if lastLine != "" {
		cur.LastLineHash = lineHash(lastLine)
	}
	if err := t.store.SaveCursor(ctx, cur); err != nil {
		return err
	}

	for _, ev := range events {
		t.dispatch.Dispatch(ctx, src, ev)
	}
	return nil
}

// isListedAdmin checks the actor against the source's remote admin id file,
// cached per source.
func (t *Tailer) isListedAdmin(ctx context.Context, fs RemoteFS, src *store.SftpSource, adminID string) bool {
	if src.AdminListPath == "" || adminID == "" {
		return false
	}

	t.mu.Lock()
	cached := t.admins[src.ID]
	t.mu.Unlock()

	if cached == nil || time.Since(cached.fetchedAt) > adminListTTL {
		data, err := fs.ReadFrom(src.AdminListPath, 0)
		if err != nil {
			t.log.Warn().Err(err).Str("source_id", src.ID).Msg("read admin list")
			if cached == nil {
				return false
			}
		} else {
			cached = &adminList{ids: parseAdminList(data), fetchedAt: time.Now()}
			t.mu.Lock()
			t.admins[src.ID] = cached
			t.mu.Unlock()
		}
	}
	return cached.ids[adminID]
}

func parseAdminList(data []byte) map[string]bool {
	ids := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		ids[line] = true
	}
	return ids
}

// splitLines returns the complete lines in data and how many bytes they
// cover. A trailing partial line without a newline stays unread until the
// next poll finds its terminator.
func splitLines(data []byte) ([]string, int64) {
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, 0
	}
	var lines []string
	for _, raw := range bytes.Split(data[:end], []byte{'\n'}) {
		lines = append(lines, strings.TrimRight(string(raw), "\r"))
	}
	return lines, int64(end + 1)
}

func lineHash(line string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(line)))
	return hex.EncodeToString(sum[:])
}
