// Package manager owns one worker goroutine per game server. The worker
// serializes commands over a single remote-console session, dials lazily
// with exponential backoff and retires servers that keep failing.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/secrets"
	"github.com/wardenlabs/gamewarden/internal/store"
)

var (
	// ErrServerInactive rejects commands for servers taken out of rotation.
	ErrServerInactive = errors.New("manager: server is inactive")
	// ErrBusy rejects commands when a server's queue is full.
	ErrBusy = errors.New("manager: server queue is full")
	// ErrShutdown rejects commands after Close.
	ErrShutdown = errors.New("manager: shutting down")
)

const queueDepth = 64

// maxAuditResponse bounds what a chatty server can push into the audit log.
const maxAuditResponse = 2000

// DialFunc matches rcon.Dial. Swapped out in tests.
type DialFunc func(ctx context.Context, p rcon.Protocol, host string, port int, password string, timeout time.Duration) (rcon.Conn, error)

type result struct {
	out string
	err error
}

type request struct {
	ctx        context.Context
	cmd        rcon.Command
	executedBy string
	resp       chan result
}

// Manager routes commands to per-server workers. Commands for the same
// server run strictly in submission order; different servers proceed
// independently.
type Manager struct {
	store   *store.Store
	log     zerolog.Logger
	cfg     config.RCONConfig
	dial    DialFunc
	secrets secrets.Resolver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
}

func New(st *store.Store, log zerolog.Logger, cfg config.RCONConfig, dial DialFunc) *Manager {
	if dial == nil {
		dial = rcon.Dial
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:   st,
		log:     log,
		cfg:     cfg,
		dial:    dial,
		secrets: secrets.Plaintext{},
		ctx:     ctx,
		cancel:  cancel,
		workers: map[string]*worker{},
	}
}

// SetSecretResolver swaps the credential resolver. Default is plaintext
// passthrough of the stored password column.
func (m *Manager) SetSecretResolver(r secrets.Resolver) { m.secrets = r }

// Execute runs one command against a guild's server and waits for the
// response. Every attempt is written to the audit log regardless of
// outcome.
func (m *Manager) Execute(ctx context.Context, guildID, serverID, executedBy string, cmd rcon.Command) (string, error) {
	srv, err := m.store.GetServer(ctx, guildID, serverID)
	if err != nil {
		return "", err
	}
	if !srv.IsActive {
		return "", ErrServerInactive
	}

	w, err := m.worker(srv)
	if err != nil {
		return "", err
	}

	req := &request{ctx: ctx, cmd: cmd, executedBy: executedBy, resp: make(chan result, 1)}
	select {
	case w.queue <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrBusy
	}

	select {
	case res := <-req.resp:
		return res.out, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ExecuteDefault runs a command against the guild's default server.
func (m *Manager) ExecuteDefault(ctx context.Context, guildID, executedBy string, cmd rcon.Command) (string, error) {
	srv, err := m.DefaultServer(ctx, guildID)
	if err != nil {
		return "", err
	}
	return m.Execute(ctx, guildID, srv.ID, executedBy, cmd)
}

// DefaultServer resolves the guild's default active server.
func (m *Manager) DefaultServer(ctx context.Context, guildID string) (*store.GameServer, error) {
	servers, err := m.store.ListServers(ctx, guildID, true)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, store.ErrNotFound
	}
	return servers[0], nil
}

// Invalidate drops a server's worker so the next command picks up fresh
// connection details. Call after editing or reactivating a server.
func (m *Manager) Invalidate(serverID string) {
	m.mu.Lock()
	w := m.workers[serverID]
	delete(m.workers, serverID)
	m.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

// Close stops all workers and waits for in-flight commands to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.workers = map[string]*worker{}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) worker(srv *store.GameServer) (*worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	if w, ok := m.workers[srv.ID]; ok {
		return w, nil
	}
	w := newWorker(m, srv)
	m.workers[srv.ID] = w
	m.wg.Add(1)
	go w.run()
	return w, nil
}

func (m *Manager) dropWorker(serverID string, w *worker) {
	m.mu.Lock()
	if m.workers[serverID] == w {
		delete(m.workers, serverID)
	}
	m.mu.Unlock()
}

type worker struct {
	m   *Manager
	srv *store.GameServer
	log zerolog.Logger

	queue chan *request
	done  chan struct{}

	conn     rcon.Conn
	failures int
	retry    *backoff.ExponentialBackOff
}

func newWorker(m *Manager, srv *store.GameServer) *worker {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.BackoffBase
	b.MaxInterval = m.cfg.BackoffCap
	b.MaxElapsedTime = 0
	b.Reset()
	return &worker{
		m:     m,
		srv:   srv,
		log:   m.log.With().Str("server_id", srv.ID).Str("server", srv.Name).Logger(),
		queue: make(chan *request, queueDepth),
		done:  make(chan struct{}),
		retry: b,
	}
}

func (w *worker) stop() { close(w.done) }

func (w *worker) run() {
	defer w.m.wg.Done()
	defer w.teardown()

	for {
		select {
		case <-w.m.ctx.Done():
			w.reject(ErrShutdown)
			return
		case <-w.done:
			w.reject(ErrShutdown)
			return
		case req := <-w.queue:
			out, err := w.serve(req)
			req.resp <- result{out: out, err: err}
			if errors.Is(err, ErrServerInactive) {
				w.reject(ErrServerInactive)
				w.m.dropWorker(w.srv.ID, w)
				return
			}
		}
	}
}

// reject fails everything still queued without executing it.
func (w *worker) reject(err error) {
	for {
		select {
		case req := <-w.queue:
			req.resp <- result{err: err}
		default:
			return
		}
	}
}

func (w *worker) serve(req *request) (string, error) {
	if err := req.ctx.Err(); err != nil {
		return "", err
	}
	if w.conn == nil {
		if err := w.connect(req.ctx); err != nil {
			w.audit(req, "", err)
			return "", err
		}
	}

	cctx, cancel := context.WithTimeout(req.ctx, w.m.cfg.CommandTimeout)
	out, err := w.conn.Execute(cctx, req.cmd)
	cancel()

	w.audit(req, out, err)

	if err != nil {
		// The session state is unknown after any failure. Drop it and let
		// the next command redial.
		w.teardown()
		w.log.Warn().Err(err).Str("command", string(req.cmd.Kind)).Msg("command failed")
		return "", err
	}

	if err := w.m.store.MarkServerConnected(context.Background(), w.srv.ID); err != nil {
		w.log.Warn().Err(err).Msg("record last_connected_at")
	}
	return out, nil
}

// connect dials with exponential backoff until it succeeds, the request
// context expires, or the consecutive failure limit retires the server.
func (w *worker) connect(ctx context.Context) error {
	password, err := w.m.secrets.Resolve(ctx, w.srv.Password)
	if err != nil {
		return fmt.Errorf("resolve server credential: %w", err)
	}

	for {
		conn, err := w.m.dial(ctx, rcon.Protocol(w.srv.Protocol), w.srv.Host, w.srv.Port, password, w.m.cfg.DialTimeout)
		if err == nil {
			w.conn = conn
			w.failures = 0
			w.retry.Reset()
			return nil
		}

		w.failures++
		w.log.Warn().Err(err).Int("failures", w.failures).Msg("dial failed")
		if serr := w.m.store.MarkServerError(context.Background(), w.srv.ID, err.Error()); serr != nil {
			w.log.Warn().Err(serr).Msg("record last_error")
		}

		if w.failures >= w.m.cfg.MaxDialFailures {
			reason := fmt.Sprintf("deactivated after %d consecutive connection failures: %v", w.failures, err)
			if serr := w.m.store.DeactivateServer(context.Background(), w.srv.ID, reason); serr != nil {
				w.log.Error().Err(serr).Msg("deactivate server")
			}
			w.log.Error().Int("failures", w.failures).Msg("server deactivated")
			return fmt.Errorf("%w: %v", ErrServerInactive, err)
		}

		select {
		case <-time.After(w.retry.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		case <-w.m.ctx.Done():
			return ErrShutdown
		}
	}
}

func (w *worker) teardown() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

func (w *worker) audit(req *request, out string, err error) {
	resp := out
	if err != nil {
		resp = err.Error()
	}
	if len(resp) > maxAuditResponse {
		resp = resp[:maxAuditResponse]
	}
	rec := &store.CommandAuditRecord{
		GuildID:    w.srv.GuildID,
		ServerID:   w.srv.ID,
		Command:    string(req.cmd.Kind),
		TargetID:   req.cmd.Target,
		ExecutedBy: req.executedBy,
		Success:    err == nil,
		Response:   resp,
	}
	if aerr := w.m.store.AppendAudit(context.Background(), rec); aerr != nil {
		w.log.Error().Err(aerr).Msg("append audit record")
	}
}
