// Package population periodically samples player counts from every active
// server over its remote console and keeps a short history for the admin
// surface.
package population

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

const actor = "population"

const sampleInterval = 5 * time.Minute

// Sample is one player-count observation with the roster it came from.
type Sample struct {
	ServerID  string        `json:"server_id"`
	Count     int           `json:"count"`
	Players   []rcon.Player `json:"players"`
	SampledAt time.Time     `json:"sampled_at"`
}

// CommandRunner issues one command against one server. Satisfied by
// manager.Manager.
type CommandRunner interface {
	Execute(ctx context.Context, guildID, serverID, executedBy string, cmd rcon.Command) (string, error)
}

type Sampler struct {
	store  *store.Store
	runner CommandRunner
	log    zerolog.Logger

	mu        sync.RWMutex
	latest    map[string]*Sample
	listeners map[string][]chan *Sample
}

func New(st *store.Store, runner CommandRunner, log zerolog.Logger) *Sampler {
	return &Sampler{
		store:     st,
		runner:    runner,
		log:       log,
		latest:    map[string]*Sample{},
		listeners: map[string][]chan *Sample{},
	}
}

// Run samples all active servers every five minutes until the context is
// cancelled. The first pass runs immediately.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	s.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collect(ctx)
		}
	}
}

func (s *Sampler) collect(ctx context.Context) {
	servers, err := s.store.ListAllActiveServers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list servers")
		return
	}

	for _, srv := range servers {
		if ctx.Err() != nil {
			return
		}
		sample, err := s.SampleServer(ctx, srv)
		if err != nil {
			s.log.Warn().Err(err).Str("server_id", srv.ID).Msg("sample failed")
			continue
		}

		s.mu.Lock()
		s.latest[srv.ID] = sample
		listeners := s.listeners[srv.ID]
		s.mu.Unlock()

		for _, ch := range listeners {
			select {
			case ch <- sample:
			default:
			}
		}
	}
}

// SampleServer asks one server for its player list and records the count.
func (s *Sampler) SampleServer(ctx context.Context, srv *store.GameServer) (*Sample, error) {
	raw, err := s.runner.Execute(ctx, srv.GuildID, srv.ID, actor, rcon.ListPlayers())
	if err != nil {
		return nil, err
	}
	players := rcon.ParsePlayers(rcon.Protocol(srv.Protocol), raw)

	sample := &Sample{
		ServerID:  srv.ID,
		Count:     len(players),
		Players:   players,
		SampledAt: time.Now().UTC(),
	}
	if err := s.store.RecordPopulation(ctx, srv.ID, sample.Count); err != nil {
		s.log.Warn().Err(err).Str("server_id", srv.ID).Msg("record sample")
	}
	return sample, nil
}

// Latest returns the last in-memory sample for a server, nil when the
// server has not been sampled since startup.
func (s *Sampler) Latest(serverID string) *Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest[serverID]
}

func (s *Sampler) Subscribe(serverID string) chan *Sample {
	ch := make(chan *Sample, 1)
	s.mu.Lock()
	s.listeners[serverID] = append(s.listeners[serverID], ch)
	s.mu.Unlock()
	return ch
}

func (s *Sampler) Unsubscribe(serverID string, ch chan *Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listeners := s.listeners[serverID]
	for i, l := range listeners {
		if l == ch {
			s.listeners[serverID] = append(listeners[:i], listeners[i+1:]...)
			close(ch)
			return
		}
	}
}
