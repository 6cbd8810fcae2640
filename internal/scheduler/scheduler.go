// Package scheduler runs guild-configured recurring server tasks (world
// saves, announcements, restart warnings) on cron schedules, at minute
// resolution.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

const actor = "scheduler"

// Supported task actions.
const (
	ActionSave        = "save"
	ActionAnnounce    = "announce"
	ActionRestartWarn = "restart_warn"
	ActionWipeCorpses = "wipe_corpses"
)

// CommandRunner issues one command against one server. Satisfied by
// manager.Manager.
type CommandRunner interface {
	Execute(ctx context.Context, guildID, serverID, executedBy string, cmd rcon.Command) (string, error)
}

type Scheduler struct {
	store  *store.Store
	runner CommandRunner
	log    zerolog.Logger
}

func New(st *store.Store, runner CommandRunner, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: st, runner: runner, log: log}
}

// Run ticks once per wall-clock minute until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.tick(ctx, next)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	tasks, err := s.store.ListEnabledTasks(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks")
		return
	}

	for _, task := range tasks {
		sched, err := Parse(task.CronExpr)
		if err != nil {
			s.log.Warn().Err(err).Str("task_id", task.ID).Str("cron", task.CronExpr).Msg("invalid cron expression")
			continue
		}
		if !sched.Matches(now) {
			continue
		}
		s.runTask(ctx, task)
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *store.ScheduledTask) {
	log := s.log.With().Str("task_id", task.ID).Str("task", task.Name).
		Str("action", task.Action).Str("server_id", task.ServerID).Logger()

	cmd, ok := taskCommand(task)
	if !ok {
		log.Warn().Msg("unknown task action")
		return
	}

	if _, err := s.runner.Execute(ctx, task.GuildID, task.ServerID, actor, cmd); err != nil {
		log.Warn().Err(err).Msg("task command failed")
		return
	}
	if err := s.store.TouchTask(ctx, task.ID); err != nil {
		log.Warn().Err(err).Msg("record last_run")
	}
	log.Info().Msg("task executed")
}

func taskCommand(task *store.ScheduledTask) (rcon.Command, bool) {
	switch task.Action {
	case ActionSave:
		return rcon.Save(), true
	case ActionAnnounce:
		return rcon.Announce(task.Payload), true
	case ActionRestartWarn:
		msg := task.Payload
		if msg == "" {
			msg = "Server restart soon, find a safe spot"
		}
		return rcon.Announce(msg), true
	case ActionWipeCorpses:
		return rcon.Command{Kind: rcon.CmdWipeCorpses}, true
	}
	return rcon.Command{}, false
}
