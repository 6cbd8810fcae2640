// Package enforce turns strike-count changes into kicks and bans on the
// guild's game servers. Each (guild, subject, threshold) acts at most once,
// guarded by a durable mark claimed before any command is issued.
package enforce

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/rcon"
	"github.com/wardenlabs/gamewarden/internal/store"
)

const actor = "enforcement"

// CommandRunner issues one command against one server. Satisfied by
// manager.Manager.
type CommandRunner interface {
	Execute(ctx context.Context, guildID, serverID, executedBy string, cmd rcon.Command) (string, error)
}

// BanLedger records bans issued by the engine so moderation tooling sees
// them alongside manual ones.
type BanLedger interface {
	RecordBan(ctx context.Context, guildID, userID, gameID, reason string) error
}

// FeatureFlags gates automatic banning per guild.
type FeatureFlags interface {
	AutoBanAllowed(ctx context.Context, guildID string) bool
}

// Engine applies a guild's enforcement rule to strike notifications.
type Engine struct {
	store  *store.Store
	runner CommandRunner
	ledger BanLedger
	flags  FeatureFlags
	log    zerolog.Logger
}

func New(st *store.Store, runner CommandRunner, ledger BanLedger, flags FeatureFlags, log zerolog.Logger) *Engine {
	return &Engine{store: st, runner: runner, ledger: ledger, flags: flags, log: log}
}

// Outcome reports what one notification triggered.
type Outcome struct {
	Kicked bool `json:"kicked"`
	Banned bool `json:"banned"`
}

// HandleStrikeChange reacts to a subject's active strike count crossing the
// guild's thresholds. Duplicate notifications for the same count are safe:
// the mark is claimed before any command goes out, so replays are no-ops.
func (e *Engine) HandleStrikeChange(ctx context.Context, guildID, userID string, activeCount int) (*Outcome, error) {
	rule, err := e.store.GetRule(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load enforcement rule: %w", err)
	}

	out := &Outcome{}

	if rule.AutoKickEnabled && activeCount >= rule.AutoKickThreshold {
		acted, err := e.act(ctx, guildID, userID, rule.AutoKickThreshold, activeCount, false)
		if err != nil {
			return out, err
		}
		out.Kicked = acted
	}

	if rule.AutoBanEnabled && activeCount >= rule.AutoBanThreshold && e.banAllowed(ctx, guildID) {
		acted, err := e.act(ctx, guildID, userID, rule.AutoBanThreshold, activeCount, true)
		if err != nil {
			return out, err
		}
		out.Banned = acted
	}

	return out, nil
}

func (e *Engine) banAllowed(ctx context.Context, guildID string) bool {
	if e.flags == nil {
		return true
	}
	return e.flags.AutoBanAllowed(ctx, guildID)
}

func (e *Engine) act(ctx context.Context, guildID, userID string, threshold, count int, ban bool) (bool, error) {
	action := "kick"
	if ban {
		action = "ban"
	}

	created, err := e.store.InsertActionMark(ctx, guildID, userID, threshold, action)
	if err != nil {
		return false, fmt.Errorf("claim action mark: %w", err)
	}
	if !created {
		return false, nil
	}

	reason := fmt.Sprintf("Automatic %s: %d active strikes", action, count)
	e.issue(ctx, guildID, userID, reason, ban)
	return true, nil
}

// issue resolves the subject's linked game identities and sends the command
// to every active server where one applies. Per-server failures are logged
// and skipped; the mark already holds, so nothing retries the whole action.
func (e *Engine) issue(ctx context.Context, guildID, userID, reason string, ban bool) {
	log := e.log.With().Str("guild_id", guildID).Str("user_id", userID).Bool("ban", ban).Logger()

	player, err := e.store.GetPlayer(ctx, guildID, userID)
	if err != nil {
		log.Warn().Err(err).Msg("no linked game identity for subject")
		return
	}

	servers, err := e.store.ListServers(ctx, guildID, true)
	if err != nil {
		log.Error().Err(err).Msg("list servers")
		return
	}

	for _, srv := range servers {
		gameID := player.GameID(srv.Protocol.Game())
		if gameID == "" {
			continue
		}
		cmd := rcon.Kick(gameID, reason)
		if ban {
			cmd = rcon.Ban(gameID, reason)
		}
		if _, err := e.runner.Execute(ctx, guildID, srv.ID, actor, cmd); err != nil {
			log.Warn().Err(err).Str("server_id", srv.ID).Msg("enforcement command failed")
			continue
		}
		if ban && e.ledger != nil {
			if err := e.ledger.RecordBan(ctx, guildID, userID, gameID, reason); err != nil {
				log.Error().Err(err).Msg("record ban in ledger")
			}
		}
	}
}
