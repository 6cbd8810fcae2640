package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetRule returns the guild's enforcement rule, creating defaults on first
// access.
func (s *Store) GetRule(ctx context.Context, guildID string) (*EnforcementRule, error) {
	rule, err := s.getRule(ctx, guildID)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO enforcement_rules (guild_id) VALUES (?)", guildID)
	if err != nil {
		return nil, err
	}
	return s.getRule(ctx, guildID)
}

func (s *Store) getRule(ctx context.Context, guildID string) (*EnforcementRule, error) {
	var r EnforcementRule
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, auto_kick_enabled, auto_kick_threshold, auto_ban_enabled,
		   auto_ban_threshold, verification_enabled, verification_timeout_minutes
		 FROM enforcement_rules WHERE guild_id = ?`, guildID,
	).Scan(&r.GuildID, &r.AutoKickEnabled, &r.AutoKickThreshold, &r.AutoBanEnabled,
		&r.AutoBanThreshold, &r.VerificationEnabled, &r.VerificationTimeoutMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SaveRule(ctx context.Context, r *EnforcementRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enforcement_rules
		   (guild_id, auto_kick_enabled, auto_kick_threshold, auto_ban_enabled,
		    auto_ban_threshold, verification_enabled, verification_timeout_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   auto_kick_enabled = excluded.auto_kick_enabled,
		   auto_kick_threshold = excluded.auto_kick_threshold,
		   auto_ban_enabled = excluded.auto_ban_enabled,
		   auto_ban_threshold = excluded.auto_ban_threshold,
		   verification_enabled = excluded.verification_enabled,
		   verification_timeout_minutes = excluded.verification_timeout_minutes`,
		r.GuildID, r.AutoKickEnabled, r.AutoKickThreshold, r.AutoBanEnabled,
		r.AutoBanThreshold, r.VerificationEnabled, r.VerificationTimeoutMinutes)
	return err
}
