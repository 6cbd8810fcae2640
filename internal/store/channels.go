package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetLogChannels returns the guild's routing table. Missing config comes
// back as a zero value, not an error.
func (s *Store) GetLogChannels(ctx context.Context, guildID string) (*LogChannels, error) {
	var c LogChannels
	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, chatlog_channel_id, killfeed_channel_id, adminlog_channel_id,
		   link_channel_id, restart_channel_id
		 FROM log_channels WHERE guild_id = ?`, guildID,
	).Scan(&c.GuildID, &c.ChatLog, &c.KillFeed, &c.AdminLog, &c.Link, &c.Restart)
	if errors.Is(err, sql.ErrNoRows) {
		return &LogChannels{GuildID: guildID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveLogChannels(ctx context.Context, c *LogChannels) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_channels
		   (guild_id, chatlog_channel_id, killfeed_channel_id, adminlog_channel_id, link_channel_id, restart_channel_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
		   chatlog_channel_id = excluded.chatlog_channel_id,
		   killfeed_channel_id = excluded.killfeed_channel_id,
		   adminlog_channel_id = excluded.adminlog_channel_id,
		   link_channel_id = excluded.link_channel_id,
		   restart_channel_id = excluded.restart_channel_id`,
		c.GuildID, c.ChatLog, c.KillFeed, c.AdminLog, c.Link, c.Restart)
	return err
}
