package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sourceCols = `id, guild_id, server_id, name, game, host, port, username, password,
	chat_log_path, kill_log_path, admin_log_path, admin_list_path, is_active, created_at`

func scanSource(row interface{ Scan(...any) error }) (*SftpSource, error) {
	var src SftpSource
	var serverID sql.NullString
	err := row.Scan(&src.ID, &src.GuildID, &serverID, &src.Name, &src.Game,
		&src.Host, &src.Port, &src.Username, &src.Password,
		&src.ChatLogPath, &src.KillLogPath, &src.AdminLogPath, &src.AdminListPath,
		&src.IsActive, &src.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	src.ServerID = strOrEmpty(serverID)
	return &src, nil
}

func (s *Store) AddSource(ctx context.Context, src *SftpSource) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	src.IsActive = true
	if src.Port == 0 {
		src.Port = 22
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sftp_sources (id, guild_id, server_id, name, game, host, port, username, password,
		   chat_log_path, kill_log_path, admin_log_path, admin_list_path, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		src.ID, src.GuildID, nullStr(src.ServerID), src.Name, src.Game, src.Host, src.Port,
		src.Username, src.Password, src.ChatLogPath, src.KillLogPath, src.AdminLogPath, src.AdminListPath)
	if err != nil {
		return fmt.Errorf("insert sftp source: %w", err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, guildID, sourceID string) (*SftpSource, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sourceCols+" FROM sftp_sources WHERE id = ? AND guild_id = ?",
		sourceID, guildID)
	return scanSource(row)
}

func (s *Store) ListSources(ctx context.Context, guildID string, activeOnly bool) ([]*SftpSource, error) {
	q := "SELECT " + sourceCols + " FROM sftp_sources WHERE guild_id = ?"
	if activeOnly {
		q += " AND is_active = 1"
	}
	q += " ORDER BY name"
	rows, err := s.db.QueryContext(ctx, q, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSources(rows)
}

// ListActiveSources returns every active source across guilds, for the tailer.
func (s *Store) ListActiveSources(ctx context.Context) ([]*SftpSource, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sourceCols+" FROM sftp_sources WHERE is_active = 1 ORDER BY guild_id, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSources(rows)
}

func collectSources(rows *sql.Rows) ([]*SftpSource, error) {
	var sources []*SftpSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (s *Store) UpdateSource(ctx context.Context, src *SftpSource) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sftp_sources SET server_id = ?, name = ?, game = ?, host = ?, port = ?, username = ?, password = ?,
		   chat_log_path = ?, kill_log_path = ?, admin_log_path = ?, admin_list_path = ?, is_active = ?
		 WHERE id = ? AND guild_id = ?`,
		nullStr(src.ServerID), src.Name, src.Game, src.Host, src.Port, src.Username, src.Password,
		src.ChatLogPath, src.KillLogPath, src.AdminLogPath, src.AdminListPath, src.IsActive,
		src.ID, src.GuildID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSource(ctx context.Context, guildID, sourceID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sftp_sources WHERE id = ? AND guild_id = ?", sourceID, guildID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
