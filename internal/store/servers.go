package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const serverCols = `id, guild_id, name, protocol, host, port, password,
	is_default, is_active, last_connected_at, last_error, created_at`

func scanServer(row interface{ Scan(...any) error }) (*GameServer, error) {
	var srv GameServer
	var lastConn sql.NullTime
	var lastErr sql.NullString
	err := row.Scan(&srv.ID, &srv.GuildID, &srv.Name, &srv.Protocol, &srv.Host,
		&srv.Port, &srv.Password, &srv.IsDefault, &srv.IsActive, &lastConn,
		&lastErr, &srv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastConn.Valid {
		srv.LastConnectedAt = &lastConn.Time
	}
	srv.LastError = strOrEmpty(lastErr)
	return &srv, nil
}

// AddServer inserts a game server. The first server of a guild becomes the
// default one.
func (s *Store) AddServer(ctx context.Context, srv *GameServer) error {
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM game_servers WHERE guild_id = ?", srv.GuildID,
	).Scan(&count); err != nil {
		return err
	}
	srv.IsDefault = count == 0
	srv.IsActive = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_servers (id, guild_id, name, protocol, host, port, password, is_default, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		srv.ID, srv.GuildID, srv.Name, srv.Protocol, srv.Host, srv.Port, srv.Password, srv.IsDefault)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}
	return nil
}

func (s *Store) GetServer(ctx context.Context, guildID, serverID string) (*GameServer, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+serverCols+" FROM game_servers WHERE id = ? AND guild_id = ?",
		serverID, guildID)
	return scanServer(row)
}

// ListServers returns a guild's servers, default first.
func (s *Store) ListServers(ctx context.Context, guildID string, activeOnly bool) ([]*GameServer, error) {
	q := "SELECT " + serverCols + " FROM game_servers WHERE guild_id = ?"
	if activeOnly {
		q += " AND is_active = 1"
	}
	q += " ORDER BY is_default DESC, name"

	rows, err := s.db.QueryContext(ctx, q, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*GameServer
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// ListAllActiveServers returns every active server across guilds, for the
// population sampler.
func (s *Store) ListAllActiveServers(ctx context.Context) ([]*GameServer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+serverCols+" FROM game_servers WHERE is_active = 1 ORDER BY guild_id, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*GameServer
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

func (s *Store) UpdateServer(ctx context.Context, srv *GameServer) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE game_servers SET name = ?, protocol = ?, host = ?, port = ?, password = ?, is_active = ?
		 WHERE id = ? AND guild_id = ?`,
		srv.Name, srv.Protocol, srv.Host, srv.Port, srv.Password, srv.IsActive, srv.ID, srv.GuildID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteServer(ctx context.Context, guildID, serverID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM game_servers WHERE id = ? AND guild_id = ?", serverID, guildID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkServerConnected records a successful command and clears last_error.
func (s *Store) MarkServerConnected(ctx context.Context, serverID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE game_servers SET last_connected_at = ?, last_error = NULL WHERE id = ?",
		time.Now().UTC(), serverID)
	return err
}

// MarkServerError records a connection failure without deactivating.
func (s *Store) MarkServerError(ctx context.Context, serverID, msg string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE game_servers SET last_error = ? WHERE id = ?", msg, serverID)
	return err
}

// DeactivateServer takes the server out of rotation until an admin
// reactivates it. last_error keeps the reason.
func (s *Store) DeactivateServer(ctx context.Context, serverID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE game_servers SET is_active = 0, last_error = ? WHERE id = ?", reason, serverID)
	return err
}
