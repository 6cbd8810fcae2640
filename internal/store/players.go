package store

import (
	"context"
	"database/sql"
	"errors"
)

func scanPlayer(row interface{ Scan(...any) error }) (*Player, error) {
	var p Player
	var steam, alderon sql.NullString
	err := row.Scan(&p.GuildID, &p.UserID, &steam, &alderon, &p.PlayerName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.SteamID = strOrEmpty(steam)
	p.AlderonID = strOrEmpty(alderon)
	return &p, nil
}

const playerCols = "guild_id, user_id, steam_id, alderon_id, player_name"

// GetPlayer returns the passport for a chat-platform user.
func (s *Store) GetPlayer(ctx context.Context, guildID, userID string) (*Player, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+playerCols+" FROM players WHERE guild_id = ? AND user_id = ?",
		guildID, userID)
	return scanPlayer(row)
}

// FindPlayerByGameID resolves a passport from either identity namespace.
func (s *Store) FindPlayerByGameID(ctx context.Context, guildID, gameID string) (*Player, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playerCols+` FROM players
		 WHERE guild_id = ? AND (steam_id = ? OR alderon_id = ?)`,
		guildID, gameID, gameID)
	return scanPlayer(row)
}

// LinkPlayer upserts one game identity onto a user's passport. Other linked
// identities are preserved.
func (s *Store) LinkPlayer(ctx context.Context, guildID, userID, game, playerID, playerName string) error {
	steamID, alderonID := any(nil), any(nil)
	if game == GameEvrima {
		steamID = playerID
	} else {
		alderonID = playerID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (guild_id, user_id, steam_id, alderon_id, player_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(guild_id, user_id) DO UPDATE SET
		   steam_id = COALESCE(excluded.steam_id, players.steam_id),
		   alderon_id = COALESCE(excluded.alderon_id, players.alderon_id),
		   player_name = CASE WHEN excluded.player_name != '' THEN excluded.player_name ELSE players.player_name END`,
		guildID, userID, steamID, alderonID, playerName)
	return err
}

// EnsureGuild registers a guild row so child rows can reference it.
func (s *Store) EnsureGuild(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO guilds (id) VALUES (?)", guildID)
	return err
}

// DeleteGuild removes the tenant and cascades to every owned entity.
func (s *Store) DeleteGuild(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM guilds WHERE id = ?", guildID)
	return err
}
