package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func Migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration error: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guilds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS game_servers (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		protocol TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		password TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_connected_at DATETIME,
		last_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(guild_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS sftp_sources (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		server_id TEXT REFERENCES game_servers(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		game TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL DEFAULT 22,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		chat_log_path TEXT NOT NULL DEFAULT '',
		kill_log_path TEXT NOT NULL DEFAULT '',
		admin_log_path TEXT NOT NULL DEFAULT '',
		admin_list_path TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(guild_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS log_cursors (
		source_id TEXT NOT NULL REFERENCES sftp_sources(id) ON DELETE CASCADE,
		log_type TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		offset INTEGER NOT NULL DEFAULT 0,
		last_line_hash TEXT NOT NULL DEFAULT '',
		last_read_at DATETIME,
		PRIMARY KEY (source_id, log_type)
	)`,
	`CREATE TABLE IF NOT EXISTS tail_leases (
		source_id TEXT PRIMARY KEY REFERENCES sftp_sources(id) ON DELETE CASCADE,
		holder TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS verification_challenges (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		game TEXT NOT NULL,
		code TEXT NOT NULL,
		target_player_id TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		state TEXT NOT NULL DEFAULT 'pending',
		verified_player_id TEXT,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verification_guild_code ON verification_challenges(guild_id, code)`,
	`CREATE TABLE IF NOT EXISTS enforcement_rules (
		guild_id TEXT PRIMARY KEY REFERENCES guilds(id) ON DELETE CASCADE,
		auto_kick_enabled INTEGER NOT NULL DEFAULT 0,
		auto_kick_threshold INTEGER NOT NULL DEFAULT 3,
		auto_ban_enabled INTEGER NOT NULL DEFAULT 0,
		auto_ban_threshold INTEGER NOT NULL DEFAULT 5,
		verification_enabled INTEGER NOT NULL DEFAULT 1,
		verification_timeout_minutes INTEGER NOT NULL DEFAULT 10
	)`,
	`CREATE TABLE IF NOT EXISTS command_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		server_id TEXT,
		command TEXT NOT NULL,
		target_id TEXT NOT NULL DEFAULT '',
		executed_by TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		response TEXT NOT NULL DEFAULT '',
		executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_command_audit_guild_time ON command_audit(guild_id, executed_at)`,
	`CREATE TABLE IF NOT EXISTS action_marks (
		guild_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		threshold INTEGER NOT NULL,
		action TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (guild_id, subject_id, threshold)
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		steam_id TEXT,
		alderon_id TEXT,
		player_name TEXT NOT NULL DEFAULT '',
		linked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (guild_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_players_steam ON players(guild_id, steam_id)`,
	`CREATE INDEX IF NOT EXISTS idx_players_alderon ON players(guild_id, alderon_id)`,
	`CREATE TABLE IF NOT EXISTS log_channels (
		guild_id TEXT PRIMARY KEY REFERENCES guilds(id) ON DELETE CASCADE,
		chatlog_channel_id TEXT NOT NULL DEFAULT '',
		killfeed_channel_id TEXT NOT NULL DEFAULT '',
		adminlog_channel_id TEXT NOT NULL DEFAULT '',
		link_channel_id TEXT NOT NULL DEFAULT '',
		restart_channel_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_tasks (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		server_id TEXT NOT NULL REFERENCES game_servers(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_run DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS population_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		server_id TEXT NOT NULL REFERENCES game_servers(id) ON DELETE CASCADE,
		player_count INTEGER NOT NULL,
		sampled_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_population_server_time ON population_samples(server_id, sampled_at)`,
}
