package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

func (s *Store) AddTask(ctx context.Context, t *ScheduledTask) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_tasks (id, guild_id, server_id, name, cron_expr, action, payload, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.GuildID, t.ServerID, t.Name, t.CronExpr, t.Action, t.Payload, t.Enabled)
	return err
}

func (s *Store) ListTasks(ctx context.Context, guildID string) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, server_id, name, cron_expr, action, payload, enabled, COALESCE(last_run, '')
		 FROM scheduled_tasks WHERE guild_id = ? ORDER BY name`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListEnabledTasks returns every enabled task across guilds for the
// scheduler tick.
func (s *Store) ListEnabledTasks(ctx context.Context) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, server_id, name, cron_expr, action, payload, enabled, COALESCE(last_run, '')
		 FROM scheduled_tasks WHERE enabled = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]*ScheduledTask, error) {
	var tasks []*ScheduledTask
	for rows.Next() {
		var t ScheduledTask
		if err := rows.Scan(&t.ID, &t.GuildID, &t.ServerID, &t.Name, &t.CronExpr,
			&t.Action, &t.Payload, &t.Enabled, &t.LastRun); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (s *Store) DeleteTask(ctx context.Context, guildID, taskID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM scheduled_tasks WHERE id = ? AND guild_id = ?", taskID, guildID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) TouchTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_tasks SET last_run = ? WHERE id = ?", time.Now().UTC(), taskID)
	return err
}

// RecordPopulation stores one player-count sample and prunes samples older
// than 7 days.
func (s *Store) RecordPopulation(ctx context.Context, serverID string, count int) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO population_samples (server_id, player_count) VALUES (?, ?)",
		serverID, count); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM population_samples WHERE sampled_at < datetime('now', '-7 days')")
	return err
}

func (s *Store) LatestPopulation(ctx context.Context, serverID string) (int, time.Time, error) {
	var count int
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT player_count, sampled_at FROM population_samples
		 WHERE server_id = ? ORDER BY sampled_at DESC, id DESC LIMIT 1`,
		serverID).Scan(&count, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, ErrNotFound
	}
	return count, at, err
}
