package store

import (
	"context"
)

// AppendAudit records a command attempt. The table is append-only; records
// are never updated or deleted by the application.
func (s *Store) AppendAudit(ctx context.Context, rec *CommandAuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_audit (guild_id, server_id, command, target_id, executed_by, success, response)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.GuildID, nullStr(rec.ServerID), rec.Command, rec.TargetID,
		rec.ExecutedBy, rec.Success, rec.Response)
	return err
}

func (s *Store) ListAudit(ctx context.Context, guildID string, limit int) ([]*CommandAuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, COALESCE(server_id, ''), command, target_id, executed_by, success, response, executed_at
		 FROM command_audit WHERE guild_id = ?
		 ORDER BY executed_at DESC, id DESC LIMIT ?`,
		guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*CommandAuditRecord
	for rows.Next() {
		var r CommandAuditRecord
		if err := rows.Scan(&r.ID, &r.GuildID, &r.ServerID, &r.Command, &r.TargetID,
			&r.ExecutedBy, &r.Success, &r.Response, &r.ExecutedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// InsertActionMark claims the (guild, subject, threshold) idempotency key.
// Returns true when this call created the mark, false when a previous
// notification already acted on the threshold.
func (s *Store) InsertActionMark(ctx context.Context, guildID, subjectID string, threshold int, action string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO action_marks (guild_id, subject_id, threshold, action)
		 VALUES (?, ?, ?, ?)`,
		guildID, subjectID, threshold, action)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasActionMark reports whether a threshold was already acted on.
func (s *Store) HasActionMark(ctx context.Context, guildID, subjectID string, threshold int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM action_marks WHERE guild_id = ? AND subject_id = ? AND threshold = ?",
		guildID, subjectID, threshold).Scan(&n)
	return n > 0, err
}
