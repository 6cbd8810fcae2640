package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetCursor returns the stored read position for a (source, log type). A
// fresh zero cursor is returned when none exists yet.
func (s *Store) GetCursor(ctx context.Context, sourceID string, logType LogType) (*LogCursor, error) {
	var cur LogCursor
	var readAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, log_type, file_path, offset, last_line_hash, last_read_at
		 FROM log_cursors WHERE source_id = ? AND log_type = ?`,
		sourceID, logType,
	).Scan(&cur.SourceID, &cur.LogType, &cur.FilePath, &cur.Offset, &cur.LastLineHash, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &LogCursor{SourceID: sourceID, LogType: logType}, nil
		}
		return nil, err
	}
	if readAt.Valid {
		cur.LastReadAt = &readAt.Time
	}
	return &cur, nil
}

// SaveCursor upserts the read position. Called before event dispatch so a
// crash redelivers rather than loses lines.
func (s *Store) SaveCursor(ctx context.Context, cur *LogCursor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_cursors (source_id, log_type, file_path, offset, last_line_hash, last_read_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, log_type) DO UPDATE SET
		   file_path = excluded.file_path,
		   offset = excluded.offset,
		   last_line_hash = excluded.last_line_hash,
		   last_read_at = excluded.last_read_at`,
		cur.SourceID, cur.LogType, cur.FilePath, cur.Offset, cur.LastLineHash, time.Now().UTC())
	return err
}

// AcquireLease claims exclusive polling of a source for ttl. Returns false
// when another live holder already owns it. The claim is a single
// conditional write so concurrent pollers cannot both win.
func (s *Store) AcquireLease(ctx context.Context, sourceID, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tail_leases (source_id, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE tail_leases.expires_at < ? OR tail_leases.holder = excluded.holder`,
		sourceID, holder, now.Add(ttl), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseLease drops the claim early. Only the current holder may release.
func (s *Store) ReleaseLease(ctx context.Context, sourceID, holder string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM tail_leases WHERE source_id = ? AND holder = ?", sourceID, holder)
	return err
}
