package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const challengeCols = `id, guild_id, user_id, game, code, target_player_id, attempts,
	max_attempts, state, verified_player_id, expires_at, created_at`

func scanChallenge(row interface{ Scan(...any) error }) (*VerificationChallenge, error) {
	var ch VerificationChallenge
	var target, verified sql.NullString
	err := row.Scan(&ch.ID, &ch.GuildID, &ch.UserID, &ch.Game, &ch.Code, &target,
		&ch.Attempts, &ch.MaxAttempts, &ch.State, &verified, &ch.ExpiresAt, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ch.TargetPlayerID = strOrEmpty(target)
	ch.VerifiedPlayerID = strOrEmpty(verified)
	return &ch, nil
}

// CreateChallenge stores a new pending challenge, superseding any pending
// one the user already has in the guild.
func (s *Store) CreateChallenge(ctx context.Context, ch *VerificationChallenge) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.MaxAttempts == 0 {
		ch.MaxAttempts = 3
	}
	ch.State = ChallengePending

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_challenges
		 WHERE guild_id = ? AND user_id = ? AND state = ?`,
		ch.GuildID, ch.UserID, ChallengePending)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verification_challenges
		   (id, guild_id, user_id, game, code, target_player_id, attempts, max_attempts, state, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		ch.ID, ch.GuildID, ch.UserID, ch.Game, ch.Code, nullStr(ch.TargetPlayerID),
		ch.MaxAttempts, ch.State, ch.ExpiresAt.UTC())
	return err
}

// GetChallengeByCode finds a pending challenge by code regardless of expiry;
// lazy expiry is the verification service's job.
func (s *Store) GetChallengeByCode(ctx context.Context, guildID, code string) (*VerificationChallenge, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+challengeCols+` FROM verification_challenges
		 WHERE guild_id = ? AND code = ? AND state = ?`,
		guildID, code, ChallengePending)
	return scanChallenge(row)
}

func (s *Store) GetChallenge(ctx context.Context, guildID, id string) (*VerificationChallenge, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+challengeCols+" FROM verification_challenges WHERE guild_id = ? AND id = ?",
		guildID, id)
	return scanChallenge(row)
}

// CodeInUse reports whether a code collides with any non-expired pending
// challenge in the guild.
func (s *Store) CodeInUse(ctx context.Context, guildID, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_challenges
		 WHERE guild_id = ? AND code = ? AND state = ? AND expires_at > ?`,
		guildID, code, ChallengePending, time.Now().UTC(),
	).Scan(&n)
	return n > 0, err
}

// IncrementChallengeAttempts bumps the attempt counter for a still-pending
// challenge and returns the new count.
func (s *Store) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE verification_challenges SET attempts = attempts + 1 WHERE id = ? AND state = ?",
		id, ChallengePending)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	var attempts int
	err = s.db.QueryRowContext(ctx,
		"SELECT attempts FROM verification_challenges WHERE id = ?", id).Scan(&attempts)
	return attempts, err
}

// TransitionChallenge moves a pending challenge into a terminal state. The
// guarded WHERE keeps terminal states immutable even under racing callers.
func (s *Store) TransitionChallenge(ctx context.Context, id, state, verifiedPlayerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_challenges SET state = ?, verified_player_id = ?
		 WHERE id = ? AND state = ?`,
		state, nullStr(verifiedPlayerID), id, ChallengePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
