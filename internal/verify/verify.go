// Package verify links chat-platform users to in-game identities through
// short-lived challenge codes typed into game chat.
package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/store"
)

var (
	// ErrExpired is returned when a challenge's deadline passed before a
	// valid attempt.
	ErrExpired = errors.New("verify: challenge expired")
	// ErrNoAttempts is returned once the attempt budget is spent.
	ErrNoAttempts = errors.New("verify: attempt limit reached")
	// ErrMismatch is returned when the asserted identity does not match the
	// challenge target.
	ErrMismatch = errors.New("verify: identity mismatch")
	// ErrCodeCollision is returned when code generation cannot find a free
	// code, which should never happen in practice.
	ErrCodeCollision = errors.New("verify: could not generate unique code")
)

// Codes avoid 0/O and 1/I so players can read them back from game chat.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const codeLength = 6
const maxCodeTries = 10

const defaultTimeout = 10 * time.Minute

// PlayerLinker records a verified identity on the user's passport.
// Satisfied by store.Store.
type PlayerLinker interface {
	LinkPlayer(ctx context.Context, guildID, userID, game, playerID, playerName string) error
}

// Service issues and settles verification challenges.
type Service struct {
	store  *store.Store
	linker PlayerLinker
	log    zerolog.Logger
	now    func() time.Time
}

func New(st *store.Store, linker PlayerLinker, log zerolog.Logger) *Service {
	return &Service{store: st, linker: linker, log: log, now: time.Now}
}

// Create opens a challenge for a user. A previous pending challenge for the
// same user is superseded. targetPlayerID may be empty; the first player to
// type the code then claims it.
func (s *Service) Create(ctx context.Context, guildID, userID, game, targetPlayerID string) (*store.VerificationChallenge, error) {
	rule, err := s.store.GetRule(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load enforcement rule: %w", err)
	}

	timeout := defaultTimeout
	if rule.VerificationTimeoutMinutes > 0 {
		timeout = time.Duration(rule.VerificationTimeoutMinutes) * time.Minute
	}

	code, err := s.uniqueCode(ctx, guildID)
	if err != nil {
		return nil, err
	}

	ch := &store.VerificationChallenge{
		GuildID:        guildID,
		UserID:         userID,
		Game:           game,
		Code:           code,
		TargetPlayerID: targetPlayerID,
		ExpiresAt:      s.now().UTC().Add(timeout),
	}
	if err := s.store.CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	s.log.Info().Str("guild_id", guildID).Str("user_id", userID).
		Time("expires_at", ch.ExpiresAt).Msg("verification challenge created")
	return ch, nil
}

// Consume settles a code seen in game chat. playerID is the identity the
// code arrived from and playerName its display name. On success the identity
// is linked to the challenge owner and the verified challenge is returned.
//
// Expiry is settled lazily here rather than by a background sweep; the
// outcome is identical and there is one less moving part.
func (s *Service) Consume(ctx context.Context, guildID, code, playerID, playerName string) (*store.VerificationChallenge, error) {
	ch, err := s.store.GetChallengeByCode(ctx, guildID, code)
	if err != nil {
		return nil, err
	}

	if s.now().UTC().After(ch.ExpiresAt) {
		if _, terr := s.store.TransitionChallenge(ctx, ch.ID, store.ChallengeExpired, ""); terr != nil {
			return nil, terr
		}
		return nil, ErrExpired
	}

	attempts, err := s.store.IncrementChallengeAttempts(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	if attempts > ch.MaxAttempts {
		return nil, ErrNoAttempts
	}

	if ch.TargetPlayerID != "" && ch.TargetPlayerID != playerID {
		if attempts >= ch.MaxAttempts {
			if _, terr := s.store.TransitionChallenge(ctx, ch.ID, store.ChallengeFailed, ""); terr != nil {
				return nil, terr
			}
			return nil, ErrNoAttempts
		}
		return nil, ErrMismatch
	}

	// First responder wins; a lost race means someone else just verified.
	ok, err := s.store.TransitionChallenge(ctx, ch.ID, store.ChallengeVerified, playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}

	if err := s.linker.LinkPlayer(ctx, guildID, ch.UserID, ch.Game, playerID, playerName); err != nil {
		return nil, fmt.Errorf("link player: %w", err)
	}

	ch.State = store.ChallengeVerified
	ch.VerifiedPlayerID = playerID
	ch.Attempts = attempts
	s.log.Info().Str("guild_id", guildID).Str("user_id", ch.UserID).
		Str("player_id", playerID).Msg("identity verified")
	return ch, nil
}

func (s *Service) uniqueCode(ctx context.Context, guildID string) (string, error) {
	for i := 0; i < maxCodeTries; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		used, err := s.store.CodeInUse(ctx, guildID, code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrCodeCollision
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
