// Package router delivers parsed log events to their configured guild
// channels and feeds verification codes spotted in chat back into the
// verification service.
package router

import (
	"context"
	"errors"
	"regexp"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wardenlabs/gamewarden/internal/config"
	"github.com/wardenlabs/gamewarden/internal/gamelog"
	"github.com/wardenlabs/gamewarden/internal/store"
)

const queueDepth = 256

// Deliveries that are not chat retry this many times before giving up.
const maxFeedRetries = 8

// Message is one event bound for one channel.
type Message struct {
	GuildID   string         `json:"guild_id"`
	ChannelID string         `json:"channel_id"`
	Event     *gamelog.Event `json:"event"`
}

// Poster pushes one message to the chat platform.
type Poster interface {
	Post(ctx context.Context, msg *Message) error
}

// CodeConsumer settles a verification code seen in game chat. Satisfied by
// verify.Service.
type CodeConsumer interface {
	Consume(ctx context.Context, guildID, code, playerID, playerName string) (*store.VerificationChallenge, error)
}

// Verification codes are uppercase with 0/O and 1/I excluded.
var codeRe = regexp.MustCompile(`\b[A-HJ-NP-Z2-9]{6}\b`)

// Router queues events for delivery. Chat events are dropped when the queue
// is saturated; kill and admin events block the producer instead.
type Router struct {
	store    *store.Store
	log      zerolog.Logger
	cfg      config.RouterConfig
	poster   Poster
	verifier CodeConsumer
	feed     *Feed

	queue chan *Message
}

func New(st *store.Store, log zerolog.Logger, cfg config.RouterConfig, poster Poster, verifier CodeConsumer) *Router {
	return &Router{
		store:    st,
		log:      log,
		cfg:      cfg,
		poster:   poster,
		verifier: verifier,
		feed:     NewFeed(),
		queue:    make(chan *Message, queueDepth),
	}
}

// Feed exposes the live event feed for WebSocket subscribers.
func (r *Router) Feed() *Feed { return r.feed }

// Dispatch routes one event. Called by the tailer after the cursor is
// persisted; it must not block on delivery, only on queue admission for
// loss-sensitive event types.
func (r *Router) Dispatch(ctx context.Context, src *store.SftpSource, ev *gamelog.Event) {
	r.feed.Broadcast(src.GuildID, ev)

	if ev.Type == gamelog.Chat && r.verifier != nil {
		r.observeCode(ctx, src.GuildID, ev)
	}

	channels, err := r.store.GetLogChannels(ctx, src.GuildID)
	if err != nil {
		r.log.Error().Err(err).Str("guild_id", src.GuildID).Msg("load channel routing")
		return
	}
	channelID := channelFor(channels, ev.Type)
	if channelID == "" {
		return
	}

	msg := &Message{GuildID: src.GuildID, ChannelID: channelID, Event: ev}
	if ev.Type == gamelog.Chat {
		select {
		case r.queue <- msg:
		default:
			r.log.Warn().Str("guild_id", src.GuildID).Msg("chat event dropped, queue full")
		}
		return
	}

	select {
	case r.queue <- msg:
	case <-ctx.Done():
	}
}

// Run delivers queued messages until the context is cancelled.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			r.deliver(ctx, msg)
		}
	}
}

func (r *Router) deliver(ctx context.Context, msg *Message) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBase
	b.MaxInterval = r.cfg.RetryCap
	b.MaxElapsedTime = 0

	attempts := uint64(maxFeedRetries)
	if msg.Event.Type == gamelog.Chat && r.cfg.ChatAttempts > 0 {
		attempts = uint64(r.cfg.ChatAttempts - 1)
	}

	err := backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return r.poster.Post(ctx, msg)
	}, backoff.WithContext(backoff.WithMaxRetries(b, attempts), ctx))
	if err != nil {
		r.log.Warn().Err(err).Str("guild_id", msg.GuildID).
			Str("type", string(msg.Event.Type)).Msg("event delivery gave up")
	}
}

// observeCode feeds code-shaped chat tokens into the verification service.
// Almost all candidates miss; only a real pending code settles anything.
func (r *Router) observeCode(ctx context.Context, guildID string, ev *gamelog.Event) {
	for _, code := range codeRe.FindAllString(ev.Message, 3) {
		ch, err := r.verifier.Consume(ctx, guildID, code, ev.PlayerID, ev.PlayerName)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				r.log.Debug().Err(err).Str("guild_id", guildID).Msg("code attempt rejected")
			}
			continue
		}
		r.log.Info().Str("guild_id", guildID).Str("user_id", ch.UserID).
			Str("player_id", ev.PlayerID).Msg("verification code consumed from chat")
		return
	}
}

func channelFor(c *store.LogChannels, t gamelog.LogType) string {
	switch t {
	case gamelog.Chat:
		return c.ChatLog
	case gamelog.Kill:
		return c.KillFeed
	case gamelog.Admin:
		return c.AdminLog
	}
	return ""
}
