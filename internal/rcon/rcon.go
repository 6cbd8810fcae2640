// Package rcon speaks the two remote-console wire protocols used by the
// supported games: the length-prefixed Source-style text protocol (Path of
// Titans) and The Isle Evrima's binary exchange. Both hide behind Conn.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Protocol selects the wire codec.
type Protocol string

const (
	SourceStyle  Protocol = "source"
	EvrimaBinary Protocol = "evrima"
)

var (
	ErrAuth           = errors.New("rcon: authentication rejected")
	ErrProtocol       = errors.New("rcon: malformed frame")
	ErrCommandTimeout = errors.New("rcon: command timed out")
	ErrUnsupported    = errors.New("rcon: command not supported by protocol")
)

// Kind names a game-level command, mapped to wire form by each codec.
type Kind string

const (
	CmdKick             Kind = "kick"
	CmdBan              Kind = "ban"
	CmdUnban            Kind = "unban"
	CmdAnnounce         Kind = "announce"
	CmdDirectMessage    Kind = "dm"
	CmdListPlayers      Kind = "players"
	CmdPlayerData       Kind = "playerdata"
	CmdSave             Kind = "save"
	CmdServerInfo       Kind = "serverinfo"
	CmdWipeCorpses      Kind = "wipecorpses"
	CmdUpdatePlayables  Kind = "updateplayables"
	CmdToggleWhitelist  Kind = "togglewhitelist"
	CmdWhitelistAdd     Kind = "whitelistadd"
	CmdWhitelistRemove  Kind = "whitelistremove"
	CmdToggleGlobalChat Kind = "toggleglobalchat"
	CmdToggleHumans     Kind = "togglehumans"
	CmdToggleAI         Kind = "toggleai"
	CmdDisableAIClasses Kind = "disableaiclasses"
	CmdAIDensity        Kind = "aidensity"
	CmdRaw              Kind = "raw"
)

// Command is one remote-console instruction. Target carries the player id
// for player-scoped commands, Text the free-form argument (reason, message,
// comma list, "1"/"0" for toggles, or the raw console line).
type Command struct {
	Kind   Kind
	Target string
	Text   string
}

func Kick(playerID, reason string) Command { return Command{Kind: CmdKick, Target: playerID, Text: reason} }
func Ban(playerID, reason string) Command  { return Command{Kind: CmdBan, Target: playerID, Text: reason} }
func Unban(playerID string) Command        { return Command{Kind: CmdUnban, Target: playerID} }
func Announce(message string) Command      { return Command{Kind: CmdAnnounce, Text: message} }
func DirectMessage(playerID, message string) Command {
	return Command{Kind: CmdDirectMessage, Target: playerID, Text: message}
}
func ListPlayers() Command       { return Command{Kind: CmdListPlayers} }
func Save() Command              { return Command{Kind: CmdSave} }
func ServerInfo() Command        { return Command{Kind: CmdServerInfo} }
func Raw(console string) Command { return Command{Kind: CmdRaw, Text: console} }

// Toggle builds an on/off command (whitelist, global chat, humans, AI).
func Toggle(kind Kind, enabled bool) Command {
	v := "0"
	if enabled {
		v = "1"
	}
	return Command{Kind: kind, Text: v}
}

// Conn is one live authenticated remote-console session. Implementations
// are not safe for concurrent use: exactly one command may be in flight at
// a time, which is the connection manager's responsibility to enforce.
type Conn interface {
	Execute(ctx context.Context, cmd Command) (string, error)
	Close() error
}

// Dial connects and authenticates per the protocol's handshake. The timeout
// bounds the dial plus the auth exchange.
func Dial(ctx context.Context, p Protocol, host string, port int, password string, timeout time.Duration) (Conn, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	switch p {
	case SourceStyle:
		return dialSource(ctx, addr, password, timeout)
	case EvrimaBinary:
		return dialEvrima(ctx, addr, password, timeout)
	default:
		return nil, fmt.Errorf("rcon: unknown protocol %q", p)
	}
}

// deadline picks the sooner of the context deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// timeoutErr normalizes net timeouts into ErrCommandTimeout.
func timeoutErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrCommandTimeout, err)
	}
	return err
}
