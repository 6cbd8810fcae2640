package rcon

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Evrima opcode bytes, from the official RCON protocol notes (v0.17.54).
const (
	evLogin            byte = 0x01
	evCommand          byte = 0x02
	opAnnounce         byte = 0x10
	opDirectMessage    byte = 0x11
	opServerInfo       byte = 0x12
	opWipeCorpses      byte = 0x13
	opUpdatePlayables  byte = 0x15
	opBan              byte = 0x20
	opUnban            byte = 0x21
	opKick             byte = 0x30
	opPlayerList       byte = 0x40
	opSave             byte = 0x50
	opPlayerData       byte = 0x77
	opToggleWhitelist  byte = 0x81
	opWhitelistAdd     byte = 0x82
	opWhitelistRemove  byte = 0x83
	opToggleGlobalChat byte = 0x84
	opToggleHumans     byte = 0x86
	opToggleAI         byte = 0x90
	opDisableAIClasses byte = 0x91
	opAIDensity        byte = 0x92
)

type evrimaConn struct {
	conn    net.Conn
	timeout time.Duration
}

// dialEvrima performs the login exchange: 0x01 + password + 0x00, accepted
// iff the reply contains "Accepted".
func dialEvrima(ctx context.Context, addr, password string, timeout time.Duration) (*evrimaConn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &evrimaConn{conn: nc, timeout: timeout}
	nc.SetDeadline(deadline(ctx, timeout))
	defer nc.SetDeadline(time.Time{})

	login := append([]byte{evLogin}, password...)
	login = append(login, 0x00)
	if _, err := nc.Write(login); err != nil {
		nc.Close()
		return nil, timeoutErr(err)
	}

	buf := make([]byte, 1024)
	n, err := nc.Read(buf)
	if err != nil {
		nc.Close()
		return nil, timeoutErr(err)
	}
	if !strings.Contains(string(buf[:n]), "Accepted") {
		nc.Close()
		return nil, ErrAuth
	}
	return c, nil
}

// Execute sends one 0x02-framed command and reads the reply. The protocol
// has no length prefix; the reply is whatever the server pushes back before
// the read deadline, drained in one pass.
func (c *evrimaConn) Execute(ctx context.Context, cmd Command) (string, error) {
	frame, err := encodeEvrimaCommand(cmd)
	if err != nil {
		return "", err
	}

	c.conn.SetDeadline(deadline(ctx, c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if _, err := c.conn.Write(frame); err != nil {
		return "", timeoutErr(err)
	}

	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			if out.Len() > 0 {
				// Server closed or went quiet after answering.
				break
			}
			return "", timeoutErr(err)
		}
		if n < len(buf) {
			break
		}
	}
	return out.String(), nil
}

func (c *evrimaConn) Close() error { return c.conn.Close() }

func encodeEvrimaCommand(cmd Command) ([]byte, error) {
	var op byte
	var payload string

	switch cmd.Kind {
	case CmdKick:
		op, payload = opKick, cmd.Target
	case CmdBan:
		op, payload = opBan, cmd.Target
	case CmdUnban:
		op, payload = opUnban, cmd.Target
	case CmdAnnounce:
		op, payload = opAnnounce, cmd.Text
	case CmdDirectMessage:
		// Comma-separated is the format the game actually honors.
		op, payload = opDirectMessage, cmd.Target+","+cmd.Text
	case CmdServerInfo:
		op = opServerInfo
	case CmdWipeCorpses:
		op = opWipeCorpses
	case CmdUpdatePlayables:
		op, payload = opUpdatePlayables, cmd.Text
	case CmdListPlayers:
		op = opPlayerList
	case CmdSave:
		op = opSave
	case CmdPlayerData:
		op, payload = opPlayerData, cmd.Target
	case CmdToggleWhitelist:
		op, payload = opToggleWhitelist, cmd.Text
	case CmdWhitelistAdd:
		op, payload = opWhitelistAdd, cmd.Text
	case CmdWhitelistRemove:
		op, payload = opWhitelistRemove, cmd.Text
	case CmdToggleGlobalChat:
		op, payload = opToggleGlobalChat, cmd.Text
	case CmdToggleHumans:
		op, payload = opToggleHumans, cmd.Text
	case CmdToggleAI:
		op, payload = opToggleAI, cmd.Text
	case CmdDisableAIClasses:
		op, payload = opDisableAIClasses, cmd.Text
	case CmdAIDensity:
		op, payload = opAIDensity, cmd.Text
	case CmdRaw:
		// No generic console channel; send the text as-is.
		frame := append([]byte(cmd.Text), 0x00)
		return frame, nil
	default:
		return nil, fmt.Errorf("%w: %s over evrima protocol", ErrUnsupported, cmd.Kind)
	}

	frame := append([]byte{evCommand, op}, payload...)
	return append(frame, 0x00), nil
}
