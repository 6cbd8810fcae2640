package rcon

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Source-style packet type tags.
const (
	packetResponseValue int32 = 0
	packetExecCommand   int32 = 2
	packetAuthResponse  int32 = 2
	packetAuth          int32 = 3
)

// Frame bodies are capped server-side around 4096 bytes; larger responses
// arrive split across packets.
const maxSourceBody = 4096

type sourceConn struct {
	conn    net.Conn
	timeout time.Duration
	reqID   int32
}

func dialSource(ctx context.Context, addr, password string, timeout time.Duration) (*sourceConn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &sourceConn{conn: nc, timeout: timeout, reqID: 1}
	if err := c.authenticate(ctx, password); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// authenticate sends the dedicated auth packet. Servers echo the request id
// on success and -1 on a bad password. Some servers emit an empty
// RESPONSE_VALUE before the AUTH_RESPONSE; both orders are accepted.
func (c *sourceConn) authenticate(ctx context.Context, password string) error {
	id := c.nextID()
	c.conn.SetDeadline(deadline(ctx, c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := writeSourcePacket(c.conn, id, packetAuth, password); err != nil {
		return timeoutErr(err)
	}
	for {
		gotID, typ, _, err := readSourcePacket(c.conn)
		if err != nil {
			return timeoutErr(err)
		}
		if typ != packetAuthResponse {
			continue
		}
		if gotID == -1 {
			return ErrAuth
		}
		if gotID != id {
			return fmt.Errorf("%w: auth response id %d, want %d", ErrProtocol, gotID, id)
		}
		return nil
	}
}

// Execute sends the command and reassembles the response. A sentinel empty
// RESPONSE_VALUE is queued behind the command; everything read before the
// sentinel echoes back belongs to the command, concatenated in arrival
// order.
func (c *sourceConn) Execute(ctx context.Context, cmd Command) (string, error) {
	text, err := encodeSourceCommand(cmd)
	if err != nil {
		return "", err
	}

	id := c.nextID()
	sentinel := c.nextID()

	c.conn.SetDeadline(deadline(ctx, c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := writeSourcePacket(c.conn, id, packetExecCommand, text); err != nil {
		return "", timeoutErr(err)
	}
	if err := writeSourcePacket(c.conn, sentinel, packetResponseValue, ""); err != nil {
		return "", timeoutErr(err)
	}

	var body strings.Builder
	for {
		gotID, typ, part, err := readSourcePacket(c.conn)
		if err != nil {
			return "", timeoutErr(err)
		}
		if typ != packetResponseValue {
			continue
		}
		switch gotID {
		case id:
			body.WriteString(part)
		case sentinel:
			return body.String(), nil
		default:
			return "", fmt.Errorf("%w: response id %d, want %d", ErrProtocol, gotID, id)
		}
	}
}

func (c *sourceConn) Close() error { return c.conn.Close() }

func (c *sourceConn) nextID() int32 {
	id := c.reqID
	c.reqID++
	return id
}

// encodeSourceCommand renders the game's slash-command text form.
func encodeSourceCommand(cmd Command) (string, error) {
	switch cmd.Kind {
	case CmdKick, CmdBan:
		text := fmt.Sprintf("/%s %s", cmd.Kind, cmd.Target)
		if cmd.Text != "" {
			text += " " + cmd.Text
		}
		return text, nil
	case CmdUnban:
		return "/unban " + cmd.Target, nil
	case CmdAnnounce:
		return "/announce " + cmd.Text, nil
	case CmdDirectMessage:
		return fmt.Sprintf("/whisper %s %s", cmd.Target, cmd.Text), nil
	case CmdListPlayers:
		return "/listplayers", nil
	case CmdSave:
		return "/save", nil
	case CmdRaw:
		return cmd.Text, nil
	default:
		return "", fmt.Errorf("%w: %s over source protocol", ErrUnsupported, cmd.Kind)
	}
}

// writeSourcePacket frames a body as little-endian size, request id, type,
// NUL-terminated body and the empty-string terminator.
func writeSourcePacket(w io.Writer, id, typ int32, body string) error {
	size := int32(4 + 4 + len(body) + 2)
	buf := bytes.NewBuffer(make([]byte, 0, size+4))
	binary.Write(buf, binary.LittleEndian, size)
	binary.Write(buf, binary.LittleEndian, id)
	binary.Write(buf, binary.LittleEndian, typ)
	buf.WriteString(body)
	buf.Write([]byte{0, 0})
	_, err := w.Write(buf.Bytes())
	return err
}

func readSourcePacket(r io.Reader) (id, typ int32, body string, err error) {
	var size int32
	if err = binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, 0, "", err
	}
	if size < 10 || size > maxSourceBody+10 {
		return 0, 0, "", fmt.Errorf("%w: packet size %d", ErrProtocol, size)
	}
	payload := make([]byte, size)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, 0, "", err
	}
	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	typ = int32(binary.LittleEndian.Uint32(payload[4:8]))
	rest := payload[8:]
	if len(rest) < 2 || rest[len(rest)-1] != 0 || rest[len(rest)-2] != 0 {
		return 0, 0, "", fmt.Errorf("%w: missing body terminator", ErrProtocol)
	}
	return id, typ, string(rest[:len(rest)-2]), nil
}
