package rcon

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvrimaPair(t *testing.T) (*evrimaConn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return &evrimaConn{conn: client, timeout: 2 * time.Second}, server
}

func TestEvrimaExecuteKick(t *testing.T) {
	c, server := newEvrimaPair(t)

	go func() {
		buf := make([]byte, 256)
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		want := append([]byte{evCommand, opKick}, "76561198012345678"...)
		want = append(want, 0x00)
		if !bytes.Equal(buf[:n], want) {
			server.Write([]byte("unexpected frame"))
			return
		}
		server.Write([]byte("Kicked player"))
	}()

	resp, err := c.Execute(context.Background(), Kick("76561198012345678", "ignored"))
	require.NoError(t, err)
	assert.Equal(t, "Kicked player", resp)
}

func TestEncodeEvrimaCommand(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"kick", Kick("76561198000000001", ""), frame(opKick, "76561198000000001")},
		{"ban", Ban("76561198000000001", "x"), frame(opBan, "76561198000000001")},
		{"unban", Unban("76561198000000001"), frame(opUnban, "76561198000000001")},
		{"announce", Announce("server restart in 5"), frame(opAnnounce, "server restart in 5")},
		{"dm", DirectMessage("76561198000000001", "hi"), frame(opDirectMessage, "76561198000000001,hi")},
		{"player list", ListPlayers(), frame(opPlayerList, "")},
		{"save", Save(), frame(opSave, "")},
		{"server info", ServerInfo(), frame(opServerInfo, "")},
		{"wipe corpses", Command{Kind: CmdWipeCorpses}, frame(opWipeCorpses, "")},
		{"whitelist on", Toggle(CmdToggleWhitelist, true), frame(opToggleWhitelist, "1")},
		{"global chat off", Toggle(CmdToggleGlobalChat, false), frame(opToggleGlobalChat, "0")},
		{"ai density", Command{Kind: CmdAIDensity, Text: "0.5"}, frame(opAIDensity, "0.5")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeEvrimaCommand(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func frame(op byte, payload string) []byte {
	f := append([]byte{evCommand, op}, payload...)
	return append(f, 0x00)
}

// fakeEvrimaServer accepts one connection and answers the login exchange.
func fakeEvrimaServer(t *testing.T, reply string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		conn.Write([]byte(reply))
	}()
	return ln.Addr().String()
}

func TestDialEvrimaAccepted(t *testing.T) {
	addr := fakeEvrimaServer(t, "Password Accepted")

	host, port := splitAddr(t, addr)
	conn, err := Dial(context.Background(), EvrimaBinary, host, port, "secret", 2*time.Second)
	require.NoError(t, err)
	conn.Close()
}

func TestDialEvrimaRejected(t *testing.T) {
	addr := fakeEvrimaServer(t, "Password Rejected")

	host, port := splitAddr(t, addr)
	_, err := Dial(context.Background(), EvrimaBinary, host, port, "wrong", 2*time.Second)
	require.ErrorIs(t, err, ErrAuth)
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)
	return tcp.IP.String(), tcp.Port
}
