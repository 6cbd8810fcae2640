// Package gamelog turns raw game-server log lines into typed events. Each
// supported game registers a Parser for its grammars.
package gamelog

import (
	"time"
)

// LogType selects which grammar a line is parsed against.
type LogType string

const (
	Chat  LogType = "chat"
	Kill  LogType = "kill"
	Admin LogType = "admin"
)

// Event is one parsed log line. Fields are populated per Type; Raw always
// carries the original line.
type Event struct {
	Type      LogType   `json:"type"`
	Game      string    `json:"game"`
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw"`

	// Chat
	PlayerName string `json:"player_name,omitempty"`
	PlayerID   string `json:"player_id,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Message    string `json:"message,omitempty"`

	// Kill
	KillerName string `json:"killer_name,omitempty"`
	KillerID   string `json:"killer_id,omitempty"`
	VictimName string `json:"victim_name,omitempty"`
	VictimID   string `json:"victim_id,omitempty"`

	// Admin
	AdminName string `json:"admin_name,omitempty"`
	AdminID   string `json:"admin_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Target    string `json:"target,omitempty"`
	Details   string `json:"details,omitempty"`

	// Set by the tailer from the companion admin-list file.
	AdminListed bool `json:"admin_listed,omitempty"`
}

// Parser provides game-specific log grammars.
type Parser interface {
	// Game returns the game identifier (e.g. "the_isle_evrima").
	Game() string

	// Parse extracts a structured event from one line, nil when the line
	// does not match the grammar for the given log type.
	Parse(line string, t LogType) *Event
}

// logTimestampLayout matches the bracketed stamps game servers write:
// [2024.01.22-15.30.45]
const logTimestampLayout = "2006.01.02-15.04.05"

func parseTimestamp(s string) time.Time {
	ts, err := time.Parse(logTimestampLayout, s)
	if err != nil {
		return time.Now().UTC()
	}
	return ts
}
