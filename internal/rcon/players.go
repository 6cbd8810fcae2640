package rcon

import (
	"regexp"
	"strings"
)

// Player is one entry from a server's player list.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var playerDataRe = regexp.MustCompile(`(\w+):\s*([^,\n]+)`)

// ParsePlayers decodes a player-list response for the given protocol.
//
// Evrima replies newline-separated with trailing commas:
//
//	PlayerList
//	76561199003854357,
//	Blytz,
//	...
//
// Source-style (Path of Titans) replies one "id, name" pair per line.
func ParsePlayers(p Protocol, raw string) []Player {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if p == EvrimaBinary {
		return parseEvrimaPlayers(raw)
	}
	return parseSourcePlayers(raw)
}

func parseEvrimaPlayers(raw string) []Player {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ","))
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "playerlist", "players", "player list", "no players", "empty":
			continue
		}
		parts = append(parts, line)
	}

	var players []Player
	for i := 0; i+1 < len(parts); i += 2 {
		a, b := parts[i], parts[i+1]
		switch {
		case looksLikeGameID(a):
			players = append(players, Player{ID: a, Name: b})
		case looksLikeGameID(b):
			// Some builds emit name before id.
			players = append(players, Player{ID: b, Name: a})
		}
	}
	return players
}

func parseSourcePlayers(raw string) []Player {
	var players []Player
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if id, name, ok := strings.Cut(line, ","); ok {
			players = append(players, Player{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
		} else {
			players = append(players, Player{ID: line, Name: line})
		}
	}
	return players
}

// looksLikeGameID matches 17-digit steam ids and dashed Alderon ids.
func looksLikeGameID(s string) bool {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) < 10 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) >= 15 || len(s) == len(digits)
}

// ParsePlayerData decodes the Evrima per-player detail response, a list of
// "Key: Value" pairs (Name, PlayerID, Gender, Class, Growth, ...).
func ParsePlayerData(raw string) map[string]string {
	data := make(map[string]string)
	for _, m := range playerDataRe.FindAllStringSubmatch(raw, -1) {
		data[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	return data
}
