package gamelog

import (
	"regexp"
	"strings"
)

func init() {
	Register(&PathOfTitansParser{})
}

// PathOfTitansParser handles Path of Titans logs, which carry dashed
// Alderon ids:
//
//	Chat:  [2024.01.22-15.30.45] [Global] Name (123-456-789): Hello
//	Kill:  [2024.01.22-15.30.45] A (123-456-789) killed B (987-654-321)
//	Admin: [2024.01.22-15.30.45] Admin Name (123-456-789): /kick B
type PathOfTitansParser struct{}

var (
	potTimestampRe = regexp.MustCompile(`\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2})\]`)
	potChatRe      = regexp.MustCompile(`\[(\w+)\]\s*(.+?)\s*\((\d{3}-\d{3}-\d{3})\):\s*(.+)$`)
	potKillRe      = regexp.MustCompile(`(.+?)\s*\((\d{3}-\d{3}-\d{3})\)\s*killed\s*(.+?)\s*\((\d{3}-\d{3}-\d{3})\)`)
	potAdminRe     = regexp.MustCompile(`Admin\s+(.+?)\s*\((\d{3}-\d{3}-\d{3})\):\s*(.+)$`)
)

func (p *PathOfTitansParser) Game() string { return "path_of_titans" }

func (p *PathOfTitansParser) Parse(line string, t LogType) *Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var ts string
	if m := potTimestampRe.FindStringSubmatch(line); m != nil {
		ts = m[1]
	}

	switch t {
	case Chat:
		m := potChatRe.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		return &Event{
			Type:       Chat,
			Game:       p.Game(),
			Timestamp:  parseTimestamp(ts),
			Raw:        line,
			Channel:    m[1],
			PlayerName: m[2],
			PlayerID:   m[3],
			Message:    m[4],
		}
	case Kill:
		m := potKillRe.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		return &Event{
			Type:       Kill,
			Game:       p.Game(),
			Timestamp:  parseTimestamp(ts),
			Raw:        line,
			KillerName: strings.TrimSpace(stripStamp(m[1])),
			KillerID:   m[2],
			VictimName: m[3],
			VictimID:   m[4],
		}
	case Admin:
		m := potAdminRe.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		command := m[3]
		parts := strings.Fields(command)
		ev := &Event{
			Type:      Admin,
			Game:      p.Game(),
			Timestamp: parseTimestamp(ts),
			Raw:       line,
			AdminName: m[1],
			AdminID:   m[2],
			Action:    command,
			Details:   command,
		}
		if len(parts) > 0 {
			ev.Action = parts[0]
		}
		if len(parts) > 1 {
			ev.Target = parts[1]
		}
		return ev
	}
	return nil
}

// stripStamp drops a leading bracketed timestamp captured by the greedy
// kill pattern.
func stripStamp(s string) string {
	return potTimestampRe.ReplaceAllString(s, "")
}
