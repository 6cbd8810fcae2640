package gamelog

import (
	"regexp"
	"strings"
)

func init() {
	Register(&EvrimaParser{})
}

// EvrimaParser handles The Isle Evrima's log grammars:
//
//	Chat:  [2024.01.22-15.30.45][LogTheIsleChatData]: [Global] [Group] Name [76561198012345678]: Hello
//	Kill:  [2024.01.22-15.30.45][LogTheIsleKills]: A [76561198012345678] killed B [76561198087654321]
//	Admin: [2024.01.22-15.30.45][LogTheIsleAdmin]: Name [76561198012345678] executed: /kick B
type EvrimaParser struct{}

var (
	evrimaTimestampRe = regexp.MustCompile(`\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2})\]`)
	evrimaChatRe      = regexp.MustCompile(`\[LogTheIsleChatData\]:\s*\[(\w+)\]\s*(?:\[(\w+)\])?\s*(.+?)\s*\[(\d{17})\]:\s*(.+)$`)
	evrimaKillRe      = regexp.MustCompile(`\[LogTheIsleKills\]:\s*(.+?)\s*\[(\d{17})\]\s*killed\s*(.+?)\s*\[(\d{17})\]`)
	evrimaAdminRe     = regexp.MustCompile(`\[LogTheIsleAdmin\]:\s*(.+?)\s*\[(\d{17})\]\s*executed:\s*(.+)$`)
)

func (p *EvrimaParser) Game() string { return "the_isle_evrima" }

func (p *EvrimaParser) Parse(line string, t LogType) *Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	switch t {
	case Chat:
		return p.parseChat(line)
	case Kill:
		return p.parseKill(line)
	case Admin:
		return p.parseAdmin(line)
	}
	return nil
}

func (p *EvrimaParser) stamp(line string) (ts string, ok bool) {
	if m := evrimaTimestampRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

func (p *EvrimaParser) parseChat(line string) *Event {
	m := evrimaChatRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	channel := m[1]
	if m[2] != "" {
		channel += " " + m[2]
	}
	ev := &Event{
		Type:       Chat,
		Game:       p.Game(),
		Raw:        line,
		Channel:    channel,
		PlayerName: m[3],
		PlayerID:   m[4],
		Message:    m[5],
	}
	s, _ := p.stamp(line)
	ev.Timestamp = parseTimestamp(s)
	return ev
}

func (p *EvrimaParser) parseKill(line string) *Event {
	m := evrimaKillRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	ev := &Event{
		Type:       Kill,
		Game:       p.Game(),
		Raw:        line,
		KillerName: m[1],
		KillerID:   m[2],
		VictimName: m[3],
		VictimID:   m[4],
	}
	s, _ := p.stamp(line)
	ev.Timestamp = parseTimestamp(s)
	return ev
}

func (p *EvrimaParser) parseAdmin(line string) *Event {
	m := evrimaAdminRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	command := m[3]
	parts := strings.Fields(command)
	ev := &Event{
		Type:      Admin,
		Game:      p.Game(),
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
	s, _ := p.stamp(line)
	ev.Timestamp = parseTimestamp(s)
	return ev
}
