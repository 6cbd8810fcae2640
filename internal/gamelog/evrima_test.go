package gamelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvrimaParseChat(t *testing.T) {
	p := &EvrimaParser{}
	line := "[2024.01.22-15.30.45][LogTheIsleChatData]: [Global] [Group] PlayerName [76561198012345678]: Hello world"

	ev := p.Parse(line, Chat)
	require.NotNil(t, ev)
	assert.Equal(t, Chat, ev.Type)
	assert.Equal(t, "Global Group", ev.Channel)
	assert.Equal(t, "PlayerName", ev.PlayerName)
	assert.Equal(t, "76561198012345678", ev.PlayerID)
	assert.Equal(t, "Hello world", ev.Message)
	assert.Equal(t, time.Date(2024, 1, 22, 15, 30, 45, 0, time.UTC), ev.Timestamp)
}

func TestEvrimaParseChatNoGroup(t *testing.T) {
	p := &EvrimaParser{}
	line := "[2024.01.22-15.30.45][LogTheIsleChatData]: [Local] Blytz [76561199003854357]: anyone nearby?"

	ev := p.Parse(line, Chat)
	require.NotNil(t, ev)
	assert.Equal(t, "Local", ev.Channel)
	assert.Equal(t, "Blytz", ev.PlayerName)
	assert.Equal(t, "anyone nearby?", ev.Message)
}

func TestEvrimaParseKill(t *testing.T) {
	p := &EvrimaParser{}
	line := "[2024.01.22-15.30.45][LogTheIsleKills]: PlayerA [76561198012345678] killed PlayerB [76561198087654321]"

	ev := p.Parse(line, Kill)
	require.NotNil(t, ev)
	assert.Equal(t, Kill, ev.Type)
	assert.Equal(t, "PlayerA", ev.KillerName)
	assert.Equal(t, "76561198012345678", ev.KillerID)
	assert.Equal(t, "PlayerB", ev.VictimName)
	assert.Equal(t, "76561198087654321", ev.VictimID)
}

func TestEvrimaParseAdmin(t *testing.T) {
	p := &EvrimaParser{}
	line := "[2024.01.22-15.30.45][LogTheIsleAdmin]: Admin [76561198012345678] executed: /kick PlayerB spam"

	ev := p.Parse(line, Admin)
	require.NotNil(t, ev)
	assert.Equal(t, Admin, ev.Type)
	assert.Equal(t, "Admin", ev.AdminName)
	assert.Equal(t, "76561198012345678", ev.AdminID)
	assert.Equal(t, "/kick", ev.Action)
	assert.Equal(t, "PlayerB", ev.Target)
	assert.Equal(t, "/kick PlayerB spam", ev.Details)
}

func TestEvrimaParseRejectsGarbage(t *testing.T) {
	p := &EvrimaParser{}
	tests := []struct {
		name string
		line string
		typ  LogType
	}{
		{"empty", "", Chat},
		{"wrong tag", "[2024.01.22-15.30.45][LogTheIsleKills]: X [76561198012345678] killed Y [76561198087654321]", Chat},
		{"truncated", "[LogTheIsleChatData]: [Global] Player", Chat},
		{"kill without ids", "PlayerA killed PlayerB", Kill},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, p.Parse(tt.line, tt.typ))
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	require.NotNil(t, Get("the_isle_evrima"))
	require.NotNil(t, Get("path_of_titans"))
	assert.Nil(t, Get("minecraft"))
	assert.Len(t, All(), 2)
}
