package gamelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathOfTitansParseChat(t *testing.T) {
	p := &PathOfTitansParser{}
	line := "[2024.01.22-15.30.45] [Global] DinoFan (123-456-789): has anyone seen the herd"

	ev := p.Parse(line, Chat)
	require.NotNil(t, ev)
	assert.Equal(t, "Global", ev.Channel)
	assert.Equal(t, "DinoFan", ev.PlayerName)
	assert.Equal(t, "123-456-789", ev.PlayerID)
	assert.Equal(t, "has anyone seen the herd", ev.Message)
}

func TestPathOfTitansParseKill(t *testing.T) {
	p := &PathOfTitansParser{}
	line := "[2024.01.22-15.30.45] PlayerA (123-456-789) killed PlayerB (987-654-321)"

	ev := p.Parse(line, Kill)
	require.NotNil(t, ev)
	assert.Equal(t, "PlayerA", ev.KillerName)
	assert.Equal(t, "123-456-789", ev.KillerID)
	assert.Equal(t, "PlayerB", ev.VictimName)
	assert.Equal(t, "987-654-321", ev.VictimID)
}

func TestPathOfTitansParseAdmin(t *testing.T) {
	p := &PathOfTitansParser{}
	line := "[2024.01.22-15.30.45] Admin ModGuy (123-456-789): /ban PlayerB griefing"

	ev := p.Parse(line, Admin)
	require.NotNil(t, ev)
	assert.Equal(t, "ModGuy", ev.AdminName)
	assert.Equal(t, "123-456-789", ev.AdminID)
	assert.Equal(t, "/ban", ev.Action)
	assert.Equal(t, "PlayerB", ev.Target)
}

func TestPathOfTitansParseMismatch(t *testing.T) {
	p := &PathOfTitansParser{}
	assert.Nil(t, p.Parse("[2024.01.22-15.30.45] [Global] NoID: hi", Chat))
	assert.Nil(t, p.Parse("", Kill))
}
