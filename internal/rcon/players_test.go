package rcon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlayersEvrima(t *testing.T) {
	raw := "PlayerList\n76561199003854357,\nBlytz,\n76561198087654321,\nOtherPlayer,\n"

	players := ParsePlayers(EvrimaBinary, raw)
	assert.Equal(t, []Player{
		{ID: "76561199003854357", Name: "Blytz"},
		{ID: "76561198087654321", Name: "OtherPlayer"},
	}, players)
}

func TestParsePlayersEvrimaNameFirst(t *testing.T) {
	raw := "PlayerList\nBlytz,\n76561199003854357,\n"

	players := ParsePlayers(EvrimaBinary, raw)
	assert.Equal(t, []Player{{ID: "76561199003854357", Name: "Blytz"}}, players)
}

func TestParsePlayersEvrimaEmpty(t *testing.T) {
	assert.Nil(t, ParsePlayers(EvrimaBinary, "No players"))
	assert.Nil(t, ParsePlayers(EvrimaBinary, ""))
}

func TestParsePlayersSource(t *testing.T) {
	raw := "123-456-789, Rexy\n987-654-321, Carno\n"

	players := ParsePlayers(SourceStyle, raw)
	assert.Equal(t, []Player{
		{ID: "123-456-789", Name: "Rexy"},
		{ID: "987-654-321", Name: "Carno"},
	}, players)
}

func TestParsePlayerData(t *testing.T) {
	raw := "Name: Blytz, PlayerID: 76561199003854357, Gender: Male, Class: Carnotaurus, Growth: 0.29"

	data := ParsePlayerData(raw)
	assert.Equal(t, "Carnotaurus", data["class"])
	assert.Equal(t, "Male", data["gender"])
	assert.Equal(t, "0.29", data["growth"])
}
