package services

import (
	"testing"
	"time"

	"QueensProofBot/errorhandler"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBotID     = "bot-1"
	testChannelID = "chan-1"
)

func botMessage(id string, flags int) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: testChannelID,
		Author:    &discordgo.User{ID: testBotID},
		Flags:     discordgo.MessageFlags(flags),
		Content:   "reply " + id,
	}
}

func TestAwaitBotReplyFinalFlags(t *testing.T) {
	sess := &fakeSession{botReply: botMessage("m1", flagFinalReply)}

	m, err := AwaitBotReply(sess, testBotID, testChannelID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
}

func TestAwaitBotReplyNoFlags(t *testing.T) {
	sess := &fakeSession{botReply: botMessage("m2", 0)}

	m, err := AwaitBotReply(sess, testBotID, testChannelID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "m2", m.ID)
}

func TestAwaitBotReplyLoadingThenEdit(t *testing.T) {
	sess := &fakeSession{
		script: func(onCreate, onUpdate func(*discordgo.Message)) {
			onCreate(botMessage("m3", flagLoadingReply))
			onUpdate(botMessage("m3", flagFinalReply))
		},
	}

	m, err := AwaitBotReply(sess, testBotID, testChannelID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "m3", m.ID)
	assert.Equal(t, flagFinalReply, int(m.Flags))
}

func TestAwaitBotReplyIgnoresOtherAuthors(t *testing.T) {
	other := botMessage("m4", flagFinalReply)
	other.Author = &discordgo.User{ID: "someone-else"}
	sess := &fakeSession{botReply: other}

	_, err := AwaitBotReply(sess, testBotID, testChannelID, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errorhandler.TransientError, errorhandler.CategoryOf(err))
}

func TestAwaitBotReplyIgnoresOtherChannels(t *testing.T) {
	other := botMessage("m5", flagFinalReply)
	other.ChannelID = "elsewhere"
	sess := &fakeSession{botReply: other}

	_, err := AwaitBotReply(sess, testBotID, testChannelID, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestAwaitBotReplyTimeout(t *testing.T) {
	sess := &fakeSession{}

	_, err := AwaitBotReply(sess, testBotID, testChannelID, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errorhandler.TransientError, errorhandler.CategoryOf(err))
}

func TestAwaitBotReplyLoadingAloneDoesNotResolve(t *testing.T) {
	sess := &fakeSession{botReply: botMessage("m6", flagLoadingReply)}

	_, err := AwaitBotReply(sess, testBotID, testChannelID, 50*time.Millisecond)
	assert.Error(t, err)
}
