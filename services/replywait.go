package services

import (
	"fmt"
	"sync"
	"time"

	"QueensProofBot/errorhandler"

	"github.com/bwmarrin/discordgo"
)

const (
	// Flag values observed on bot replies: 192 marks the deferred "loading"
	// placeholder, 64 the final ephemeral reply.
	flagLoadingReply = 192
	flagFinalReply   = 64

	replyTimeout = 30 * time.Second
)

// AwaitBotReply blocks until the bot posts its reply in the channel, or the
// timeout fires. A loading placeholder (flags 192) is cached and the edit
// that flips it to 64 resolves the wait; a message with flags 64 or no flags
// at all resolves immediately. Resolution happens exactly once and both
// handlers plus the timer are detached on every outcome.
func AwaitBotReply(sess PlatformSession, botID, channelID string, timeout time.Duration) (*discordgo.Message, error) {
	done := make(chan *discordgo.Message, 1)
	var once sync.Once
	resolve := func(m *discordgo.Message) {
		once.Do(func() { done <- m })
	}

	var mu sync.Mutex
	var pendingID string

	remove := sess.OnMessage(
		func(m *discordgo.Message) {
			if m.Author == nil || m.Author.ID != botID || m.ChannelID != channelID {
				return
			}
			switch int(m.Flags) {
			case flagLoadingReply:
				mu.Lock()
				pendingID = m.ID
				mu.Unlock()
			case flagFinalReply, 0:
				resolve(m)
			}
		},
		func(m *discordgo.Message) {
			if m.ChannelID != channelID {
				return
			}
			mu.Lock()
			id := pendingID
			mu.Unlock()
			if id != "" && m.ID == id && int(m.Flags) == flagFinalReply {
				resolve(m)
			}
		},
	)
	defer remove()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-done:
		return m, nil
	case <-timer.C:
		return nil, errorhandler.NewTransientError(fmt.Errorf("no bot reply within %s", timeout), "await bot reply")
	}
}
