package services

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// fakeSession implements PlatformSession in-memory. A reply queued in
// botReply is delivered to the create handler as soon as one is registered,
// standing in for the bot answering an interaction.
type fakeSession struct {
	userID      string
	username    string
	displayName string

	guild    *discordgo.Guild
	member   *discordgo.Member
	channels map[string]*discordgo.Channel
	commands []*discordgo.ApplicationCommand

	guildErr    error
	memberErr   error
	commandsErr error
	sendErr     error

	botReply *discordgo.Message

	// script, when set, drives the registered handlers directly instead of
	// the single botReply delivery.
	script func(onCreate, onUpdate func(*discordgo.Message))

	sentCommands []string
	closed       bool
}

func (f *fakeSession) UserID() string      { return f.userID }
func (f *fakeSession) Username() string    { return f.username }
func (f *fakeSession) DisplayName() string { return f.displayName }

func (f *fakeSession) Guild(string) (*discordgo.Guild, error) {
	return f.guild, f.guildErr
}

func (f *fakeSession) Member(string, string) (*discordgo.Member, error) {
	return f.member, f.memberErr
}

func (f *fakeSession) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, ok := f.channels[channelID]; ok {
		return ch, nil
	}
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeSession) BotCommands(string, string) ([]*discordgo.ApplicationCommand, error) {
	return f.commands, f.commandsErr
}

func (f *fakeSession) SendCommand(_, channelID, _ string, cmd *discordgo.ApplicationCommand) error {
	f.sentCommands = append(f.sentCommands, cmd.Name+"@"+channelID)
	return f.sendErr
}

func (f *fakeSession) OnMessage(onCreate, onUpdate func(*discordgo.Message)) func() {
	if f.script != nil {
		go f.script(onCreate, onUpdate)
	} else if f.botReply != nil {
		reply := f.botReply
		go onCreate(reply)
	}
	return func() {}
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func fakeLogin(sess PlatformSession, err error) LoginFunc {
	return func(context.Context, string) (PlatformSession, error) {
		return sess, err
	}
}
