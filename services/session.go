package services

import (
	"context"
	"fmt"
	"time"

	"QueensProofBot/errorhandler"

	"github.com/bwmarrin/discordgo"
)

const (
	loginTimeout  = 30 * time.Second
	lookupTimeout = 10 * time.Second
)

// PlatformSession is the slice of the chat platform the validator and runner
// need. The production implementation wraps a discordgo session opened with
// an account's own token; tests substitute a fake.
type PlatformSession interface {
	UserID() string
	Username() string
	DisplayName() string
	Guild(guildID string) (*discordgo.Guild, error)
	Member(guildID, userID string) (*discordgo.Member, error)
	Channel(channelID string) (*discordgo.Channel, error)
	BotCommands(botID, guildID string) ([]*discordgo.ApplicationCommand, error)
	SendCommand(guildID, channelID, nonce string, cmd *discordgo.ApplicationCommand) error
	OnMessage(onCreate, onUpdate func(*discordgo.Message)) (remove func())
	Close() error
}

// LoginFunc opens a platform session for one account token. Injectable so
// validator and runner tests run against fakes.
type LoginFunc func(ctx context.Context, token string) (PlatformSession, error)

type discordSession struct {
	s         *discordgo.Session
	sessionID string
	user      *discordgo.User
}

// Login authenticates a token against the platform under the 30s budget.
// Failure here means the credential is discarded, never retried.
func Login(ctx context.Context, token string) (PlatformSession, error) {
	s, err := discordgo.New(token)
	if err != nil {
		return nil, errorhandler.NewAuthenticationError(err, "create platform session")
	}
	s.Client.Timeout = lookupTimeout

	ready := make(chan *discordgo.Ready, 1)
	remove := s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		select {
		case ready <- r:
		default:
		}
	})
	defer remove()

	if err := s.Open(); err != nil {
		return nil, errorhandler.NewAuthenticationError(err, "open platform session")
	}

	select {
	case r := <-ready:
		return &discordSession{s: s, sessionID: r.SessionID, user: r.User}, nil
	case <-time.After(loginTimeout):
		_ = s.Close()
		return nil, errorhandler.NewAuthenticationError(fmt.Errorf("no ready event within %s", loginTimeout), "open platform session")
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	}
}

func (d *discordSession) UserID() string {
	return d.user.ID
}

func (d *discordSession) Username() string {
	return d.user.Username
}

func (d *discordSession) DisplayName() string {
	if d.user.GlobalName != "" {
		return d.user.GlobalName
	}
	return d.user.Username
}

func (d *discordSession) Guild(guildID string) (*discordgo.Guild, error) {
	return d.s.Guild(guildID)
}

func (d *discordSession) Member(guildID, userID string) (*discordgo.Member, error) {
	return d.s.GuildMember(guildID, userID)
}

func (d *discordSession) Channel(channelID string) (*discordgo.Channel, error) {
	return d.s.Channel(channelID)
}

func (d *discordSession) BotCommands(botID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	return d.s.ApplicationCommands(botID, guildID)
}

// SendCommand issues a slash-command invocation the way a first-party client
// does: a raw interaction POST naming the resolved command, target channel
// and a fresh nonce.
func (d *discordSession) SendCommand(guildID, channelID, nonce string, cmd *discordgo.ApplicationCommand) error {
	payload := map[string]interface{}{
		"type":           2,
		"application_id": cmd.ApplicationID,
		"guild_id":       guildID,
		"channel_id":     channelID,
		"session_id":     d.sessionID,
		"nonce":          nonce,
		"data": map[string]interface{}{
			"version": cmd.Version,
			"id":      cmd.ID,
			"name":    cmd.Name,
			"type":    int(cmd.Type),
			"options": []interface{}{},
		},
	}
	_, err := d.s.Request("POST", discordgo.EndpointAPI+"interactions", payload)
	return err
}

func (d *discordSession) OnMessage(onCreate, onUpdate func(*discordgo.Message)) func() {
	removeCreate := d.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		onCreate(m.Message)
	})
	removeUpdate := d.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		onUpdate(m.Message)
	})
	return func() {
		removeCreate()
		removeUpdate()
	}
}

func (d *discordSession) Close() error {
	return d.s.Close()
}
