package services

import (
	"context"
	"fmt"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/errorhandler"
	"QueensProofBot/logger"

	"github.com/bwmarrin/discordgo"
)

const (
	commandProfile = "profile"
	commandGame    = "8queens"
)

// Runner executes one slash command for one account: fresh login, settle
// delay, command resolution, interaction, reply wait, teardown.
type Runner struct {
	cfg   *config.Config
	login LoginFunc
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, login: Login}
}

func (r *Runner) Run(ctx context.Context, token, channelID, commandName string) (*discordgo.Message, error) {
	sess, err := r.login(ctx, token)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Log.WithError(cerr).Warn("Failed to close platform session")
		}
	}()

	// Platform-side session state needs a moment before commands land.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.cfg.SessionSettle):
	}

	return runCommand(ctx, sess, r.cfg, channelID, commandName)
}

// runCommand issues commandName on an already-settled session and waits for
// the bot's reply. Shared with the validator's channel probes.
func runCommand(ctx context.Context, sess PlatformSession, cfg *config.Config, channelID, commandName string) (*discordgo.Message, error) {
	cmds, err := sess.BotCommands(cfg.BotID, cfg.GuildID)
	if err != nil {
		return nil, errorhandler.NewTransientError(err, "list bot commands")
	}

	var cmd *discordgo.ApplicationCommand
	for _, c := range cmds {
		if c.Name == commandName {
			cmd = c
			break
		}
	}
	if cmd == nil {
		return nil, errorhandler.NewTransientError(fmt.Errorf("command %q not registered by bot %s", commandName, cfg.BotID), "resolve command")
	}

	if err := sess.SendCommand(cfg.GuildID, channelID, GenerateNonce(), cmd); err != nil {
		return nil, errorhandler.NewTransientError(err, "send interaction")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return AwaitBotReply(sess, cfg.BotID, channelID, replyTimeout)
}
