package services

import (
	"context"
	"fmt"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/errorhandler"
	"QueensProofBot/logger"
	"QueensProofBot/models"
	"QueensProofBot/storage"
	"QueensProofBot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const statsRefreshAttempts = 2

// CommandRunner executes one slash command for one account token.
type CommandRunner interface {
	Run(ctx context.Context, token, channelID, commandName string) (*discordgo.Message, error)
}

// GameBackend handles the web side of a game: submitting the completion and
// polling for the generated CLI command.
type GameBackend interface {
	SubmitCompletion(ctx context.Context, gameID string, stats models.GameStats) (string, error)
	PollForCLICommand(ctx context.Context, victoryURL string) (string, error)
}

// TxExecutor runs the generated wallet command for an account's key.
type TxExecutor interface {
	Execute(ctx context.Context, rawCommand, keyName string) (*models.TransactionResult, error)
}

// AccountRevalidator re-checks pending accounts for promotion or removal.
type AccountRevalidator interface {
	Revalidate(ctx context.Context, acc *models.Account) RevalidationResult
}

// Orchestrator drives the hourly cycle: revalidate pending accounts, play one
// game per confirmed account, refresh stats, persist. Accounts are processed
// strictly one at a time.
type Orchestrator struct {
	cfg         *config.Config
	store       *storage.Store
	runner      CommandRunner
	backend     GameBackend
	executor    TxExecutor
	revalidator AccountRevalidator

	pacer *rate.Limiter
}

func NewOrchestrator(cfg *config.Config, store *storage.Store, runner CommandRunner, backend GameBackend, executor TxExecutor, revalidator AccountRevalidator) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		store:       store,
		runner:      runner,
		backend:     backend,
		executor:    executor,
		revalidator: revalidator,
		pacer:       rate.NewLimiter(rate.Every(cfg.CommandDelay), 1),
	}
}

// Run loops cycles until the context ends. A failed cycle is logged and never
// fatal; the next one starts after the configured interval regardless.
func (o *Orchestrator) Run(ctx context.Context) {
	for cycle := 1; ; cycle++ {
		logger.Log.Infof("Starting cycle %d with %d account(s)", cycle, o.store.Len())
		start := time.Now()

		if err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.WithError(err).Errorf("Cycle %d failed", cycle)
		} else {
			logger.Log.Infof("Cycle %d finished in %s", cycle, time.Since(start).Round(time.Second))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.CycleInterval):
		}
	}
}

// RunCycle performs one full pass over the store.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.revalidatePending(ctx)

	completed := o.playGames(ctx)

	if completed > 0 {
		o.refreshStats(ctx)
	} else {
		logger.Log.Info("No games completed this cycle, skipping stats refresh")
	}

	if err := o.store.SaveIfDirty(); err != nil {
		return fmt.Errorf("failed to persist accounts: %w", err)
	}
	return ctx.Err()
}

func (o *Orchestrator) revalidatePending(ctx context.Context) {
	pending := o.store.ByStatus(models.StatusPending)
	if len(pending) == 0 {
		return
	}
	logger.Log.Infof("Revalidating %d pending account(s)", len(pending))

	for _, acc := range pending {
		if err := o.pacer.Wait(ctx); err != nil {
			return
		}
		switch o.revalidator.Revalidate(ctx, &acc) {
		case RevalidationPromoted:
			logger.Log.Infof("Account %s promoted to confirmed", acc.Username)
			o.store.Upsert(acc)
		case RevalidationRemove:
			logger.Log.Warnf("Account %s failed revalidation, removing", acc.Username)
			o.store.Remove(acc.ID)
		}
	}
}

// playGames runs one game for each confirmed account, returning how many
// completed end to end.
func (o *Orchestrator) playGames(ctx context.Context) int {
	confirmed := o.store.ByStatus(models.StatusConfirmed)
	completed := 0

	for _, acc := range confirmed {
		if err := o.pacer.Wait(ctx); err != nil {
			return completed
		}

		err := o.playGame(ctx, acc)
		if err == nil {
			o.store.ResetFailures(acc.ID)
			completed++
			continue
		}
		if ctx.Err() != nil {
			return completed
		}

		logger.Log.WithError(err).WithFields(logrus.Fields{
			"account":  acc.Username,
			"category": errorhandler.CategoryOf(err).String(),
		}).Error("Game run failed")

		if errorhandler.CountsTowardEviction(err) {
			o.store.MarkFailure(acc.ID, err)
		}
	}

	logger.Log.Infof("Completed %d/%d game(s)", completed, len(confirmed))
	return completed
}

func (o *Orchestrator) playGame(ctx context.Context, acc models.Account) error {
	channelID, err := o.channelFor(acc)
	if err != nil {
		return err
	}

	reply, err := o.runner.Run(ctx, acc.Token, channelID, commandGame)
	if err != nil {
		return err
	}

	cls := Classify(reply, nil)
	if cls.IsRateLimited {
		return errorhandler.NewResponseError(fmt.Errorf("bot rate-limited the account"), "start game")
	}
	if cls.IsAccessRestricted {
		return errorhandler.NewResponseError(fmt.Errorf("bot restricted the account"), "start game")
	}

	info, err := ExtractGameInfo(reply)
	if err != nil {
		return errorhandler.NewResponseError(err, "parse game announcement")
	}
	logger.Log.WithField("gameID", info.GameID).Infof("Game started for %s", acc.Username)

	victoryURL, err := o.backend.SubmitCompletion(ctx, info.GameID, NewGameStats())
	if err != nil {
		return err
	}

	cliCommand, err := o.backend.PollForCLICommand(ctx, victoryURL)
	if err != nil {
		return err
	}

	result, err := o.executor.Execute(ctx, cliCommand, KeyNameForAccount(acc.Username))
	if err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"account":  acc.Username,
		"gameID":   info.GameID,
		"digest":   result.Digest,
		"explorer": result.ExplorerLink,
	}).Info("Proof transaction submitted")
	return nil
}

// refreshStats re-runs the profile command for every confirmed account and
// stores the updated numbers.
func (o *Orchestrator) refreshStats(ctx context.Context) {
	confirmed := o.store.ByStatus(models.StatusConfirmed)
	logger.Log.Infof("Refreshing stats for %d account(s)", len(confirmed))

	for _, acc := range confirmed {
		if err := o.pacer.Wait(ctx); err != nil {
			return
		}
		channelID, err := o.channelFor(acc)
		if err != nil {
			continue
		}

		var reply *discordgo.Message
		policy := utils.RetryPolicy{MaxAttempts: statsRefreshAttempts, Stop: errorhandler.IsPermanent}
		err = policy.Do(ctx, func() error {
			m, rerr := o.runner.Run(ctx, acc.Token, channelID, commandProfile)
			reply = m
			return rerr
		})
		if err != nil {
			logger.Log.WithError(err).Warnf("Stats refresh failed for %s", acc.Username)
			continue
		}

		stats, err := ParseProfileStats(reply)
		if err != nil {
			logger.Log.WithError(err).Warnf("Stats reply for %s not parseable", acc.Username)
			continue
		}

		if acc.Stats != *stats {
			logger.Log.WithFields(logrus.Fields{
				"account": acc.Username,
				"played":  fmt.Sprintf("%d -> %d", acc.Stats.Played, stats.Played),
				"wins":    fmt.Sprintf("%d -> %d", acc.Stats.Wins, stats.Wins),
			}).Info("Stats updated")
		}
		o.store.UpdateStats(acc.ID, *stats)
	}
}

func (o *Orchestrator) channelFor(acc models.Account) (string, error) {
	switch acc.ExecutableChannel {
	case models.ChannelGeneral:
		return o.cfg.PrimaryChannelID, nil
	case models.ChannelFallback:
		return o.cfg.FallbackChannelID, nil
	default:
		return "", errorhandler.NewPermissionError(fmt.Errorf("account %s has no executable channel", acc.Username), "select channel")
	}
}
