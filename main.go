package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/logger"
	"QueensProofBot/services"
	"QueensProofBot/storage"
)

const tokensFile = "tokens.txt"

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithField("panic", r).Error("Recovered from panic")
		}
	}()

	if err := run(); err != nil {
		logger.Log.WithError(err).Fatal("Bot failed to start")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The wallet CLI is useless without its encrypted key store; better to
	// halt here than fail on the first transaction hours from now.
	if _, err := os.Stat(cfg.KeyStoreFile); err != nil {
		return fmt.Errorf("key store %s not found: generate account keys with soundness-cli before starting (%w)", cfg.KeyStoreFile, err)
	}

	if err := services.ValidateSolution(); err != nil {
		return fmt.Errorf("built-in solution is broken: %w", err)
	}

	store, err := storage.Load(cfg.AccountsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := collectTokens()
	if err != nil {
		return err
	}
	if len(tokens) > 0 {
		validateTokens(ctx, cfg, store, tokens)
		if err := store.Save(); err != nil {
			return err
		}
	}

	if store.Len() == 0 {
		return fmt.Errorf("no usable accounts; supply tokens via %s or the prompt", tokensFile)
	}

	runner := services.NewRunner(cfg)
	backend, err := services.NewGameClient(cfg)
	if err != nil {
		return err
	}
	executor := services.NewExecutor(cfg)
	validator := services.NewValidator(cfg)

	orch := services.NewOrchestrator(cfg, store, runner, backend, executor, validator)
	orch.Run(ctx)

	logger.Log.Info("Shutting down")
	return store.SaveIfDirty()
}

// collectTokens reads tokens from tokens.txt when present, otherwise prompts
// on stdin until an empty line.
func collectTokens() ([]string, error) {
	if raw, err := os.ReadFile(tokensFile); err == nil {
		var tokens []string
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tokens = append(tokens, line)
		}
		logger.Log.Infof("Read %d token(s) from %s", len(tokens), tokensFile)
		return tokens, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", tokensFile, err)
	}

	fmt.Println("Enter account tokens, one per line. Empty line to finish:")
	var tokens []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tokens from stdin: %w", err)
	}
	return tokens, nil
}

// validateTokens runs the full gate sequence for each supplied token and
// stores whatever survives. Failed tokens are logged and dropped.
func validateTokens(ctx context.Context, cfg *config.Config, store *storage.Store, tokens []string) {
	validator := services.NewValidator(cfg)

	for i, token := range tokens {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.CommandDelay):
			}
		}

		acc, err := validator.Validate(ctx, token)
		if err != nil {
			logger.Log.WithError(err).Warnf("Token %d/%d rejected", i+1, len(tokens))
			continue
		}
		logger.Log.Infof("Token %d/%d validated as %s (%s, channel %s)", i+1, len(tokens), acc.Username, acc.Status, acc.ExecutableChannel)
		store.Upsert(*acc)
	}
}
