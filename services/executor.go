package services

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/errorhandler"
	"QueensProofBot/logger"
	"QueensProofBot/models"

	"github.com/creack/pty"
	"github.com/google/shlex"
)

const (
	executorTimeout = 60 * time.Second

	passwordPrompt = "enter password to decrypt the secret key:"
)

var (
	keyNameArgRe = regexp.MustCompile(`--key-name[= ](?:"[^"]*"|\S+)`)
	nonKeyCharRe = regexp.MustCompile(`[^a-z0-9]+`)

	txStatusRe   = regexp.MustCompile(`(?i)status:\s*(\S+)`)
	txDigestRe   = regexp.MustCompile(`(?i)transaction\s+digest:\s*(\S+)`)
	txExplorerRe = regexp.MustCompile(`(?i)explorer(?:\s+link)?:\s*(https?://\S+)`)
	txBlobRe     = regexp.MustCompile(`(?i)proof\s+blob\s+id:\s*(\S+)`)

	errorLinePrefixes = []string{"error:", "error ", "failed:", "failed to", "panic:"}
)

// Executor runs the generated wallet CLI command in a pseudo-terminal so the
// interactive password prompt can be answered.
type Executor struct {
	cfg *config.Config
}

func NewExecutor(cfg *config.Config) *Executor {
	return &Executor{cfg: cfg}
}

// KeyNameForAccount derives the wallet key name from a username: lowercased,
// runs of non-alphanumerics collapsed to single underscores.
func KeyNameForAccount(username string) string {
	name := nonKeyCharRe.ReplaceAllString(strings.ToLower(username), "_")
	return strings.Trim(name, "_")
}

// BuildCommand rewrites the --key-name argument of the generated command to
// the account's own key. The rest of the command runs verbatim.
func BuildCommand(raw, keyName string) string {
	return keyNameArgRe.ReplaceAllString(raw, "--key-name="+keyName)
}

func Tokenize(command string) ([]string, error) {
	tokens, err := shlex.Split(command)
	if err != nil {
		return nil, errorhandler.NewSubprocessError(fmt.Errorf("failed to tokenize command: %w", err), "tokenize CLI command")
	}
	if len(tokens) == 0 {
		return nil, errorhandler.NewSubprocessError(fmt.Errorf("empty command"), "tokenize CLI command")
	}
	return tokens, nil
}

// Execute runs the command under a PTY, injects the wallet password exactly
// once when prompted, and parses the transaction receipt from the combined
// output. A watchdog kills the process after 60s.
func (e *Executor) Execute(ctx context.Context, rawCommand, keyName string) (*models.TransactionResult, error) {
	command := BuildCommand(rawCommand, keyName)
	tokens, err := Tokenize(command)
	if err != nil {
		return nil, err
	}

	logger.Log.WithField("keyName", keyName).Infof("Executing %s with %d argument(s)", tokens[0], len(tokens)-1)

	cmd := exec.CommandContext(ctx, tokens[0], tokens[1:]...)
	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, errorhandler.NewSubprocessError(fmt.Errorf("failed to start %s: %w", tokens[0], err), "start CLI process")
	}
	defer tty.Close()

	watchdog := time.AfterFunc(executorTimeout, func() {
		logger.Log.Warnf("CLI process exceeded %s, killing", executorTimeout)
		_ = cmd.Process.Kill()
	})
	defer watchdog.Stop()

	// The prompt has no trailing newline, so the output is read in chunks
	// rather than lines. The PTY read errors out when the child exits; the
	// exit status below is the signal that matters.
	var output strings.Builder
	var injectOnce sync.Once
	buf := make([]byte, 4096)
	for {
		n, rerr := tty.Read(buf)
		if n > 0 {
			output.Write(buf[:n])
			if strings.Contains(strings.ToLower(output.String()), passwordPrompt) {
				injectOnce.Do(func() {
					if _, werr := tty.Write([]byte(e.cfg.WalletCLIPassword + "\r")); werr != nil {
						logger.Log.WithError(werr).Error("Failed to write wallet password to PTY")
					}
				})
			}
		}
		if rerr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	combined := output.String()

	if waitErr != nil {
		detail := extractErrorLine(combined)
		return nil, errorhandler.NewSubprocessError(fmt.Errorf("CLI exited with error: %s (%v)", detail, waitErr), "run CLI command")
	}

	result := parseTransactionResult(combined)
	logger.Log.WithField("digest", result.Digest).Infof("Transaction %s", result.Status)
	return result, nil
}

// parseTransactionResult scrapes the receipt fields from CLI output. Missing
// fields become "unknown" so a partial receipt still logs usefully.
func parseTransactionResult(output string) *models.TransactionResult {
	result := &models.TransactionResult{
		Status:       "unknown",
		Digest:       "unknown",
		ExplorerLink: "unknown",
		ProofBlobID:  "unknown",
	}
	if m := txStatusRe.FindStringSubmatch(output); m != nil {
		result.Status = m[1]
	}
	if m := txDigestRe.FindStringSubmatch(output); m != nil {
		result.Digest = m[1]
	}
	if m := txExplorerRe.FindStringSubmatch(output); m != nil {
		result.ExplorerLink = m[1]
	}
	if m := txBlobRe.FindStringSubmatch(output); m != nil {
		result.ProofBlobID = m[1]
	}
	return result
}

// extractErrorLine finds the most descriptive line of a failed run: the first
// line opening with a known error prefix, else the last non-blank line.
func extractErrorLine(output string) string {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		for _, prefix := range errorLinePrefixes {
			if strings.HasPrefix(lower, prefix) {
				return trimmed
			}
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return "no output"
}
