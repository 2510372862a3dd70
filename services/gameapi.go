package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/errorhandler"
	"QueensProofBot/logger"
	"QueensProofBot/models"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const (
	submitPath = "/api/game/complete"

	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 2160 // ~3 hours at 5s

	progressLogEvery = 60  // ~5 min
	networkLogEvery  = 120 // ~10 min

	cliCommandMarker = "soundness-cli send"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var pollFailurePhrases = []string{
	"Proof generation failed - no blob ID available",
	"Proof generation failed",
}

var (
	victoryAnchorRe = regexp.MustCompile(`href="([^"]*/r/victory/[^"]*)"`)
	codeBlockRe     = regexp.MustCompile(`(?s)<code[^>]*>(.*?)</code>`)
	htmlTagRe       = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// GameClient talks to the game's web backend. Requests carry a Chrome TLS
// profile and browser-like headers, and redirects are left unfollowed so the
// victory Location header is observable.
type GameClient struct {
	baseURL string
	http    tls_client.HttpClient

	pollInterval    time.Duration
	maxPollAttempts int
}

func NewGameClient(cfg *config.Config) (*GameClient, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(30),
		tls_client.WithNotFollowRedirects(),
	}
	c, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create game HTTP client: %w", err)
	}
	return &GameClient{
		baseURL:         cfg.GameBaseURL,
		http:            c,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultPollAttempts,
	}, nil
}

func (g *GameClient) browserHeaders(referer string) http.Header {
	h := http.Header{
		"accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"accept-language": {"en-US,en;q=0.9"},
		"cache-control":   {"no-cache"},
		"user-agent":      {defaultUserAgent},
	}
	if referer != "" {
		h.Set("referer", referer)
	}
	return h
}

// SubmitCompletion posts the solved game and returns the victory URL: the
// redirect Location when the backend answers with one, otherwise the first
// /r/victory/ anchor in the response body.
func (g *GameClient) SubmitCompletion(ctx context.Context, gameID string, stats models.GameStats) (string, error) {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("failed to encode game stats: %w", err)
	}

	form := url.Values{
		"game_id":  {gameID},
		"solution": {SolutionEncoding()},
		"stats":    {string(statsJSON)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+submitPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header = g.browserHeaders(g.baseURL + "/game/" + gameID)
	req.Header.Set("content-type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", errorhandler.NewTransientError(err, "submit game completion")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", errorhandler.NewPollError(fmt.Errorf("redirect without Location header"), "submit game completion")
		}
		return g.resolveURL(loc)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errorhandler.NewTransientError(err, "read submission response")
	}
	if resp.StatusCode >= 400 {
		return "", errorhandler.NewPollError(fmt.Errorf("submission returned HTTP %d", resp.StatusCode), "submit game completion")
	}
	if m := victoryAnchorRe.FindSubmatch(body); m != nil {
		return g.resolveURL(string(m[1]))
	}
	return "", errorhandler.NewPollError(fmt.Errorf("no victory link in submission response"), "submit game completion")
}

// PollForCLICommand polls the victory page until the generated CLI command
// appears. Transport errors are swallowed and retried; any 4xx/5xx status or
// a known terminal failure phrase aborts immediately.
func (g *GameClient) PollForCLICommand(ctx context.Context, victoryURL string) (string, error) {
	target, err := g.resolveURL(victoryURL)
	if err != nil {
		return "", err
	}

	start := time.Now()
	networkErrors := 0

	for attempt := 1; attempt <= g.maxPollAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.pollInterval):
			}
		}

		body, status, err := g.fetch(ctx, target)
		if err != nil {
			networkErrors++
			if networkErrors%networkLogEvery == 0 {
				logger.Log.WithError(err).Warnf("Victory page still unreachable after %d network errors", networkErrors)
			}
			continue
		}

		if status >= 400 {
			return "", errorhandler.NewPollError(fmt.Errorf("victory page returned HTTP %d on attempt %d", status, attempt), "poll for CLI command")
		}
		if status != http.StatusOK {
			continue
		}

		for _, phrase := range pollFailurePhrases {
			if strings.Contains(body, phrase) {
				return "", errorhandler.NewPollError(fmt.Errorf("backend reported %q", phrase), "poll for CLI command")
			}
		}

		if cmd, ok := extractCLICommand(body); ok {
			logger.Log.Infof("CLI command ready after %d attempt(s) (%s)", attempt, time.Since(start).Round(time.Second))
			return cmd, nil
		}

		if attempt%progressLogEvery == 0 {
			logger.Log.Infof("Still waiting for proof generation, attempt %d/%d (%s elapsed)", attempt, g.maxPollAttempts, time.Since(start).Round(time.Second))
		}
	}

	return "", errorhandler.NewPollError(fmt.Errorf("no CLI command after %d attempts (%s elapsed)", g.maxPollAttempts, time.Since(start).Round(time.Second)), "poll for CLI command")
}

func (g *GameClient) fetch(ctx context.Context, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header = g.browserHeaders(g.baseURL + "/")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}

// extractCLICommand finds the code block carrying the generated command and
// normalizes it: entity-unescape, strip leftover tags, collapse whitespace.
func extractCLICommand(body string) (string, bool) {
	for _, m := range codeBlockRe.FindAllStringSubmatch(body, -1) {
		if !strings.Contains(m[1], cliCommandMarker) {
			continue
		}
		cmd := html.UnescapeString(m[1])
		cmd = htmlTagRe.ReplaceAllString(cmd, " ")
		cmd = strings.TrimSpace(whitespaceRe.ReplaceAllString(cmd, " "))
		return cmd, true
	}
	return "", false
}

func (g *GameClient) resolveURL(raw string) (string, error) {
	base, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid game base URL %q: %w", g.baseURL, err)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid victory URL %q: %w", raw, err)
	}
	return base.ResolveReference(ref).String(), nil
}
