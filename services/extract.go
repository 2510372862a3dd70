package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"QueensProofBot/models"

	"github.com/bwmarrin/discordgo"
)

// ErrUnparseableResponse marks a reply that looked valid but did not carry
// the expected fields, as opposed to a legitimately absent value.
var ErrUnparseableResponse = errors.New("unparseable response")

const (
	gameTitleMarker    = "8 Queens"
	profileTitleMarker = "Profile"
)

var (
	markdownLinkRe = regexp.MustCompile(`\((https?://[^)\s]+)\)`)
	boldNumberRe   = regexp.MustCompile(`\*\*\s*([0-9]+(?:\.[0-9]+)?)\s*%?\s*\*\*`)

	playedFieldRe = regexp.MustCompile(`(?i)games?\s+played`)
	winRateRe     = regexp.MustCompile(`(?i)win\s*rate`)
	winsFieldRe   = regexp.MustCompile(`(?i)\bwins?\b`)
	badgesFieldRe = regexp.MustCompile(`(?i)badges?`)
)

// ExtractGameInfo pulls the game identifier (and optional play URL) from a
// game-start reply.
func ExtractGameInfo(msg *discordgo.Message) (*models.GameInfo, error) {
	if msg == nil || len(msg.Embeds) == 0 {
		return nil, fmt.Errorf("game reply has no embed: %w", ErrUnparseableResponse)
	}
	embed := msg.Embeds[0]
	if !strings.Contains(embed.Title, gameTitleMarker) {
		return nil, fmt.Errorf("embed title %q is not a game announcement: %w", embed.Title, ErrUnparseableResponse)
	}

	info := &models.GameInfo{
		Title:      embed.Title,
		CapturedAt: time.Now(),
	}

	for _, field := range embed.Fields {
		name := strings.ToLower(field.Name)
		switch {
		case strings.Contains(name, "game id"):
			info.GameID = strings.TrimSpace(strings.Trim(strings.TrimSpace(field.Value), "`"))
		case strings.Contains(name, "play"):
			if m := markdownLinkRe.FindStringSubmatch(field.Value); m != nil {
				info.PlayURL = m[1]
			}
		}
	}

	if info.GameID == "" {
		return nil, fmt.Errorf("game reply has no Game ID field: %w", ErrUnparseableResponse)
	}
	return info, nil
}

// ParseProfileStats pulls the four profile numbers from a profile reply.
// Fields the bot omits default to zero; a reply that is not a profile embed
// at all is an unparseable-response error.
func ParseProfileStats(msg *discordgo.Message) (*models.ProfileStats, error) {
	cls := Classify(msg, nil)
	if cls.IsAccessRestricted {
		return nil, fmt.Errorf("profile reply is access restricted: %w", ErrUnparseableResponse)
	}
	if msg == nil || len(msg.Embeds) == 0 {
		return nil, fmt.Errorf("profile reply has no embed: %w", ErrUnparseableResponse)
	}

	var embed *discordgo.MessageEmbed
	for _, e := range msg.Embeds {
		if strings.Contains(e.Title, profileTitleMarker) {
			embed = e
			break
		}
	}
	if embed == nil {
		return nil, fmt.Errorf("no profile embed found: %w", ErrUnparseableResponse)
	}

	var stats models.ProfileStats
	for _, field := range embed.Fields {
		value, ok := boldedNumber(field.Value)
		if !ok {
			continue
		}
		switch {
		case playedFieldRe.MatchString(field.Name):
			stats.Played = int(value)
		case winRateRe.MatchString(field.Name):
			stats.WinRate = value
		case winsFieldRe.MatchString(field.Name):
			stats.Wins = int(value)
		case badgesFieldRe.MatchString(field.Name):
			stats.BadgesEarned = int(value)
		}
	}
	return &stats, nil
}

func boldedNumber(value string) (float64, bool) {
	m := boldNumberRe.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
