package services

import (
	"regexp"
	"strings"

	"QueensProofBot/models"

	"github.com/bwmarrin/discordgo"
)

var rateLimitPhrases = []string{
	"too many games recently",
	"wait 24 hours",
}

const restrictedTitleMarker = "Access Restricted"

var boldTextRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// Classify inspects one bot reply. Rate limiting is detected in the body
// text, access restriction in the first embed's title; the two checks are
// independent. callerSpecialRoles, when supplied for a restricted reply, is
// used to report which of the caller's own roles matched the special set.
func Classify(msg *discordgo.Message, callerSpecialRoles []models.Role) models.Classification {
	var c models.Classification
	if msg == nil {
		c.ErrorType = models.ErrorInvalidReply
		return c
	}

	body := strings.ToLower(msg.Content)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(body, phrase) {
			c.IsRateLimited = true
			break
		}
	}

	if len(msg.Embeds) > 0 && strings.Contains(msg.Embeds[0].Title, restrictedTitleMarker) {
		c.IsAccessRestricted = true
	}

	c.HasValidResponse = len(msg.Embeds) > 0 || strings.TrimSpace(msg.Content) != ""

	switch {
	case c.IsRateLimited:
		c.ErrorType = models.ErrorRateLimit
	case c.IsAccessRestricted:
		c.ErrorType = models.ErrorBotRestriction
	case !c.HasValidResponse:
		c.ErrorType = models.ErrorInvalidReply
	}

	if c.IsAccessRestricted && len(callerSpecialRoles) > 0 {
		c.RequiredRole = extractRequiredRole(msg)
		c.UserRole = callerSpecialRoles[0].Name
	}

	return c
}

func extractRequiredRole(msg *discordgo.Message) string {
	for _, embed := range msg.Embeds {
		for _, field := range embed.Fields {
			if !strings.Contains(strings.ToLower(field.Name), "required role") {
				continue
			}
			if m := boldTextRe.FindStringSubmatch(field.Value); m != nil {
				return strings.TrimSpace(m[1])
			}
			return strings.TrimSpace(field.Value)
		}
	}
	return ""
}
