package services

import (
	"context"
	"fmt"
	"time"

	"QueensProofBot/config"
	"QueensProofBot/errorhandler"
	"QueensProofBot/logger"
	"QueensProofBot/models"
	"QueensProofBot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const probeAttempts = 2

type RevalidationResult int

const (
	RevalidationUnchanged RevalidationResult = iota
	RevalidationPromoted
	RevalidationRemove
)

// Validator classifies credentials into confirmed or pending accounts via
// guild/role gates and channel probes. Every gate failure discards the
// credential entirely; only the permission gates degrade to pending.
type Validator struct {
	cfg   *config.Config
	login LoginFunc
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{cfg: cfg, login: Login}
}

// Validate runs the full gate sequence for one raw token. A nil account with
// a nil error never happens: discarded credentials always carry the reason.
func (v *Validator) Validate(ctx context.Context, token string) (*models.Account, error) {
	sess, err := v.login(ctx, token)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Log.WithError(cerr).Warn("Failed to close platform session")
		}
	}()

	guild, err := sess.Guild(v.cfg.GuildID)
	if err != nil {
		return nil, errorhandler.NewAuthenticationError(err, "fetch guild")
	}
	member, err := sess.Member(v.cfg.GuildID, sess.UserID())
	if err != nil {
		return nil, errorhandler.NewAuthenticationError(err, "fetch guild membership")
	}

	roles := resolveRoles(guild, member)
	if missing := missingRequiredRoles(roles, v.cfg.RequiredRoleIDs); len(missing) > 0 {
		return nil, errorhandler.NewAuthenticationError(fmt.Errorf("missing required role(s) %v", missing), "role gate")
	}

	acc := &models.Account{
		ID:          sess.UserID(),
		Token:       token,
		Username:    sess.Username(),
		DisplayName: sess.DisplayName(),
		Roles:       roles,
	}
	if len(acc.SpecialRoles(v.cfg.SpecialRoleIDs)) == 0 {
		return nil, errorhandler.NewAuthenticationError(fmt.Errorf("no special role held"), "role gate")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(v.cfg.SessionSettle):
	}

	if ok := v.probeChannel(ctx, sess, acc, v.cfg.PrimaryChannelID, models.ChannelGeneral); ok {
		return acc, nil
	}

	if !v.cfg.HasFallbackChannel() {
		acc.Status = models.StatusPending
		acc.ExecutableChannel = models.ChannelNone
		return acc, nil
	}

	hasView, err := v.fallbackViewPermission(sess, acc)
	if err != nil {
		return nil, errorhandler.NewAuthenticationError(err, "resolve fallback channel permission")
	}
	if !hasView {
		acc.Status = models.StatusPending
		acc.ExecutableChannel = models.ChannelNone
		return acc, nil
	}

	if ok := v.probeChannel(ctx, sess, acc, v.cfg.FallbackChannelID, models.ChannelFallback); ok {
		return acc, nil
	}

	acc.Status = models.StatusPending
	acc.ExecutableChannel = models.ChannelNone
	return acc, nil
}

// probeChannel attempts the profile command in the channel and, on an
// interpretable reply, fills in the account's status and stats. An access
// restriction from the bot still counts as confirmed: the platform-level
// gates already passed, the restriction is informational.
func (v *Validator) probeChannel(ctx context.Context, sess PlatformSession, acc *models.Account, channelID string, channel models.ExecChannel) bool {
	var reply *discordgo.Message
	policy := utils.RetryPolicy{MaxAttempts: probeAttempts}
	err := policy.Do(ctx, func() error {
		m, perr := runCommand(ctx, sess, v.cfg, channelID, commandProfile)
		reply = m
		return perr
	})
	if err != nil {
		logger.Log.WithError(err).WithField("channel", channel).Debugf("Probe failed for %s", acc.Username)
		return false
	}

	cls := Classify(reply, acc.SpecialRoles(v.cfg.SpecialRoleIDs))
	if cls.IsAccessRestricted {
		logger.Log.WithFields(logrus.Fields{
			"account":      acc.Username,
			"requiredRole": cls.RequiredRole,
			"userRole":     cls.UserRole,
		}).Info("Bot reports access restricted; platform checks passed, confirming anyway")
		acc.Status = models.StatusConfirmed
		acc.ExecutableChannel = channel
		return true
	}

	stats, serr := ParseProfileStats(reply)
	if serr != nil {
		logger.Log.WithError(serr).Debugf("Probe reply for %s not parseable", acc.Username)
		return false
	}

	acc.Stats = *stats
	acc.Status = models.StatusConfirmed
	acc.ExecutableChannel = channel
	return true
}

// Revalidate re-checks a pending account against the fallback channel.
// RevalidationRemove signals the caller to drop the account from the store.
func (v *Validator) Revalidate(ctx context.Context, acc *models.Account) RevalidationResult {
	if !v.cfg.HasFallbackChannel() {
		return RevalidationUnchanged
	}

	sess, err := v.login(ctx, acc.Token)
	if err != nil {
		logger.Log.WithError(err).Errorf("Revalidation login failed for %s", acc.Username)
		return RevalidationRemove
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Log.WithError(cerr).Warn("Failed to close platform session")
		}
	}()

	hasView, err := v.fallbackViewPermission(sess, acc)
	if err != nil || !hasView {
		return RevalidationUnchanged
	}

	select {
	case <-ctx.Done():
		return RevalidationUnchanged
	case <-time.After(v.cfg.SessionSettle):
	}

	reply, err := runCommand(ctx, sess, v.cfg, v.cfg.FallbackChannelID, commandProfile)
	if err != nil {
		logger.Log.WithError(err).Errorf("Revalidation probe failed permanently for %s", acc.Username)
		return RevalidationRemove
	}

	cls := Classify(reply, acc.SpecialRoles(v.cfg.SpecialRoleIDs))
	if cls.IsAccessRestricted {
		acc.Status = models.StatusConfirmed
		acc.ExecutableChannel = models.ChannelFallback
		return RevalidationPromoted
	}
	if stats, serr := ParseProfileStats(reply); serr == nil {
		acc.Stats = *stats
		acc.Status = models.StatusConfirmed
		acc.ExecutableChannel = models.ChannelFallback
		return RevalidationPromoted
	}
	return RevalidationUnchanged
}

// fallbackViewPermission reports whether any of the account's special roles
// carries a view-channel overwrite on the fallback channel.
func (v *Validator) fallbackViewPermission(sess PlatformSession, acc *models.Account) (bool, error) {
	ch, err := sess.Channel(v.cfg.FallbackChannelID)
	if err != nil {
		return false, err
	}
	special := acc.SpecialRoles(v.cfg.SpecialRoleIDs)
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		for _, role := range special {
			if ow.ID == role.ID && ow.Allow&discordgo.PermissionViewChannel != 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

func resolveRoles(guild *discordgo.Guild, member *discordgo.Member) []models.Role {
	names := make(map[string]string, len(guild.Roles))
	for _, r := range guild.Roles {
		names[r.ID] = r.Name
	}
	roles := make([]models.Role, 0, len(member.Roles))
	for _, id := range member.Roles {
		roles = append(roles, models.Role{ID: id, Name: names[id]})
	}
	return roles
}

func missingRequiredRoles(held []models.Role, required []string) []string {
	heldSet := make(map[string]bool, len(held))
	for _, r := range held {
		heldSet[r.ID] = true
	}
	var missing []string
	for _, id := range required {
		if !heldSet[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
