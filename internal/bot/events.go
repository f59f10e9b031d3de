package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// JoinEvent is delivered when the bot itself is added to a group. InviterID is the user who
// triggered the event, when the platform reports one.
type JoinEvent struct {
	GroupID    string
	InviterID  string
	ReplyToken string
}

// MemberJoinedEvent is delivered when users join a group the bot is in
type MemberJoinedEvent struct {
	GroupID    string
	UserIDs    []string
	ReplyToken string
}

// HandleJoin seeds the group's admin roster with the inviter and greets the group.
func (d *Dispatcher) HandleJoin(ctx context.Context, ev JoinEvent) error {
	msg := Event{GroupID: ev.GroupID, ReplyToken: ev.ReplyToken}

	if ev.InviterID == "" {
		log.Warn().Str("group", ev.GroupID).Msg("bot: joined group without a known inviter, no admin seeded")
		return d.notify(ctx, msg, fmt.Sprintf(
			"👋 Hello! No admin is set for this group yet. Ask a bot operator to run %sadmin add <user>.", d.prefix))
	}

	seeded, err := d.stores.Admins.InitializeGroup(ctx, ev.GroupID, ev.InviterID)
	if err != nil {
		log.Error().Err(err).Str("group", ev.GroupID).Str("user", ev.InviterID).Msg("bot: failed to initialize group")
		return d.notify(ctx, msg, msgGenericFailure)
	}

	if !seeded {
		return d.notify(ctx, msg, fmt.Sprintf("👋 Hello again! Type %shelp to see available commands.", d.prefix))
	}
	return d.notify(ctx, msg, fmt.Sprintf("👋 Hello! %s is now an admin of this group. Type %shelp to see available commands.",
		d.label(ctx, ev.GroupID, ev.InviterID), d.prefix))
}

// HandleMemberJoined kicks every joining user who is on the blacklist. The group is notified
// once per delivery, and only when a blacklisted user was found.
func (d *Dispatcher) HandleMemberJoined(ctx context.Context, ev MemberJoinedEvent) error {
	var removed, failed []string
	for _, userID := range ev.UserIDs {
		if !d.stores.Blacklist.IsBlacklisted(ctx, userID) {
			continue
		}
		log.Info().Str("group", ev.GroupID).Str("user", userID).Msg("bot: blacklisted user joined")
		if err := d.kick(ctx, ev.GroupID, userID); err != nil {
			failed = append(failed, userID)
			continue
		}
		removed = append(removed, userID)
	}

	if len(removed) == 0 && len(failed) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("🚫 Blacklisted users detected")
	if len(removed) > 0 {
		b.WriteString("\nRemoved: ")
		b.WriteString(strings.Join(removed, ", "))
	}
	if len(failed) > 0 {
		b.WriteString("\n⚠️ Could not remove: ")
		b.WriteString(strings.Join(failed, ", "))
	}
	return d.notify(ctx, Event{GroupID: ev.GroupID, ReplyToken: ev.ReplyToken}, b.String())
}
