package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"groupguard/internal/metrics"
	"groupguard/internal/moderation"

	"github.com/rs/zerolog/log"
)

const defaultHistoryLimit = 10

type command struct {
	restricted bool
	run        func(ctx context.Context, ev Event, args []string) (string, error)
}

func (d *Dispatcher) commandTable() map[string]command {
	return map[string]command{
		"help":     {run: d.cmdHelp},
		"status":   {run: d.cmdStatus},
		"report":   {run: d.cmdReport},
		"warnings": {run: d.cmdWarnings},

		"admin":     {restricted: true, run: d.cmdAdmin},
		"blacklist": {restricted: true, run: d.cmdBlacklist},
		"warn":      {restricted: true, run: d.cmdWarn},
		"unwarn":    {restricted: true, run: d.cmdUnwarn},
		"kick":      {restricted: true, run: d.cmdKick},
	}
}

func usage(u string) error {
	return &moderation.ValidationError{Usage: u}
}

func (d *Dispatcher) cmdWarn(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) < 2 {
		return "", usage(usageWarn)
	}
	target := args[0]
	reason := strings.Join(args[1:], " ")

	if d.stores.Blacklist.IsBlacklisted(ctx, target) {
		return fmt.Sprintf("❌ %s is already blacklisted.", d.label(ctx, ev.GroupID, target)), nil
	}

	result, err := d.stores.Warnings.AddWarning(ctx, ev.GroupID, target, reason, ev.SenderID)
	if err != nil {
		return "", err
	}
	metrics.WarningsTotal.WithLabelValues("add").Inc()

	who := d.label(ctx, ev.GroupID, target)
	count := fmt.Sprintf("%d/%d", result.WarningCount, d.stores.Warnings.Threshold())

	if result.Status != moderation.WarnStatusBlacklisted {
		return block("⚠️ Warning",
			field("User", who),
			field("Reason", reason),
			field("Warned by", ev.SenderID),
			field("Warnings", count),
			field("Time", d.timestamp()),
		), nil
	}

	metrics.BlacklistChangesTotal.WithLabelValues("add").Inc()
	note := "The user has been removed from the group."
	if err := d.kick(ctx, ev.GroupID, target); err != nil {
		note = "⚠️ The user could not be removed from the group."
	}

	return block("⛔ User blacklisted",
		field("User", who),
		field("Reason", d.stores.Warnings.EscalationReason()),
		field("Last warning", reason),
		field("Warned by", ev.SenderID),
		field("Warnings", count),
		field("Time", d.timestamp()),
	) + "\n\n" + note, nil
}

func (d *Dispatcher) cmdUnwarn(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) < 1 {
		return "", usage(usageUnwarn)
	}
	target := args[0]

	remaining, err := d.stores.Warnings.RemoveWarning(ctx, ev.GroupID, target)
	if errors.Is(err, moderation.ErrNotFound) {
		return fmt.Sprintf("❌ %s has no warnings.", d.label(ctx, ev.GroupID, target)), nil
	}
	if err != nil {
		return "", err
	}
	metrics.WarningsTotal.WithLabelValues("remove").Inc()

	return block("✅ Warning removed",
		field("User", d.label(ctx, ev.GroupID, target)),
		field("Removed by", ev.SenderID),
		field("Remaining", fmt.Sprintf("%d/%d", remaining, d.stores.Warnings.Threshold())),
		field("Time", d.timestamp()),
	), nil
}

func (d *Dispatcher) cmdKick(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) < 2 {
		return "", usage(usageKick)
	}
	target := args[0]
	reason := strings.Join(args[1:], " ")

	if d.authorized(ctx, ev.GroupID, target) {
		return msgCannotKickAdmin, nil
	}

	if err := d.kick(ctx, ev.GroupID, target); err != nil {
		return msgKickFailed, nil
	}

	err := d.stores.Blacklist.Add(ctx, target, "kicked by admin: "+reason, ev.SenderID)
	switch {
	case err == nil:
		metrics.BlacklistChangesTotal.WithLabelValues("add").Inc()
	case errors.Is(err, moderation.ErrAlreadyExists):
	default:
		return "", fmt.Errorf("blacklist kicked user: %w", err)
	}

	return block("🚫 User kicked",
		field("User", d.label(ctx, ev.GroupID, target)),
		field("Reason", reason),
		field("Kicked by", ev.SenderID),
		field("Time", d.timestamp()),
	) + "\n\nThe user has been added to the blacklist.", nil
}

func (d *Dispatcher) cmdAdmin(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) == 0 {
		return "", usage(usageAdmin)
	}

	switch strings.ToLower(args[0]) {
	case "list":
		admins := d.stores.Admins.ListAdmins(ctx, ev.GroupID)
		if len(admins) == 0 {
			return msgNoAdmins, nil
		}
		var b strings.Builder
		b.WriteString("👥 Admins:")
		for _, id := range admins {
			b.WriteString("\n- ")
			b.WriteString(d.label(ctx, ev.GroupID, id))
		}
		return b.String(), nil

	case "add":
		if len(args) < 2 {
			return "", usage(usageAdmin)
		}
		target := args[1]
		err := d.stores.Admins.AddAdmin(ctx, ev.GroupID, target)
		if errors.Is(err, moderation.ErrAlreadyExists) {
			return fmt.Sprintf("❌ %s is already an admin.", d.label(ctx, ev.GroupID, target)), nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Added admin: %s", d.label(ctx, ev.GroupID, target)), nil

	case "remove":
		if len(args) < 2 {
			return "", usage(usageAdmin)
		}
		target := args[1]
		err := d.stores.Admins.RemoveAdmin(ctx, ev.GroupID, target)
		if errors.Is(err, moderation.ErrNotFound) {
			return fmt.Sprintf("❌ %s is not an admin.", d.label(ctx, ev.GroupID, target)), nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Removed admin: %s", d.label(ctx, ev.GroupID, target)), nil
	}

	return "", usage(usageAdmin)
}

func (d *Dispatcher) cmdBlacklist(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) == 0 {
		return d.blacklistListing(ctx), nil
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			return "", usage(usageBlacklist)
		}
		return d.blacklistAdd(ctx, ev, args[1], reasonOr(args[2:], "blacklisted by admin"))
	case "remove":
		if len(args) < 2 {
			return "", usage(usageBlacklist)
		}
		return d.blacklistRemove(ctx, ev, args[1], reasonOr(args[2:], "removed by admin"))
	case "history":
		limit := defaultHistoryLimit
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return "", usage(usageBlacklist)
			}
			limit = n
		}
		return d.blacklistHistory(ctx, limit), nil
	}

	return "", usage(usageBlacklist)
}

func (d *Dispatcher) blacklistListing(ctx context.Context) string {
	users := d.stores.Blacklist.List(ctx)
	if len(users) == 0 {
		return msgBlacklistEmpty
	}

	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Blacklist (%d):", len(ids))
	for _, id := range ids {
		entry := users[id]
		fmt.Fprintf(&b, "\n\nUser: %s\nReason: %s\nTime: %s", id, entry.Reason, entry.AddedAt.Local().Format(timeLayout))
	}
	return b.String()
}

func (d *Dispatcher) blacklistAdd(ctx context.Context, ev Event, target, reason string) (string, error) {
	err := d.stores.Blacklist.Add(ctx, target, reason, ev.SenderID)
	if errors.Is(err, moderation.ErrAlreadyExists) {
		return fmt.Sprintf("❌ %s is already blacklisted.", d.label(ctx, ev.GroupID, target)), nil
	}
	if err != nil {
		return "", err
	}
	metrics.BlacklistChangesTotal.WithLabelValues("add").Inc()

	var note string
	switch {
	case d.authorized(ctx, ev.GroupID, target):
		note = "Admins are not removed from the group."
	case d.kick(ctx, ev.GroupID, target) != nil:
		note = "⚠️ The user could not be removed from the group."
	default:
		note = "The user has been removed from the group."
	}

	return block("⛔ User blacklisted",
		field("User", d.label(ctx, ev.GroupID, target)),
		field("Reason", reason),
		field("Added by", ev.SenderID),
		field("Time", d.timestamp()),
	) + "\n\n" + note, nil
}

func (d *Dispatcher) blacklistRemove(ctx context.Context, ev Event, target, reason string) (string, error) {
	err := d.stores.Blacklist.Remove(ctx, target, reason, ev.SenderID)
	if errors.Is(err, moderation.ErrNotFound) {
		return fmt.Sprintf("❌ %s is not blacklisted.", d.label(ctx, ev.GroupID, target)), nil
	}
	if err != nil {
		return "", err
	}
	metrics.BlacklistChangesTotal.WithLabelValues("remove").Inc()

	return block("✅ Removed from blacklist",
		field("User", d.label(ctx, ev.GroupID, target)),
		field("Reason", reason),
		field("Removed by", ev.SenderID),
		field("Time", d.timestamp()),
	), nil
}

func (d *Dispatcher) blacklistHistory(ctx context.Context, limit int) string {
	history := d.stores.Blacklist.History(ctx, limit)
	if len(history) == 0 {
		return msgHistoryEmpty
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 Blacklist history (last %d):", len(history))
	for _, h := range history {
		fmt.Fprintf(&b, "\n%s %s %s (%s)", h.Timestamp.Local().Format(timeLayout), h.Action, h.UserID, h.Reason)
		if h.ActorID != "" {
			fmt.Fprintf(&b, " by %s", h.ActorID)
		}
	}
	return b.String()
}

func (d *Dispatcher) cmdWarnings(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) < 1 {
		return "", usage(usageWarnings)
	}
	target := args[0]
	who := d.label(ctx, ev.GroupID, target)

	warnings := d.stores.Warnings.GetWarnings(ctx, ev.GroupID, target)
	if len(warnings) == 0 {
		return fmt.Sprintf("✅ %s has no warnings.", who), nil
	}

	var b strings.Builder
	b.WriteString(block("⚠️ Warnings",
		field("User", who),
		field("Count", fmt.Sprintf("%d/%d", len(warnings), d.stores.Warnings.Threshold())),
	))
	for i, w := range warnings {
		fmt.Fprintf(&b, "\n\n#%d\nReason: %s\nWarned by: %s\nTime: %s", i+1, w.Reason, w.WarnedBy, w.Timestamp.Local().Format(timeLayout))
	}
	return b.String(), nil
}

func (d *Dispatcher) cmdReport(ctx context.Context, ev Event, args []string) (string, error) {
	if len(args) < 2 {
		return "", usage(usageReport)
	}
	target := args[0]
	reason := strings.Join(args[1:], " ")

	fields := [][2]string{
		field("Reported user", d.label(ctx, ev.GroupID, target)),
		field("Reason", reason),
		field("Reporter", d.label(ctx, ev.GroupID, ev.SenderID)),
		field("Time", d.timestamp()),
	}

	// The broadcast goes out even when the report log is unavailable
	if d.stores.Reports != nil {
		report, err := d.stores.Reports.Record(ctx, moderation.Report{
			GroupID:    ev.GroupID,
			ReporterID: ev.SenderID,
			TargetID:   target,
			Reason:     reason,
		})
		if err != nil {
			log.Error().Err(err).Str("group", ev.GroupID).Str("user", target).Msg("bot: failed to record report")
		} else {
			fields = append(fields, field("Report ID", report.ID))
		}
	}
	metrics.ReportsTotal.Inc()

	return block("⚠️ User report", fields...), nil
}

func (d *Dispatcher) cmdHelp(ctx context.Context, ev Event, args []string) (string, error) {
	admin := d.authorized(ctx, ev.GroupID, ev.SenderID)
	return helpText(d.prefix, admin, d.stores.Warnings.Threshold()), nil
}

func (d *Dispatcher) cmdStatus(ctx context.Context, ev Event, args []string) (string, error) {
	uptime := d.now().Sub(d.started).Truncate(time.Second)
	return block("ℹ️ Bot status",
		field("Status", "running"),
		field("Admins in this group", strconv.Itoa(len(d.stores.Admins.ListAdmins(ctx, ev.GroupID)))),
		field("Blacklisted users", strconv.Itoa(d.stores.Blacklist.Count())),
		field("Warning threshold", strconv.Itoa(d.stores.Warnings.Threshold())),
		field("Commands handled", strconv.FormatFloat(metrics.CommandsHandled(), 'f', 0, 64)),
		field("Uptime", uptime.String()),
		field("Time", d.timestamp()),
	), nil
}

// kick removes user from group through the platform, recording the outcome.
func (d *Dispatcher) kick(ctx context.Context, groupID, userID string) error {
	if err := d.platform.Kick(ctx, groupID, userID); err != nil {
		metrics.KicksTotal.WithLabelValues("error").Inc()
		err = &moderation.ExternalServiceError{Op: "kick", Err: err}
		log.Error().Err(err).Str("group", groupID).Str("user", userID).Msg("bot: kick failed")
		return err
	}
	metrics.KicksTotal.WithLabelValues("ok").Inc()
	log.Info().Str("group", groupID).Str("user", userID).Msg("bot: user kicked")
	return nil
}

func reasonOr(args []string, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return strings.Join(args, " ")
}
