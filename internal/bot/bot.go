package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupguard/internal/metrics"
	"groupguard/internal/moderation"
	"groupguard/internal/tracing"

	"github.com/rs/zerolog/log"
)

// DefaultPrefix is the command prefix used when none is configured
const DefaultPrefix = "!"

// Messenger delivers outbound notifications
type Messenger interface {
	Send(ctx context.Context, groupID, text string) error
	Reply(ctx context.Context, replyToken, text string) error
}

// Kicker removes a user from a group
type Kicker interface {
	Kick(ctx context.Context, groupID, userID string) error
}

// ProfileLookup resolves a group member's display name. Errors are treated as "unknown".
type ProfileLookup interface {
	DisplayName(ctx context.Context, groupID, userID string) (string, error)
}

// Platform bundles the chat platform collaborators
type Platform interface {
	Messenger
	Kicker
	ProfileLookup
}

// Event is an inbound text message from a group
type Event struct {
	GroupID    string
	SenderID   string
	Text       string
	ReplyToken string
}

// Stores holds the moderation state the dispatcher operates on.
// Reports is optional; when nil, reports are broadcast but not recorded.
type Stores struct {
	Blacklist *moderation.BlacklistStore
	Warnings  *moderation.WarningLedger
	Admins    *moderation.AdminRegistry
	Reports   *moderation.ReportLog
}

// Config holds dispatcher settings
type Config struct {
	Prefix      string
	SuperAdmins []string
}

// Dispatcher interprets chat commands, authorizes them, mutates the stores
// and emits exactly one notification per command.
type Dispatcher struct {
	stores      Stores
	platform    Platform
	prefix      string
	superAdmins map[string]struct{}
	commands    map[string]command
	started     time.Time
	now         func() time.Time
}

// New creates a dispatcher
func New(stores Stores, platform Platform, cfg Config) *Dispatcher {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	superAdmins := make(map[string]struct{}, len(cfg.SuperAdmins))
	for _, id := range cfg.SuperAdmins {
		if id = strings.TrimSpace(id); id != "" {
			superAdmins[id] = struct{}{}
		}
	}

	d := &Dispatcher{
		stores:      stores,
		platform:    platform,
		prefix:      prefix,
		superAdmins: superAdmins,
		started:     time.Now(),
		now:         time.Now,
	}
	d.commands = d.commandTable()
	return d
}

// Handle processes one text message. Text that does not start with the command prefix is
// ignored. The returned error only reports a failed notification delivery; every command
// outcome, including denials and store failures, is answered in chat.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, d.prefix) {
		return nil
	}

	fields := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], d.prefix))
	args := fields[1:]

	cmd, ok := d.commands[name]
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown", "unknown").Inc()
		return d.notify(ctx, ev, msgUnknownCommand(d.prefix))
	}

	ctx, span := tracing.CommandSpan(ctx, name, ev.GroupID, ev.SenderID)
	defer span.End()

	logger := log.With().
		Str("command", name).
		Str("group", ev.GroupID).
		Str("actor", ev.SenderID).
		Logger()

	if cmd.restricted {
		if err := d.authorize(ctx, ev.GroupID, ev.SenderID); err != nil {
			logger.Info().Err(err).Msg("bot: restricted command rejected")
			metrics.CommandsTotal.WithLabelValues(name, "denied").Inc()
			return d.notify(ctx, ev, msgPermissionDenied)
		}
	}

	reply, err := cmd.run(ctx, ev, args)
	outcome := "ok"
	var verr *moderation.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		outcome = "invalid"
		reply = msgUsage(d.prefix, verr.Usage)
	default:
		outcome = "error"
		tracing.EndWithError(span, err)
		logger.Error().Err(err).Msg("bot: command failed")
		reply = msgGenericFailure
	}
	metrics.CommandsTotal.WithLabelValues(name, outcome).Inc()

	return d.notify(ctx, ev, reply)
}

func (d *Dispatcher) authorize(ctx context.Context, groupID, senderID string) error {
	if !d.authorized(ctx, groupID, senderID) {
		return moderation.ErrPermissionDenied
	}
	return nil
}

// authorized reports whether sender may run admin-restricted commands in group.
// Super-admins bypass the per-group roster.
func (d *Dispatcher) authorized(ctx context.Context, groupID, senderID string) bool {
	if _, ok := d.superAdmins[senderID]; ok {
		return true
	}
	return d.stores.Admins.IsAdmin(ctx, groupID, senderID)
}

// notify sends text as a reply when the event carries a reply token, otherwise pushes it
// to the group.
func (d *Dispatcher) notify(ctx context.Context, ev Event, text string) error {
	var err error
	op := "push"
	if ev.ReplyToken != "" {
		op = "reply"
		err = d.platform.Reply(ctx, ev.ReplyToken, text)
	} else {
		err = d.platform.Send(ctx, ev.GroupID, text)
	}
	if err != nil {
		err = &moderation.ExternalServiceError{Op: op, Err: err}
		log.Error().Err(err).Str("group", ev.GroupID).Msg("bot: failed to deliver notification")
		return err
	}
	return nil
}

// label renders a user for chat output, falling back to a placeholder name when the
// profile lookup fails.
func (d *Dispatcher) label(ctx context.Context, groupID, userID string) string {
	name, err := d.platform.DisplayName(ctx, groupID, userID)
	if err != nil || name == "" {
		if err != nil {
			log.Debug().Err(err).Str("group", groupID).Str("user", userID).Msg("bot: profile lookup failed")
		}
		name = unknownUserName
	}
	return fmt.Sprintf("%s (%s)", name, userID)
}

func (d *Dispatcher) timestamp() string {
	return d.now().Format(timeLayout)
}
