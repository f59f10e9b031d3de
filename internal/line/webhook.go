package line

import (
	"context"
	"errors"
	"net/http"

	"groupguard/internal/bot"
	"groupguard/internal/metrics"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	maxBodySize = 1 << 20

	// seenEventsSize bounds the webhookEventId memory used to drop redeliveries
	seenEventsSize = 4096
)

// EventSink receives decoded group events
type EventSink interface {
	Handle(ctx context.Context, ev bot.Event) error
	HandleJoin(ctx context.Context, ev bot.JoinEvent) error
	HandleMemberJoined(ctx context.Context, ev bot.MemberJoinedEvent) error
}

// WebhookHandler verifies and decodes webhook deliveries and hands each group event to the sink.
// Events whose webhookEventId was already handled are skipped, so a platform retry of a
// delivery never applies a command twice.
type WebhookHandler struct {
	secret string
	sink   EventSink
	seen   *lru.Cache[string, struct{}]
}

// NewWebhookHandler creates a handler verifying deliveries with the channel secret
func NewWebhookHandler(channelSecret string, sink EventSink) *WebhookHandler {
	seen, err := lru.New[string, struct{}](seenEventsSize)
	if err != nil {
		// Only fails for a non-positive size
		panic(err)
	}
	return &WebhookHandler{secret: channelSecret, sink: sink, seen: seen}
}

// eventMeta is the envelope data every webhook event carries
type eventMeta struct {
	kind       string
	id         string
	redelivery bool
	source     webhook.SourceInterface
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	annotate(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("delivery", uuid.NewString()) })

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	cb, err := webhook.ParseRequest(h.secret, r)
	if errors.Is(err, webhook.ErrInvalidSignature) {
		metrics.WebhookSignatureFailuresTotal.Inc()
		annotate(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("signature", "invalid") })
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("line: rejected webhook with invalid signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("line: malformed webhook payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var redeliveries, duplicates int
	for _, event := range cb.Events {
		meta := metaOf(event)
		if meta.redelivery {
			redeliveries++
		}
		if meta.id != "" {
			if seen, _ := h.seen.ContainsOrAdd(meta.id, struct{}{}); seen {
				duplicates++
				log.Info().Str("event_id", meta.id).Str("event_type", meta.kind).Msg("line: skipping already handled event")
				continue
			}
		}
		h.dispatch(ctx, meta, event)
	}

	annotate(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("signature", "valid").
			Int("events", len(cb.Events)).
			Int("redeliveries", redeliveries).
			Int("duplicates", duplicates)
	})

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *WebhookHandler) dispatch(ctx context.Context, meta eventMeta, event webhook.EventInterface) {
	metrics.WebhookEventsTotal.WithLabelValues(meta.kind).Inc()

	groupID, userID, ok := groupSource(meta.source)
	logger := log.With().
		Str("event_type", meta.kind).
		Str("event_id", meta.id).
		Str("group", groupID).
		Bool("redelivery", meta.redelivery).
		Logger()

	if !ok {
		logger.Debug().Msg("line: ignoring event outside a group")
		return
	}

	var err error
	switch e := event.(type) {
	case webhook.MessageEvent:
		text, isText := e.Message.(webhook.TextMessageContent)
		if !isText {
			return
		}
		err = h.sink.Handle(ctx, bot.Event{
			GroupID:    groupID,
			SenderID:   userID,
			Text:       text.Text,
			ReplyToken: e.ReplyToken,
		})
	case webhook.JoinEvent:
		err = h.sink.HandleJoin(ctx, bot.JoinEvent{
			GroupID:    groupID,
			InviterID:  userID,
			ReplyToken: e.ReplyToken,
		})
	case webhook.MemberJoinedEvent:
		if e.Joined == nil {
			return
		}
		ids := make([]string, 0, len(e.Joined.Members))
		for _, m := range e.Joined.Members {
			if m.UserId != "" {
				ids = append(ids, m.UserId)
			}
		}
		err = h.sink.HandleMemberJoined(ctx, bot.MemberJoinedEvent{
			GroupID:    groupID,
			UserIDs:    ids,
			ReplyToken: e.ReplyToken,
		})
	case webhook.MemberLeftEvent, webhook.LeaveEvent:
		logger.Info().Msg("line: membership change")
		return
	default:
		logger.Debug().Msg("line: unhandled event type")
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("line: event handling failed")
	}
}

func metaOf(event webhook.EventInterface) eventMeta {
	meta := eventMeta{kind: event.GetType()}
	var delivery *webhook.DeliveryContext
	switch e := event.(type) {
	case webhook.MessageEvent:
		meta.id, meta.source, delivery = e.WebhookEventId, e.Source, e.DeliveryContext
	case webhook.JoinEvent:
		meta.id, meta.source, delivery = e.WebhookEventId, e.Source, e.DeliveryContext
	case webhook.MemberJoinedEvent:
		meta.id, meta.source, delivery = e.WebhookEventId, e.Source, e.DeliveryContext
	case webhook.MemberLeftEvent:
		meta.id, meta.source, delivery = e.WebhookEventId, e.Source, e.DeliveryContext
	case webhook.LeaveEvent:
		meta.id, meta.source, delivery = e.WebhookEventId, e.Source, e.DeliveryContext
	}
	meta.redelivery = delivery != nil && delivery.IsRedelivery
	return meta
}

func groupSource(src webhook.SourceInterface) (groupID, userID string, ok bool) {
	g, isGroup := src.(webhook.GroupSource)
	if !isGroup || g.GroupId == "" {
		return "", "", false
	}
	return g.GroupId, g.UserId, true
}

// annotate adds fields to the request's access log line, when one is being written
func annotate(ctx context.Context, update func(c zerolog.Context) zerolog.Context) {
	zerolog.Ctx(ctx).UpdateContext(update)
}
