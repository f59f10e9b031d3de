package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"groupguard/internal/database"
	"groupguard/internal/moderation"

	"github.com/stretchr/testify/require"
)

var errProfileNotFound = errors.New("profile not found")

type sentMessage struct {
	GroupID    string
	ReplyToken string
	Text       string
}

type kickCall struct {
	GroupID string
	UserID  string
}

// fakePlatform records every outbound call
type fakePlatform struct {
	mu      sync.Mutex
	sent    []sentMessage
	kicks   []kickCall
	names   map[string]string
	kickErr error
	sendErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{names: make(map[string]string)}
}

func (f *fakePlatform) Send(ctx context.Context, groupID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{GroupID: groupID, Text: text})
	return nil
}

func (f *fakePlatform) Reply(ctx context.Context, replyToken, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{ReplyToken: replyToken, Text: text})
	return nil
}

func (f *fakePlatform) Kick(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicks = append(f.kicks, kickCall{GroupID: groupID, UserID: userID})
	return nil
}

func (f *fakePlatform) DisplayName(ctx context.Context, groupID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[userID]
	if !ok {
		return "", errProfileNotFound
	}
	return name, nil
}

func (f *fakePlatform) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakePlatform) kickCalls() []kickCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kickCall(nil), f.kicks...)
}

// lastText returns the text of the most recent notification
func (f *fakePlatform) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs, "expected a notification")
	return msgs[len(msgs)-1].Text
}

type testEnv struct {
	dispatcher *Dispatcher
	platform   *fakePlatform
	docs       *database.MockStore
	stores     Stores
}

// newTestEnv builds a dispatcher over in-memory stores with group G1 administered by A1.
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	docs := database.NewMockStore()
	blacklist := moderation.NewBlacklistStore(ctx, docs)
	stores := Stores{
		Blacklist: blacklist,
		Warnings:  moderation.NewWarningLedger(ctx, docs, blacklist, moderation.DefaultWarningThreshold),
		Admins:    moderation.NewAdminRegistry(ctx, docs),
		Reports:   moderation.NewReportLog(ctx, docs),
	}

	seeded, err := stores.Admins.InitializeGroup(ctx, "G1", "A1")
	require.NoError(t, err)
	require.True(t, seeded)

	platform := newFakePlatform()
	d := New(stores, platform, cfg)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &testEnv{dispatcher: d, platform: platform, docs: docs, stores: stores}
}

func (e *testEnv) send(t *testing.T, sender, text string) string {
	t.Helper()
	before := len(e.platform.messages())
	require.NoError(t, e.dispatcher.Handle(context.Background(), Event{GroupID: "G1", SenderID: sender, Text: text}))
	require.Len(t, e.platform.messages(), before+1, "every command must produce exactly one notification")
	return e.platform.lastText(t)
}
